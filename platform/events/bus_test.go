package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	boom := errors.New("boom")

	var calls int32
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return boom
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: BaseEventAt(time.Now())})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}

func TestPublishRunsAsyncAndSurvivesCancel(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var calls int32
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, e Event) error {
		if ctx.Err() != nil {
			t.Error("handler received a cancelled context")
		}
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, pingEvent{BaseEvent: BaseEventAt(time.Now())})
	cancel()
	bus.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestPanickingHandlerIsContained(t *testing.T) {
	bus := NewInMemoryBus(nil)
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, e Event) error {
		panic("handler bug")
	}))

	if err := bus.PublishSync(context.Background(), pingEvent{}); err == nil {
		t.Fatal("expected error from panicking handler")
	}
}

func TestBaseEventAtUsesTheGivenClock(t *testing.T) {
	at := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	e := pingEvent{BaseEvent: BaseEventAt(at)}
	if !e.OccurredAt().Equal(at) || e.OccurredAt().Location() != time.UTC {
		t.Fatalf("unexpected timestamp %v", e.OccurredAt())
	}
}
