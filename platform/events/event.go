// Package events is the in-process publish/subscribe layer that lets the
// claims workflow, the deadline scan and the read models stay unaware of
// each other.
package events

import (
	"context"
	"time"
)

// Event is implemented by every message published on a Bus.
type Event interface {
	// EventName is the subscription key, for example "claims.changed".
	EventName() string
	// OccurredAt is the time of the change, taken from the publisher's clock.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp part of Event.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// BaseEventAt stamps an event with at. Publishers pass their own clock so
// the event matches the history entry it announces.
func BaseEventAt(at time.Time) BaseEvent {
	return BaseEvent{Timestamp: at.UTC()}
}

// Handler reacts to one published event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes events to the handlers subscribed to their name.
type Bus interface {
	// Publish hands the event to its handlers without waiting for them.
	Publish(ctx context.Context, event Event)
	// PublishSync runs the handlers before returning their joined errors.
	PublishSync(ctx context.Context, event Event) error
	// Subscribe adds a handler for eventName.
	Subscribe(eventName string, handler Handler)
}
