package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/events"
	"claims_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const day = 24 * time.Hour

var now = time.Date(2025, time.September, 15, 6, 0, 0, 0, time.UTC)

type stubSource struct {
	claims []domain.Claim
	err    error
}

func (s stubSource) FetchAll(context.Context) ([]domain.Claim, error) { return s.claims, s.err }

func declaredAt(number string, declared time.Time, status domain.Status) domain.Claim {
	c := domain.NewClaim(uuid.New(), number, domain.Draft{
		PolicyNumber: "POL-" + number,
		Type:         domain.TypeAuto,
		IncidentDate: declared,
		Declarant:    domain.User{ID: uuid.New()},
	}, declared)
	c.Status = status
	return c
}

func TestDeadlineScanPublishesLateClaims(t *testing.T) {
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)

	var mu sync.Mutex
	var got []events.ClaimDeadlineOverdue
	bus.Subscribe(events.ClaimDeadlineOverdueName, events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(events.ClaimDeadlineOverdue))
		return nil
	}))

	source := stubSource{claims: []domain.Claim{
		declaredAt("CLM-2025-00001", now.Add(-3*day), domain.StatusOuvert),
		declaredAt("CLM-2025-00002", now.Add(-20*day), domain.StatusEnAnalyse),
		declaredAt("CLM-2025-00003", now.Add(-90*day), domain.StatusRejete),
	}}
	scanner := NewDeadlineScanner(source, bus, log).WithClock(func() time.Time { return now })

	result, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	bus.Wait()

	if result.Scanned != 3 || result.Overdue != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected one overdue event, got %d", len(got))
	}
	e := got[0]
	if e.ClaimNumber != "CLM-2025-00002" || len(e.Checks) != 1 || e.Checks[0] != domain.CheckExpertiseReport {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.Audience.ClaimNumber != e.ClaimNumber || !e.OccurredAt().Equal(now) {
		t.Fatalf("event lacks audience or timestamp: %+v", e)
	}
}

func TestDeadlineScanReportsStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	scanner := NewDeadlineScanner(stubSource{err: boom}, nil, logger.New("test"))
	if _, err := scanner.Scan(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestHandleDeadlineScanRejectsBadPayload(t *testing.T) {
	w := &Worker{scanner: NewDeadlineScanner(stubSource{}, nil, logger.New("test")), log: logger.New("test")}
	if err := w.handleDeadlineScan(context.Background(), asynq.NewTask(TaskDeadlineScan, []byte("{"))); err == nil {
		t.Fatalf("expected a payload error")
	}

	task, err := NewDeadlineScanTask(DeadlineScanPayload{Trigger: "manual", RequestedAt: now})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if err := w.handleDeadlineScan(context.Background(), task); err != nil {
		t.Fatalf("scan task: %v", err)
	}
}

func TestRedisClientOpt(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		insecure bool
		wantTLS  bool
		wantSkip bool
	}{
		{"plain", "redis://:pw@localhost:6379/2", false, false, false},
		{"tls", "rediss://localhost:6380/0", false, true, false},
		{"insecure plain", "redis://localhost:6379/0", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, err := redisClientOpt(tt.url, tt.insecure)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (opt.TLSConfig != nil) != tt.wantTLS {
				t.Fatalf("tls config presence: got %v", opt.TLSConfig != nil)
			}
			if tt.wantTLS && opt.TLSConfig.InsecureSkipVerify != tt.wantSkip {
				t.Fatalf("insecure skip verify: got %v", opt.TLSConfig.InsecureSkipVerify)
			}
		})
	}
}
