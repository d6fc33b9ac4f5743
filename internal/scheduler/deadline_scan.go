package scheduler

import (
	"context"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/events"
	"claims_portal_backend/platform/logger"
	"claims_portal_backend/platform/metrics"
)

// ClaimSource reloads every claim from the store.
type ClaimSource interface {
	FetchAll(ctx context.Context) ([]domain.Claim, error)
}

// ScanResult summarizes one deadline scan.
type ScanResult struct {
	Scanned int
	Overdue int
}

// DeadlineScanner evaluates the legal deadlines of every claim and announces
// the late ones. It never changes a claim.
type DeadlineScanner struct {
	claims ClaimSource
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

func NewDeadlineScanner(claims ClaimSource, bus events.Bus, log *logger.Logger) *DeadlineScanner {
	return &DeadlineScanner{claims: claims, bus: bus, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *DeadlineScanner) WithClock(now func() time.Time) *DeadlineScanner {
	s.now = now
	return s
}

func (s *DeadlineScanner) Scan(ctx context.Context) (ScanResult, error) {
	claims, err := s.claims.FetchAll(ctx)
	if err != nil {
		s.log.DatabaseError("deadline_scan", err)
		return ScanResult{}, err
	}

	now := s.now()
	result := ScanResult{Scanned: len(claims)}
	for _, c := range claims {
		conformity := domain.EvaluateConformity(c, now)
		if !conformity.Late {
			continue
		}
		result.Overdue++

		overdue := conformity.Overdue()
		checks := make([]domain.CheckName, len(overdue))
		for i, check := range overdue {
			checks[i] = check.Name
		}
		if s.bus == nil {
			continue
		}
		s.bus.Publish(ctx, events.ClaimDeadlineOverdue{
			BaseEvent:   events.BaseEventAt(now),
			ClaimNumber: c.Number,
			Status:      c.Status,
			Checks:      checks,
			Audience:    c.Audience(),
		})
	}

	metrics.SetOverdue(result.Overdue)
	s.log.Info("deadline scan finished", "scanned", result.Scanned, "overdue", result.Overdue)
	return result, nil
}
