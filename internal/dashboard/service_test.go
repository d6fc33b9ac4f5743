package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/events"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubLister struct {
	mu     sync.Mutex
	claims []domain.Claim
	calls  int
}

func (s *stubLister) List(context.Context) ([]domain.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return append([]domain.Claim(nil), s.claims...), nil
}

func (s *stubLister) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type viewer []string

func (v viewer) HasPermission(p string) bool {
	for _, held := range v {
		if held == p {
			return true
		}
	}
	return false
}

func newCachedService(t *testing.T) (*Service, *stubLister, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lister := &stubLister{claims: fixture()}
	svc := NewService(lister, NewRedisCache(client), time.Minute, logger.New("test")).WithClock(func() time.Time { return now })
	return svc, lister, mr
}

func TestSummaryPermissions(t *testing.T) {
	svc := NewService(&stubLister{}, nil, 0, logger.New("test"))
	tests := []struct {
		name  string
		perms viewer
		ok    bool
	}{
		{"direction", viewer{"dashboard.strategic", "kpi.view"}, true},
		{"responsable", viewer{"dashboard.global"}, true},
		{"gestionnaire", viewer{"claims.view", "claims.edit"}, false},
		{"assure", viewer{"claims.view.own"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Summary(context.Background(), tt.perms)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !apperr.Is(err, apperr.KindForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestSummaryIsCached(t *testing.T) {
	svc, lister, mr := newCachedService(t)
	ctx := context.Background()
	v := viewer{"dashboard.global"}

	first, err := svc.Summary(ctx, v)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	second, err := svc.Summary(ctx, v)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if lister.Calls() != 1 {
		t.Fatalf("expected one repository read, got %d", lister.Calls())
	}
	if second.Total != first.Total || !second.EstimatedTotal.Equal(first.EstimatedTotal) {
		t.Fatalf("cached summary differs: %+v vs %+v", second, first)
	}
	if ttl := mr.TTL(summaryKey); ttl != time.Minute {
		t.Fatalf("expected a one minute ttl, got %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := svc.Summary(ctx, v); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if lister.Calls() != 2 {
		t.Fatalf("expected a recompute after expiry, got %d reads", lister.Calls())
	}
}

func TestClaimChangeInvalidatesSummary(t *testing.T) {
	svc, lister, mr := newCachedService(t)
	ctx := context.Background()
	bus := events.NewInMemoryBus(logger.New("test"))
	svc.Subscribe(bus)

	if _, err := svc.Summary(ctx, viewer{"reports.view"}); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !mr.Exists(summaryKey) {
		t.Fatalf("expected summary to be cached")
	}

	if err := bus.PublishSync(ctx, events.ClaimChanged{ClaimNumber: "CLM-2025-00001"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if mr.Exists(summaryKey) {
		t.Fatalf("expected summary to be dropped")
	}
	if _, err := svc.Summary(ctx, viewer{"reports.view"}); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if lister.Calls() != 2 {
		t.Fatalf("expected a recompute after invalidation, got %d reads", lister.Calls())
	}
}

func TestSummarySurvivesCacheOutage(t *testing.T) {
	svc, _, mr := newCachedService(t)
	mr.Close()

	s, err := svc.Summary(context.Background(), viewer{"kpi.view"})
	if err != nil {
		t.Fatalf("expected a computed summary, got %v", err)
	}
	if s.Total != 4 {
		t.Fatalf("expected 4 claims, got %d", s.Total)
	}
}

func TestOverdueGating(t *testing.T) {
	svc, _, _ := newCachedService(t)
	if _, err := svc.Overdue(context.Background(), viewer{"claims.view.own"}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	items, err := svc.Overdue(context.Background(), viewer{"delays.monitor"})
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one overdue claim, got %v %v", items, err)
	}
}
