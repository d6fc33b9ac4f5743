package dashboard

import (
	"context"
	"sort"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/events"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/logger"
	"claims_portal_backend/platform/metrics"
)

const defaultCacheTTL = 2 * time.Minute

// summaryPermissions grant the aggregated view.
var summaryPermissions = []string{"dashboard.global", "dashboard.strategic", "kpi.view", "reports.view"}

// overduePermissions grant the late-claims listing.
var overduePermissions = append([]string{"delays.monitor", "delays.verify", "claims.view"}, summaryPermissions...)

// ClaimLister is the repository read the dashboard needs.
type ClaimLister interface {
	List(ctx context.Context) ([]domain.Claim, error)
}

// Viewer is the caller of a dashboard read. httpkit.Identity satisfies it.
type Viewer interface {
	HasPermission(permission string) bool
}

// OverdueClaim is one non-terminal claim with at least one exceeded deadline.
type OverdueClaim struct {
	ClaimNumber string             `json:"claimNumber"`
	Type        domain.Type        `json:"type"`
	Status      domain.Status      `json:"status"`
	Checks      []domain.CheckName `json:"checks"`
	// MaxDaysLate is the largest overrun among the exceeded checks.
	MaxDaysLate int `json:"maxDaysLate"`
}

type Service struct {
	claims ClaimLister
	cache  Cache
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates the dashboard service. cache may be nil, in which case
// every read computes the summary.
func NewService(claims ClaimLister, cache Cache, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{claims: claims, cache: cache, ttl: ttl, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Summary returns the cached summary or computes and stores a fresh one.
// Cache failures are logged and never fail the read.
func (s *Service) Summary(ctx context.Context, v Viewer) (Summary, error) {
	if !allowed(v, summaryPermissions) {
		return Summary{}, apperr.Forbidden("not allowed to view the dashboard")
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.log.CacheError("get", summaryKey, err)
		}
		metrics.ObserveDashboardCache(ok)
		if ok {
			return cached, nil
		}
	}

	claims, err := s.claims.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Compute(claims, s.now())

	if s.cache != nil {
		if err := s.cache.Set(ctx, summary, s.ttl); err != nil {
			s.log.CacheError("set", summaryKey, err)
		}
	}
	return summary, nil
}

// Overdue lists late claims, the most overdue first.
func (s *Service) Overdue(ctx context.Context, v Viewer) ([]OverdueClaim, error) {
	if !allowed(v, overduePermissions) {
		return nil, apperr.Forbidden("not allowed to monitor deadlines")
	}
	claims, err := s.claims.List(ctx)
	if err != nil {
		return nil, err
	}
	return OverdueClaims(claims, s.now()), nil
}

// OverdueClaims evaluates every claim at now and keeps the late ones.
func OverdueClaims(claims []domain.Claim, now time.Time) []OverdueClaim {
	out := make([]OverdueClaim, 0)
	for _, c := range claims {
		conformity := domain.EvaluateConformity(c, now)
		if !conformity.Late {
			continue
		}
		item := OverdueClaim{ClaimNumber: c.Number, Type: c.Type, Status: c.Status}
		for _, check := range conformity.Overdue() {
			item.Checks = append(item.Checks, check.Name)
			if late := check.ElapsedDays - check.LimitDays; late > item.MaxDaysLate {
				item.MaxDaysLate = late
			}
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MaxDaysLate > out[j].MaxDaysLate
	})
	return out
}

// Subscribe drops the cached summary whenever a claim changes.
func (s *Service) Subscribe(bus events.Bus) {
	if s.cache == nil {
		return
	}
	bus.Subscribe(events.ClaimChangedName, events.HandlerFunc(func(ctx context.Context, _ events.Event) error {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.CacheError("invalidate", summaryKey, err)
			return err
		}
		return nil
	}))
}

func allowed(v Viewer, permissions []string) bool {
	if v == nil {
		return false
	}
	for _, p := range permissions {
		if v.HasPermission(p) {
			return true
		}
	}
	return false
}
