// Package repository owns the claim collection. It keeps an in-memory
// snapshot of every claim, refreshed from the store in one batched read, and
// writes each change through to the store before publishing it locally.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

const (
	msgStoreUnavailable = "claim store unavailable"
	msgClaimNotFound    = "claim not found"
	msgVersionConflict  = "claim was modified by someone else, reload and retry"
)

// Repository serves reads from the snapshot and writes through the Store.
type Repository struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
	group singleflight.Group

	mu     sync.RWMutex
	claims []domain.Claim
	loaded bool
	// seq is bumped when a refresh starts and on every local write. A refresh
	// is installed only when its ticket is newer than applied.
	seq     uint64
	applied uint64
}

func New(store Store, log *logger.Logger) *Repository {
	return &Repository{store: store, log: log, now: time.Now}
}

// WithClock replaces the time source used for new claims and timestamps.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// NewPostgres builds a repository over the pgx store.
func NewPostgres(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return New(NewPostgresStore(pool), log)
}

// FetchAll reloads the snapshot from the store and returns it. Concurrent
// calls share one read. On failure the previous snapshot is kept.
func (r *Repository) FetchAll(ctx context.Context) ([]domain.Claim, error) {
	_, err, _ := r.group.Do("fetch-all", func() (any, error) {
		return nil, r.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

func (r *Repository) refresh(ctx context.Context) error {
	ticket := r.nextTicket()

	ds, err := r.store.FetchAll(ctx)
	if err != nil {
		r.log.DatabaseError("claims.fetch_all", err)
		return apperr.Unavailable(msgStoreUnavailable, err)
	}

	claims, problems := mapDataset(ds)
	for _, p := range problems {
		r.log.Warn("claim_skipped", slog.String("error", p.Error()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket > r.applied {
		r.claims = claims
		r.applied = ticket
		r.loaded = true
	}
	return nil
}

func (r *Repository) nextTicket() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq
}

func (r *Repository) snapshot() []domain.Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Claim, len(r.claims))
	for i, c := range r.claims {
		out[i] = c.Clone()
	}
	return out
}

func (r *Repository) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err := r.FetchAll(ctx)
	return err
}

// List returns the snapshot, loading it on first use.
func (r *Repository) List(ctx context.Context) ([]domain.Claim, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// GetByID returns the claim with the given claim number.
func (r *Repository) GetByID(ctx context.Context, claimNumber string) (domain.Claim, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return domain.Claim{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.claims {
		if c.Number == claimNumber {
			return c.Clone(), nil
		}
	}
	return domain.Claim{}, apperr.NotFound(msgClaimNotFound)
}

// Create allocates a claim number, builds the claim and stores it with the
// event returned by eventFor.
func (r *Repository) Create(ctx context.Context, draft domain.Draft, eventFor func(domain.Claim) domain.Event) (domain.Claim, error) {
	now := r.now()
	seq, err := r.store.NextSequence(ctx, now.Year())
	if err != nil {
		r.log.DatabaseError("claims.next_sequence", err)
		return domain.Claim{}, apperr.Unavailable(msgStoreUnavailable, err)
	}

	claim := domain.NewClaim(uuid.New(), FormatClaimNumber(now.Year(), seq), draft, now)
	event := eventFor(claim)
	claim.PrependEvent(event)

	m, err := buildMutation(claim, 0, Change{Event: &event})
	if err != nil {
		return domain.Claim{}, apperr.Validation(err.Error())
	}
	if err := r.store.Insert(ctx, m); err != nil {
		r.log.DatabaseError("claims.insert", err)
		return domain.Claim{}, apperr.Unavailable(msgStoreUnavailable, err)
	}

	r.mu.Lock()
	r.seq++
	r.applied = r.seq
	r.claims = append([]domain.Claim{claim}, r.claims...)
	r.mu.Unlock()

	return claim.Clone(), nil
}

// Change is a write computed from the claim at ExpectedVersion.
type Change struct {
	Claim           domain.Claim
	ExpectedVersion int64
	// Event is the single audit entry for this change, already prepended to
	// Claim.Events. Nil for plain state replacement.
	Event *domain.Event
	// Document is a newly attached document.
	Document *domain.Document
	// WriteExpertise persists Claim.Expertise.
	WriteExpertise bool
}

// Commit writes ch atomically and swaps the claim in the snapshot. A stale
// ExpectedVersion yields a Conflict and triggers a refresh.
func (r *Repository) Commit(ctx context.Context, ch Change) (domain.Claim, error) {
	if err := domain.ValidateSteps(ch.Claim.Steps, ch.Claim.CurrentStepID); err != nil {
		return domain.Claim{}, apperr.Wrap(apperr.KindConflict, "process steps out of order", err)
	}

	next := ch.Claim.Clone()
	next.Version = ch.ExpectedVersion + 1

	m, err := buildMutation(next, ch.ExpectedVersion, ch)
	if err != nil {
		return domain.Claim{}, apperr.Validation(err.Error())
	}
	if err := r.store.Apply(ctx, m); err != nil {
		return domain.Claim{}, r.classifyWrite(ctx, err)
	}

	r.mu.Lock()
	r.seq++
	r.applied = r.seq
	for i := range r.claims {
		if r.claims[i].ID == next.ID {
			r.claims[i] = next
			break
		}
	}
	r.mu.Unlock()

	return next.Clone(), nil
}

func (r *Repository) classifyWrite(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrVersionConflict):
		if _, refreshErr := r.FetchAll(ctx); refreshErr != nil {
			r.log.Warn("claims_refresh_after_conflict_failed", slog.String("error", refreshErr.Error()))
		}
		return apperr.Wrap(apperr.KindConflict, msgVersionConflict, ErrVersionConflict)
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(msgClaimNotFound)
	default:
		r.log.DatabaseError("claims.apply", err)
		return apperr.Unavailable(msgStoreUnavailable, err)
	}
}

// UpdateStatus replaces the status of a non-terminal claim. It is a storage
// level write: no status chain, no gating and no history event. Workflow
// changes go through the engine.
func (r *Repository) UpdateStatus(ctx context.Context, claimNumber string, status domain.Status) (domain.Claim, error) {
	if !status.Valid() {
		return domain.Claim{}, apperr.Validation("unknown status")
	}
	current, err := r.mutable(ctx, claimNumber)
	if err != nil {
		return domain.Claim{}, err
	}
	next := current.Clone()
	next.Status = status
	next.UpdatedAt = r.now()
	return r.Commit(ctx, Change{Claim: next, ExpectedVersion: current.Version})
}

// StepPatch carries step fields to replace. Nil keeps the current value.
type StepPatch struct {
	Status      *domain.StepStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// UpdateProcessStep replaces step fields of a non-terminal claim. Completing
// the current step moves the pointer to the next one. Results that break step
// ordering are refused. Like UpdateStatus it records no history event.
func (r *Repository) UpdateProcessStep(ctx context.Context, claimNumber string, stepID domain.StepID, patch StepPatch) (domain.Claim, error) {
	current, err := r.mutable(ctx, claimNumber)
	if err != nil {
		return domain.Claim{}, err
	}
	next := current.Clone()
	step, ok := next.Step(stepID)
	if !ok {
		return domain.Claim{}, apperr.NotFound("process step not found")
	}
	if patch.Status != nil {
		step.Status = *patch.Status
	}
	if patch.StartedAt != nil {
		at := *patch.StartedAt
		step.StartedAt = &at
	}
	if patch.CompletedAt != nil {
		at := *patch.CompletedAt
		step.CompletedAt = &at
	}
	if step.Status == domain.StepCompleted && stepID == next.CurrentStepID {
		ids := domain.StepIDs()
		for i, id := range ids {
			if id == stepID && i+1 < len(ids) {
				next.CurrentStepID = ids[i+1]
			}
		}
	}
	next.UpdatedAt = r.now()
	return r.Commit(ctx, Change{Claim: next, ExpectedVersion: current.Version})
}

// mutable loads a claim for a storage level write. Closed and rejected
// claims are frozen.
func (r *Repository) mutable(ctx context.Context, claimNumber string) (domain.Claim, error) {
	c, err := r.GetByID(ctx, claimNumber)
	if err != nil {
		return domain.Claim{}, err
	}
	if c.Status.Terminal() {
		return domain.Claim{}, apperr.Wrap(apperr.KindConflict, "claim is "+string(c.Status),
			fmt.Errorf("%w: claim %s is %s", domain.ErrIllegalTransition, c.Number, c.Status))
	}
	return c, nil
}

func buildMutation(c domain.Claim, expected int64, ch Change) (Mutation, error) {
	row, err := claimRow(c)
	if err != nil {
		return Mutation{}, err
	}
	m := Mutation{Claim: row, ExpectedVersion: expected, Steps: stepRows(c)}
	if ch.Event != nil {
		e := eventRow(c.ID, *ch.Event)
		m.Event = &e
	}
	if ch.Document != nil {
		d := documentRow(c.ID, *ch.Document)
		m.Document = &d
	}
	if ch.WriteExpertise && c.Expertise != nil {
		x := expertiseRow(*c.Expertise)
		m.Expertise = &x
	}
	return m, nil
}
