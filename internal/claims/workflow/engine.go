// Package workflow drives claims through their lifecycle. Every operation is
// gated by the actor's permissions, applied to a copy of the claim, committed
// with exactly one event and then announced on the event bus.
package workflow

import (
	"context"
	"errors"
	"time"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/claims/repository"
	"claims_portal_backend/internal/events"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/logger"
	"claims_portal_backend/platform/metrics"

	"github.com/google/uuid"
)

// ErrIllegalTransition is wrapped in the Conflict returned for refused moves.
var ErrIllegalTransition = domain.ErrIllegalTransition

const (
	msgForbidden = "not allowed to perform this action on the claim"
)

const (
	outcomeOK       = "ok"
	outcomeDenied   = "denied"
	outcomeIllegal  = "illegal"
	outcomeInvalid  = "invalid"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// Actor is the authenticated caller. httpkit.Identity satisfies it.
type Actor interface {
	UserID() uuid.UUID
	Email() string
	DisplayName() string
	PrimaryRole() string
	HasPermission(permission string) bool
}

// Directory resolves users referenced by id, such as assignees.
type Directory interface {
	LookupUser(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// Claims is the repository surface the engine needs.
type Claims interface {
	GetByID(ctx context.Context, claimNumber string) (domain.Claim, error)
	Create(ctx context.Context, draft domain.Draft, eventFor func(domain.Claim) domain.Event) (domain.Claim, error)
	Commit(ctx context.Context, ch repository.Change) (domain.Claim, error)
}

// Outcome describes what a mutation produced besides the claim itself.
type Outcome struct {
	EventType   domain.EventType
	Description string
	Document    *domain.Document
	// WriteExpertise persists the claim's expertise record.
	WriteExpertise bool
}

// MutateFunc applies one operation to c. It must not touch c when it
// returns an error.
type MutateFunc func(c *domain.Claim, now time.Time) (Outcome, error)

type Engine struct {
	claims Claims
	users  Directory
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
	locks  keyedMutex
}

func New(claims Claims, users Directory, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{claims: claims, users: users, bus: bus, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run serializes fn with other operations on the same claim, commits the
// result against the version it was computed from and publishes the change.
func (e *Engine) Run(ctx context.Context, actor Actor, op, claimNumber string, fn MutateFunc) (domain.Claim, error) {
	if actor == nil {
		return domain.Claim{}, e.fail(op, claimNumber, actor, apperr.Unauthorized("authentication required"))
	}

	unlock := e.locks.Lock(claimNumber)
	defer unlock()

	current, err := e.claims.GetByID(ctx, claimNumber)
	if err != nil {
		return domain.Claim{}, e.fail(op, claimNumber, actor, err)
	}

	next := current.Clone()
	now := e.now()
	out, err := fn(&next, now)
	if err != nil {
		return domain.Claim{}, e.fail(op, claimNumber, actor, err)
	}

	event := e.newEvent(actor, out, now)
	next.PrependEvent(event)
	next.UpdatedAt = now

	saved, err := e.claims.Commit(ctx, repository.Change{
		Claim:           next,
		ExpectedVersion: current.Version,
		Event:           &event,
		Document:        out.Document,
		WriteExpertise:  out.WriteExpertise,
	})
	if err != nil {
		return domain.Claim{}, e.fail(op, claimNumber, actor, err)
	}

	e.succeed(ctx, op, saved, event, actor)
	return saved, nil
}

func (e *Engine) newEvent(actor Actor, out Outcome, now time.Time) domain.Event {
	user := actorUser(actor)
	return domain.Event{
		ID:          uuid.New(),
		Type:        out.EventType,
		Description: out.Description,
		Timestamp:   now,
		User:        &user,
	}
}

func actorUser(a Actor) domain.User {
	return domain.User{
		ID:    a.UserID(),
		Email: a.Email(),
		Name:  a.DisplayName(),
		Role:  a.PrimaryRole(),
	}
}

func (e *Engine) succeed(ctx context.Context, op string, c domain.Claim, event domain.Event, actor Actor) {
	metrics.ObserveWorkflow(op, outcomeOK)
	e.log.Transition(op, c.Number, actor.UserID().String(), outcomeOK)
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, events.ClaimChanged{
		BaseEvent:   events.BaseEventAt(event.Timestamp),
		ClaimNumber: c.Number,
		Operation:   op,
		EventType:   event.Type,
		Description: event.Description,
		Status:      c.Status,
		Version:     c.Version,
		ActorID:     actor.UserID(),
		Audience:    c.Audience(),
	})
}

// fail classifies err, records the outcome and returns the error to surface.
func (e *Engine) fail(op, claimNumber string, actor Actor, err error) error {
	outcome := outcomeError
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		outcome = outcomeIllegal
		if apperr.GetKind(err) != apperr.KindConflict {
			err = apperr.Wrap(apperr.KindConflict, err.Error(), err)
		}
	case errors.Is(err, domain.ErrInvalidAmounts):
		outcome = outcomeInvalid
		err = apperr.Wrap(apperr.KindValidation, err.Error(), err)
	case apperr.Is(err, apperr.KindForbidden), apperr.Is(err, apperr.KindUnauthorized):
		outcome = outcomeDenied
	case apperr.Is(err, apperr.KindValidation):
		outcome = outcomeInvalid
	case apperr.Is(err, apperr.KindConflict):
		outcome = outcomeConflict
	}

	actorID := ""
	if actor != nil {
		actorID = actor.UserID().String()
	}
	metrics.ObserveWorkflow(op, outcome)
	e.log.Transition(op, claimNumber, actorID, outcome)
	return err
}

func denied() error {
	return apperr.Forbidden(msgForbidden)
}

// require returns a Forbidden error unless a holds one of permissions.
func require(a Actor, permissions []string) error {
	if !hasAny(a, permissions) {
		return denied()
	}
	return nil
}
