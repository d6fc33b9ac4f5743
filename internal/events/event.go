// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var BaseEventAt = events.BaseEventAt

const (
	ClaimChangedName         = "claims.changed"
	ClaimDeadlineOverdueName = "claims.deadline_overdue"
)

// =============================================================================
// Claim Domain Events
// =============================================================================

// ClaimChanged is published after every committed workflow operation.
// Audience lets subscribers filter by claim visibility.
type ClaimChanged struct {
	BaseEvent
	ClaimNumber string           `json:"claimNumber"`
	Operation   string           `json:"operation"`
	EventType   domain.EventType `json:"eventType"`
	Description string           `json:"description"`
	Status      domain.Status    `json:"status"`
	Version     int64            `json:"version"`
	ActorID     uuid.UUID        `json:"actorId"`
	Audience    domain.Audience  `json:"-"`
}

func (e ClaimChanged) EventName() string { return ClaimChangedName }

// ClaimDeadlineOverdue is published by the deadline scan for each late claim.
type ClaimDeadlineOverdue struct {
	BaseEvent
	ClaimNumber string             `json:"claimNumber"`
	Status      domain.Status      `json:"status"`
	Checks      []domain.CheckName `json:"checks"`
	Audience    domain.Audience    `json:"-"`
}

func (e ClaimDeadlineOverdue) EventName() string { return ClaimDeadlineOverdueName }
