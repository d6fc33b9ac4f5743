package sse

import (
	"testing"

	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type viewer struct {
	id    uuid.UUID
	perms map[string]bool
}

func (v viewer) UserID() uuid.UUID           { return v.id }
func (v viewer) HasPermission(p string) bool { return v.perms[p] }

func connect(s *Service, v viewer, buffer int) *client {
	c := &client{userID: v.id, viewer: v, events: make(chan Event, buffer)}
	s.addClient(c)
	return c
}

func TestPublishFiltersByVisibility(t *testing.T) {
	s := New(logger.New("test"))
	declarant := viewer{id: uuid.New(), perms: map[string]bool{"claims.view.own": true}}
	stranger := viewer{id: uuid.New(), perms: map[string]bool{"claims.view.own": true}}
	manager := viewer{id: uuid.New(), perms: map[string]bool{"claims.view": true}}

	own := connect(s, declarant, 4)
	other := connect(s, stranger, 4)
	all := connect(s, manager, 4)

	audience := domain.Audience{ClaimNumber: "CLM-2025-00001", Type: domain.TypeAuto, Status: domain.StatusOuvert, DeclarantID: declarant.id}
	if n := s.Publish(Event{Type: EventClaimChanged, ClaimNumber: audience.ClaimNumber}, audience); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if len(own.events) != 1 || len(all.events) != 1 || len(other.events) != 0 {
		t.Fatalf("unexpected fan-out: own=%d all=%d other=%d", len(own.events), len(all.events), len(other.events))
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	s := New(logger.New("test"))
	manager := viewer{id: uuid.New(), perms: map[string]bool{"claims.view": true}}
	c := connect(s, manager, 1)

	audience := domain.Audience{ClaimNumber: "CLM-2025-00001"}
	s.Publish(Event{Type: EventClaimChanged}, audience)
	if n := s.Publish(Event{Type: EventClaimChanged}, audience); n != 0 {
		t.Fatalf("expected the second event to be dropped, got %d deliveries", n)
	}
	if len(c.events) != 1 {
		t.Fatalf("expected one buffered event, got %d", len(c.events))
	}
}

func TestRemoveClientAfterClose(t *testing.T) {
	s := New(logger.New("test"))
	c := connect(s, viewer{id: uuid.New()}, 1)
	s.Close()
	s.removeClient(c)
	if s.Clients() != 0 {
		t.Fatalf("expected no clients, got %d", s.Clients())
	}
}
