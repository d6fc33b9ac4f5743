// Package notification turns claim domain events into real-time messages.
// It subscribes to the event bus so the workflow engine and the deadline scan
// never need to know who is listening.
package notification

import (
	"context"
	"strings"

	"claims_portal_backend/internal/events"
	apphttp "claims_portal_backend/internal/http"
	"claims_portal_backend/internal/notification/sse"
	"claims_portal_backend/platform/logger"
)

// Module handles claim event subscriptions and the SSE stream.
type Module struct {
	log *logger.Logger
	sse *sse.Service
}

func New(stream *sse.Service, log *logger.Logger) *Module {
	return &Module{log: log, sse: stream}
}

func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the event stream behind authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events/stream", m.sse.Handler())
}

// RegisterHandlers subscribes to the claim events on the bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.ClaimChangedName, m)
	bus.Subscribe(events.ClaimDeadlineOverdueName, m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.ClaimChanged:
		return m.handleClaimChanged(ctx, e)
	case events.ClaimDeadlineOverdue:
		return m.handleClaimDeadlineOverdue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleClaimChanged(_ context.Context, e events.ClaimChanged) error {
	m.sse.Publish(sse.Event{
		Type:        sse.EventClaimChanged,
		ClaimNumber: e.ClaimNumber,
		Message:     e.Description,
		Data:        e,
	}, e.Audience)
	return nil
}

func (m *Module) handleClaimDeadlineOverdue(_ context.Context, e events.ClaimDeadlineOverdue) error {
	names := make([]string, len(e.Checks))
	for i, check := range e.Checks {
		names[i] = string(check)
	}
	m.log.Warn("claim deadline overdue",
		"claim_number", e.ClaimNumber,
		"status", string(e.Status),
		"checks", strings.Join(names, ","),
	)
	m.sse.Publish(sse.Event{
		Type:        sse.EventClaimOverdue,
		ClaimNumber: e.ClaimNumber,
		Message:     "Délai réglementaire dépassé : " + strings.Join(names, ", "),
		Data:        e,
	}, e.Audience)
	return nil
}

var (
	_ apphttp.Module = (*Module)(nil)
	_ events.Handler = (*Module)(nil)
)
