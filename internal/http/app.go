// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"claims_portal_backend/internal/events"
	"claims_portal_backend/platform/config"
	"claims_portal_backend/platform/httpkit"
	"claims_portal_backend/platform/logger"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is used for readiness checks (DB ping).
	Health HealthChecker
	// Sessions resolves the session behind each access token.
	Sessions httpkit.SessionResolver
	EventBus events.Bus
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
