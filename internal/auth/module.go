// Package auth is the identity bounded context: sessions, profiles and roles.
package auth

import (
	"claims_portal_backend/internal/auth/handler"
	"claims_portal_backend/internal/auth/service"
	"claims_portal_backend/internal/auth/session"
	apphttp "claims_portal_backend/internal/http"
	"claims_portal_backend/platform/httpkit"
	"claims_portal_backend/platform/validator"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the auth handler. users is nil in demo mode.
func NewModule(sessions *session.Manager, users *service.Service, val *validator.Validator) *Module {
	return &Module{handler: handler.New(sessions, users, val)}
}

func (m *Module) Name() string {
	return "auth"
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public login with stricter rate limiting
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.POST("/auth/logout", m.handler.Logout)
	ctx.Protected.GET("/users/me", m.handler.GetMe)
	ctx.Protected.PATCH("/users/me", m.handler.UpdateMe)
	ctx.Protected.GET("/users", httpkit.RequirePermission("users.view"), m.handler.ListUsers)

	ctx.Admin.PUT("/users/:id/roles", m.handler.SetUserRoles)
}

var _ apphttp.Module = (*Module)(nil)
