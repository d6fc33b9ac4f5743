package dashboard

import (
	apphttp "claims_portal_backend/internal/http"
)

// Module is the dashboard module implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(svc *Service) *Module {
	return &Module{handler: NewHandler(svc)}
}

func (m *Module) Name() string {
	return "dashboard"
}

// RegisterRoutes mounts the dashboard routes behind authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/dashboard"))
}

var _ apphttp.Module = (*Module)(nil)
