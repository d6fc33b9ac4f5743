// Package claims is the claims bounded context: the claim model, its
// repository, the workflow engine and the HTTP surface.
package claims

import (
	"claims_portal_backend/internal/claims/handler"
	apphttp "claims_portal_backend/internal/http"
)

// Module is the claims bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

func NewModule(deps handler.Deps) *Module {
	return &Module{handler: handler.New(deps)}
}

func (m *Module) Name() string {
	return "claims"
}

// RegisterRoutes mounts claim routes behind authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/claims"))
}

var _ apphttp.Module = (*Module)(nil)
