package dashboard

import (
	"claims_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.GetSummary)
	rg.GET("/overdue", h.ListOverdue)
}

// GetSummary returns claim counts, rates, amounts and the declaration trend.
// GET /api/v1/dashboard
func (h *Handler) GetSummary(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	summary, err := h.svc.Summary(c.Request.Context(), identity)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

// ListOverdue returns the claims with an exceeded legal deadline.
// GET /api/v1/dashboard/overdue
func (h *Handler) ListOverdue(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	items, err := h.svc.Overdue(c.Request.Context(), identity)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items, "total": len(items)})
}
