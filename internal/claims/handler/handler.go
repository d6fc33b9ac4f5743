package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"claims_portal_backend/internal/adapters/storage"
	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/claims/expertise"
	"claims_portal_backend/internal/claims/repository"
	"claims_portal_backend/internal/claims/transport"
	"claims_portal_backend/internal/claims/workflow"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/httpkit"
	"claims_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgClaimHidden      = "not allowed to view this claim"
	msgStorageDisabled  = "document storage is not configured"

	defaultEventLimit = 20
	maxEventLimit     = 200
)

// Handler serves the claim endpoints. Reads come from the repository
// snapshot filtered by visibility; writes go through the workflow engine.
type Handler struct {
	claims    *repository.Repository
	engine    *workflow.Engine
	expertise *expertise.Manager
	storage   storage.StorageService
	bucket    string
	val       *validator.Validator
	now       func() time.Time
}

// Deps groups the handler's collaborators. Storage may be nil.
type Deps struct {
	Claims    *repository.Repository
	Engine    *workflow.Engine
	Expertise *expertise.Manager
	Storage   storage.StorageService
	Bucket    string
	Validator *validator.Validator
	Now       func() time.Time
}

func New(d Deps) *Handler {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		claims:    d.Claims,
		engine:    d.Engine,
		expertise: d.Expertise,
		storage:   d.Storage,
		bucket:    d.Bucket,
		val:       d.Validator,
		now:       now,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/refresh", h.Refresh)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/events", h.ListEvents)
	rg.GET("/:id/conformity", h.GetConformity)
	rg.POST("/:id/steps/:stepId/start", h.StartStep)
	rg.POST("/:id/steps/:stepId/complete", h.CompleteStep)
	rg.PATCH("/:id/status", h.ChangeStatus)
	rg.POST("/:id/reject", h.Reject)
	rg.PUT("/:id/assignment", h.Assign)
	rg.PUT("/:id/amounts", h.RecordAmounts)
	rg.POST("/:id/comments", h.AddComment)
	rg.PUT("/:id/expertise", h.UpsertExpertise)
	rg.POST("/:id/documents/upload-url", h.GetUploadURL)
	rg.POST("/:id/documents", h.AttachDocument)
}

// List returns the claims visible to the caller, newest first.
// GET /api/v1/claims?status=&type=
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	claims, err := h.claims.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	status := domain.Status(c.Query("status"))
	claimType := domain.Type(c.Query("type"))
	items := make([]transport.ClaimSummaryResponse, 0, len(claims))
	for _, claim := range domain.Visible(identity, claims) {
		if status != "" && claim.Status != status {
			continue
		}
		if claimType != "" && claim.Type != claimType {
			continue
		}
		items = append(items, transport.ToClaimSummary(claim))
	}
	httpkit.OK(c, transport.ClaimListResponse{Items: items, Total: len(items)})
}

// Get returns one claim with its steps, documents and history.
// GET /api/v1/claims/:id
func (h *Handler) Get(c *gin.Context) {
	claim, ok := h.visibleClaim(c)
	if !ok {
		return
	}
	httpkit.OK(c, transport.ToClaimResponse(claim))
}

// ListEvents returns the newest events of a claim.
// GET /api/v1/claims/:id/events?limit=20
func (h *Handler) ListEvents(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventLimit {
			httpkit.Error(c, http.StatusBadRequest, "limit must be between 1 and 200", nil)
			return
		}
		limit = n
	}

	claim, ok := h.visibleClaim(c)
	if !ok {
		return
	}
	httpkit.OK(c, transport.EventListResponse{
		Items: transport.ToEventResponses(claim.LatestEvents(limit)),
		Total: len(claim.Events),
	})
}

// GetConformity evaluates the regulatory deadlines of a claim.
// GET /api/v1/claims/:id/conformity
func (h *Handler) GetConformity(c *gin.Context) {
	claim, ok := h.visibleClaim(c)
	if !ok {
		return
	}
	httpkit.OK(c, transport.ToConformityResponse(domain.EvaluateConformity(claim, h.now())))
}

// Refresh reloads the snapshot from the store.
// POST /api/v1/claims/refresh
func (h *Handler) Refresh(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	claims, err := h.claims.FetchAll(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RefreshResponse{Total: len(domain.Visible(identity, claims))})
}

// Create declares a claim.
// POST /api/v1/claims
func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.CreateClaimRequest
	if !h.bind(c, &req) {
		return
	}

	in := workflow.CreateInput{
		PolicyNumber:    req.PolicyNumber,
		Type:            domain.Type(req.Type),
		IncidentDate:    req.IncidentDate,
		DeclarationDate: req.DeclarationDate,
		Location:        req.Location,
		Description:     req.Description,
		EstimatedAmount: req.EstimatedAmount,
	}
	if req.DeclarantID != nil {
		id := uuid.MustParse(*req.DeclarantID)
		in.DeclarantID = &id
	}

	claim, err := h.engine.Create(c.Request.Context(), identity, in)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToClaimResponse(claim))
}

// StartStep starts the current process step.
// POST /api/v1/claims/:id/steps/:stepId/start
func (h *Handler) StartStep(c *gin.Context) {
	h.stepCommand(c, h.engine.StartStep)
}

// CompleteStep completes an in-progress step.
// POST /api/v1/claims/:id/steps/:stepId/complete
func (h *Handler) CompleteStep(c *gin.Context) {
	h.stepCommand(c, h.engine.CompleteStep)
}

type stepFunc func(ctx context.Context, actor workflow.Actor, claimNumber string, step domain.StepID) (domain.Claim, error)

func (h *Handler) stepCommand(c *gin.Context, run stepFunc) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	stepID := c.Param("stepId")
	if err := h.val.Var(stepID, "required,stepid"); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unknown process step", nil)
		return
	}
	claim, err := run(c.Request.Context(), identity, c.Param("id"), domain.StepID(stepID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToClaimResponse(claim))
}

// ChangeStatus moves the claim forward.
// PATCH /api/v1/claims/:id/status
func (h *Handler) ChangeStatus(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.ChangeStatusRequest
	if !h.bind(c, &req) {
		return
	}
	claim, err := h.engine.ChangeStatus(c.Request.Context(), identity, c.Param("id"), domain.Status(req.Status))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToClaimResponse(claim))
}

// Reject rejects the claim with a reason.
// POST /api/v1/claims/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.RejectRequest
	if !h.bind(c, &req) {
		return
	}
	claim, err := h.engine.Reject(c.Request.Context(), identity, c.Param("id"), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToClaimResponse(claim))
}

// Assign sets the manager, expert or medical expert.
// PUT /api/v1/claims/:id/assignment
func (h *Handler) Assign(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.AssignRequest
	if !h.bind(c, &req) {
		return
	}
	claim, err := h.engine.Assign(c.Request.Context(), identity, c.Param("id"), domain.AssignmentRole(req.Role), uuid.MustParse(req.UserID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToClaimResponse(claim))
}

// RecordAmounts sets estimated, approved or paid amounts.
// PUT /api/v1/claims/:id/amounts
func (h *Handler) RecordAmounts(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.AmountsRequest
	if !h.bind(c, &req) {
		return
	}
	claim, err := h.engine.RecordAmounts(c.Request.Context(), identity, c.Param("id"), domain.AmountsPatch{
		Estimated: req.EstimatedAmount,
		Approved:  req.ApprovedAmount,
		Paid:      req.PaidAmount,
		Override:  req.Override,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToClaimResponse(claim))
}

// AddComment appends a comment to the claim history.
// POST /api/v1/claims/:id/comments
func (h *Handler) AddComment(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.CommentRequest
	if !h.bind(c, &req) {
		return
	}
	claim, err := h.engine.AddComment(c.Request.Context(), identity, c.Param("id"), req.Text)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToEventResponse(claim.Events[0]))
}

// UpsertExpertise saves the assigned expert's record.
// PUT /api/v1/claims/:id/expertise
func (h *Handler) UpsertExpertise(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.ExpertiseRequest
	if !h.bind(c, &req) {
		return
	}
	claim, err := h.expertise.Upsert(c.Request.Context(), identity, c.Param("id"), expertise.Input{
		Status:          domain.ExpertiseStatus(req.Status),
		ScheduledDate:   req.ScheduledDate,
		CompletedDate:   req.CompletedDate,
		Report:          req.Report,
		EstimatedAmount: req.EstimatedAmount,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToClaimResponse(claim))
}

// GetUploadURL presigns an upload for a new claim document.
// POST /api/v1/claims/:id/documents/upload-url
func (h *Handler) GetUploadURL(c *gin.Context) {
	if h.storage == nil {
		httpkit.Error(c, http.StatusNotImplemented, msgStorageDisabled, nil)
		return
	}
	var req transport.UploadURLRequest
	if !h.bind(c, &req) {
		return
	}
	claim, ok := h.visibleClaim(c)
	if !ok {
		return
	}
	if !workflow.CanAttachDocument(httpkit.GetIdentity(c), claim) {
		httpkit.HandleError(c, apperr.Forbidden("not allowed to add documents to this claim"))
		return
	}

	presigned, err := h.storage.GenerateUploadURL(c.Request.Context(), h.bucket, documentFolder(claim.Number), req.FileName, req.ContentType, req.SizeBytes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.UploadURLResponse{
		UploadURL: presigned.URL,
		FileKey:   presigned.FileKey,
		ExpiresAt: presigned.ExpiresAt,
	})
}

// AttachDocument records an uploaded document on the claim.
// POST /api/v1/claims/:id/documents
func (h *Handler) AttachDocument(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.AttachDocumentRequest
	if !h.bind(c, &req) {
		return
	}
	claimNumber := c.Param("id")
	if !strings.HasPrefix(req.FileKey, documentFolder(claimNumber)+"/") || strings.Contains(req.FileKey, "..") {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, []validator.FieldError{{
			Field: "fileKey", Rule: "prefix", Message: "must be a key issued for this claim",
		}})
		return
	}

	claim, err := h.engine.AttachDocument(c.Request.Context(), identity, claimNumber, workflow.DocumentInput{
		Name: req.FileName,
		Type: req.ContentType,
		URL:  req.FileKey,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.ToClaimResponse(claim))
}

func documentFolder(claimNumber string) string {
	return "claims/" + claimNumber
}

// bind decodes and validates the JSON body, writing the 400 itself.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return false
	}
	return true
}

// visibleClaim loads the :id claim and checks that the caller may read it.
func (h *Handler) visibleClaim(c *gin.Context) (domain.Claim, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return domain.Claim{}, false
	}
	claim, err := h.claims.GetByID(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return domain.Claim{}, false
	}
	if !domain.CanView(identity, claim.Audience()) {
		httpkit.HandleError(c, apperr.Forbidden(msgClaimHidden))
		return domain.Claim{}, false
	}
	return claim, true
}
