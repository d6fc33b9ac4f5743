package handler

import (
	"net/http"

	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/internal/auth/repository"
	"claims_portal_backend/internal/auth/service"
	"claims_portal_backend/internal/auth/session"
	"claims_portal_backend/internal/auth/transport"
	"claims_portal_backend/platform/httpkit"
	"claims_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidUserID    = "invalid user id"
)

// Handler serves login, logout and profile endpoints. The user service is
// nil in demo mode, where profiles are fixed.
type Handler struct {
	sessions *session.Manager
	users    *service.Service
	val      *validator.Validator
}

func New(sessions *session.Manager, users *service.Service, val *validator.Validator) *Handler {
	return &Handler{sessions: sessions, users: users, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
}

// Login opens a session.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}

	sess, accessToken, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.AuthResponse{
		AccessToken: accessToken,
		ExpiresAt:   sess.ExpiresAt(),
		Mode:        h.sessions.Registry().Mode(),
		User:        fromSession(sess),
	})
}

// Logout closes the caller's session. Repeated calls succeed.
// POST /api/v1/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	if httpkit.HandleError(c, h.sessions.Logout(c.Request.Context(), identity.SessionID())) {
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMe returns the session user with the permissions of their primary role.
// GET /api/v1/users/me
func (h *Handler) GetMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	sess, err := h.sessions.Resolve(c.Request.Context(), identity.SessionID())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := fromSession(sess)
	if h.users != nil {
		user, err := h.users.GetUser(c.Request.Context(), identity.UserID())
		if httpkit.HandleError(c, err) {
			return
		}
		resp = fromUser(user)
	}
	resp.Permissions = sess.Permissions()
	httpkit.OK(c, resp)
}

// UpdateMe edits the caller's own profile.
// PATCH /api/v1/users/me
func (h *Handler) UpdateMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	if h.users == nil {
		httpkit.Error(c, http.StatusNotImplemented, "profiles are read-only in demo mode", nil)
		return
	}

	var req transport.UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), identity.UserID(), service.ProfileUpdate{
		Name:   req.Name,
		Phone:  req.Phone,
		Avatar: req.Avatar,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, fromUser(user))
}

// ListUsers returns every profile, used to pick managers and experts.
// GET /api/v1/users
func (h *Handler) ListUsers(c *gin.Context) {
	if h.users == nil {
		httpkit.Error(c, http.StatusNotImplemented, "user directory is unavailable in demo mode", nil)
		return
	}
	users, err := h.users.ListUsers(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, fromUser(u))
	}
	httpkit.OK(c, out)
}

// SetUserRoles replaces a user's roles.
// PUT /api/v1/admin/users/:id/roles
func (h *Handler) SetUserRoles(c *gin.Context) {
	if h.users == nil {
		httpkit.Error(c, http.StatusNotImplemented, "roles are fixed in demo mode", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidUserID, nil)
		return
	}

	var req transport.SetRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return
	}

	if httpkit.HandleError(c, h.users.SetUserRoles(c.Request.Context(), id, req.Roles)) {
		return
	}
	// Sessions carry the roles they were opened with.
	if httpkit.HandleError(c, h.sessions.EndUserSessions(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func fromSession(sess *session.Session) transport.UserResponse {
	u := sess.User()
	return transport.UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Avatar:    u.Avatar,
		Role:      sess.PrimaryRole(),
		Roles:     sess.Roles(),
		CreatedAt: u.CreatedAt,
	}
}

func fromUser(u repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Avatar:    u.Avatar,
		Role:      permissions.PrimaryRole(u.Roles),
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
	}
}
