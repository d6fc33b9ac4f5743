package transport

import (
	"time"

	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/platform/validator"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1,max=256"`
}

type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Phone       *string   `json:"phone,omitempty"`
	Avatar      *string   `json:"avatar,omitempty"`
	Role        string    `json:"role"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"createdAt"`
	Permissions []string  `json:"permissions,omitempty"`
}

type AuthResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Mode        string       `json:"mode"`
	User        UserResponse `json:"user"`
}

type UpdateMeRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone  *string `json:"phone" validate:"omitempty,max=32"`
	Avatar *string `json:"avatar" validate:"omitempty,url,max=2048"`
}

type SetRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,role"`
}

// RegisterValidations adds the role tag used by SetRolesRequest.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterOneOf("role", permissions.AllRoles()...)
}
