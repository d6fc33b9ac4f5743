package adapters

import (
	"context"
	"errors"

	"claims_portal_backend/internal/auth/permissions"
	authrepo "claims_portal_backend/internal/auth/repository"
	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/claims/workflow"
	"claims_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// ClaimsUserDirectory resolves assignees and declarants from the profile store.
type ClaimsUserDirectory struct {
	users authrepo.UserReader
}

func NewClaimsUserDirectory(users authrepo.UserReader) *ClaimsUserDirectory {
	return &ClaimsUserDirectory{users: users}
}

func (d *ClaimsUserDirectory) LookupUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	user, err := d.users.GetUserByID(ctx, id)
	if errors.Is(err, authrepo.ErrNotFound) {
		return domain.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return domain.User{}, apperr.Wrap(apperr.KindUnavailable, "user directory unavailable", err)
	}
	return domain.User{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      permissions.PrimaryRole(user.Roles),
		Phone:     user.Phone,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
	}, nil
}

var _ workflow.Directory = (*ClaimsUserDirectory)(nil)
