package service

import (
	"context"
	"errors"
	"strings"

	"claims_portal_backend/internal/auth/password"
	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/internal/auth/repository"
	"claims_portal_backend/internal/auth/session"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/phone"

	"github.com/google/uuid"
)

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3ZuxzWdZ7p1G0cMPK7j5Y5e"

// StoreAuthenticator checks credentials against the profiles table.
type StoreAuthenticator struct {
	users repository.UserReader
}

func NewStoreAuthenticator(users repository.UserReader) *StoreAuthenticator {
	return &StoreAuthenticator{users: users}
}

func (a *StoreAuthenticator) Mode() string { return permissions.ModeFull }

func (a *StoreAuthenticator) Authenticate(ctx context.Context, identifier, secret string) (session.User, error) {
	user, err := a.users.GetUserByEmail(ctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		_ = password.Compare(dummyHash, secret)
		return session.User{}, session.ErrInvalidCredentials
	}
	if err != nil {
		return session.User{}, err
	}

	if user.PasswordHash == nil || *user.PasswordHash == "" {
		_ = password.Compare(dummyHash, secret)
		return session.User{}, session.ErrInvalidCredentials
	}
	if err := password.Compare(*user.PasswordHash, secret); err != nil {
		return session.User{}, session.ErrInvalidCredentials
	}

	return ToSessionUser(user), nil
}

// ToSessionUser converts a stored profile into the session view.
func ToSessionUser(user repository.User) session.User {
	return session.User{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Roles:     append([]string(nil), user.Roles...),
		Avatar:    user.Avatar,
		Phone:     user.Phone,
		CreatedAt: user.CreatedAt,
	}
}

// ProfileUpdate carries optional profile changes.
type ProfileUpdate struct {
	Name   *string
	Phone  *string
	Avatar *string
}

// Service manages profiles and role assignments.
type Service struct {
	users repository.UserStore
}

func New(users repository.UserStore) *Service {
	return &Service{users: users}
}

func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (repository.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return repository.User{}, apperr.Unavailable("identity store unavailable", err)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]repository.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Unavailable("identity store unavailable", err)
	}
	return users, nil
}

// UpdateProfile trims the name and stores the phone number in E.164 form.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) (repository.User, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return repository.User{}, apperr.Validation("name cannot be empty")
		}
		in.Name = &trimmed
	}
	if in.Phone != nil {
		normalized := phone.NormalizeE164(*in.Phone)
		in.Phone = &normalized
	}

	user, err := s.users.UpdateProfile(ctx, userID, in.Name, in.Phone, in.Avatar)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return repository.User{}, apperr.Unavailable("identity store unavailable", err)
	}
	return user, nil
}

// SetUserRoles replaces the user's roles. Every name must be one of the nine roles.
func (s *Service) SetUserRoles(ctx context.Context, userID uuid.UUID, roles []string) error {
	if len(roles) == 0 {
		return apperr.Validation("at least one role is required")
	}
	for _, role := range roles {
		if !permissions.IsRole(role) {
			return apperr.Validation("unknown role").WithDetails(map[string]string{"role": role})
		}
	}

	err := s.users.SetUserRoles(ctx, userID, roles)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, repository.ErrInvalidRole):
		return apperr.Validation("unknown role")
	case err != nil:
		return apperr.Unavailable("identity store unavailable", err)
	}
	return nil
}
