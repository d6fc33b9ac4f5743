package repository

import (
	"context"

	"github.com/google/uuid"
)

// UserReader is the read side of the identity store.
type UserReader interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// UserStore adds the profile and role writes used by the user service.
type UserStore interface {
	UserReader
	UpdateProfile(ctx context.Context, userID uuid.UUID, name, phone, avatar *string) (User, error)
	UpsertProfile(ctx context.Context, user User) error
	SetUserRoles(ctx context.Context, userID uuid.UUID, roles []string) error
}

// Ensure Repository implements UserStore
var _ UserStore = (*Repository)(nil)
