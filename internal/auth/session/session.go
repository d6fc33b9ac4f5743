// Package session owns the current-principal state: login, logout and the
// per-request lookup of a live session.
package session

import (
	"context"
	"errors"
	"time"

	"claims_portal_backend/internal/auth/permissions"

	"github.com/google/uuid"
)

// ErrInvalidCredentials is the only failure an Authenticator reports for a
// bad identifier or secret. It never says which one was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrNotFound is returned by a Store for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// User is the authenticated principal as seen by the session layer.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	Avatar    *string   `json:"avatar,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Authenticator verifies credentials against one identity source.
type Authenticator interface {
	// Mode names the identity source; it must match the registry mode.
	Mode() string
	// Authenticate returns the user or ErrInvalidCredentials.
	Authenticate(ctx context.Context, identifier, secret string) (User, error)
}

// Record is the persisted form of a session.
type Record struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists session records. Expiry is enforced by the store.
type Store interface {
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Get(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
	// DeleteUser removes every session bound to the user.
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// Session is a resolved, live session.
type Session struct {
	rec      Record
	primary  string
	registry permissions.Registry
}

func newSession(rec Record, registry permissions.Registry) *Session {
	return &Session{
		rec:      rec,
		primary:  permissions.PrimaryRole(rec.User.Roles),
		registry: registry,
	}
}

// SessionID returns the opaque session id.
func (s *Session) SessionID() string { return s.rec.ID }

// User returns a copy of the bound user.
func (s *Session) User() User {
	u := s.rec.User
	u.Roles = append([]string(nil), s.rec.User.Roles...)
	return u
}

func (s *Session) UserID() uuid.UUID   { return s.rec.User.ID }
func (s *Session) Email() string       { return s.rec.User.Email }
func (s *Session) DisplayName() string { return s.rec.User.Name }
func (s *Session) PrimaryRole() string { return s.primary }
func (s *Session) ExpiresAt() time.Time {
	return s.rec.ExpiresAt
}

// Roles returns every underlying role the user holds.
func (s *Session) Roles() []string {
	return append([]string(nil), s.rec.User.Roles...)
}

// HasPermission is false for an empty session; otherwise the registry
// decides using the primary role.
func (s *Session) HasPermission(permission string) bool {
	if s == nil || s.rec.User.ID == uuid.Nil || s.registry == nil {
		return false
	}
	return s.registry.HasPermission(s.primary, permission)
}

// Permissions lists the primary role's permission set.
func (s *Session) Permissions() []string {
	if s == nil || s.registry == nil {
		return []string{}
	}
	return s.registry.Permissions(s.primary)
}
