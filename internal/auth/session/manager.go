package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/internal/auth/token"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/config"
	"claims_portal_backend/platform/httpkit"
	"claims_portal_backend/platform/logger"
	"claims_portal_backend/platform/metrics"

	"github.com/google/uuid"
)

const msgInvalidCredentials = "invalid credentials"

// Manager opens, resolves and closes sessions. It is constructed once in the
// composition root and shared by the HTTP layer.
type Manager struct {
	auth     Authenticator
	store    Store
	registry permissions.Registry
	secret   string
	ttl      time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// NewManager wires an authenticator to its matching registry. The two must
// come from the same identity mode.
func NewManager(auth Authenticator, store Store, registry permissions.Registry, cfg config.SessionConfig, log *logger.Logger) (*Manager, error) {
	if auth.Mode() != registry.Mode() {
		return nil, fmt.Errorf("authenticator mode %q does not match permission registry mode %q", auth.Mode(), registry.Mode())
	}
	return &Manager{
		auth:     auth,
		store:    store,
		registry: registry,
		secret:   cfg.GetJWTAccessSecret(),
		ttl:      cfg.GetSessionTTL(),
		log:      log,
		now:      time.Now,
	}, nil
}

// Registry returns the active permission registry.
func (m *Manager) Registry() permissions.Registry {
	return m.registry
}

// Login authenticates and opens a session. It returns the session and the
// access token bound to it.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (*Session, string, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	user, err := m.auth.Authenticate(ctx, identifier, secret)
	if err != nil {
		metrics.ObserveLogin(false)
		if errors.Is(err, ErrInvalidCredentials) {
			m.log.AuthEvent("login", identifier, false, "invalid_credentials")
			return nil, "", apperr.Unauthorized(msgInvalidCredentials)
		}
		m.log.AuthEvent("login", identifier, false, "identity_store_unavailable")
		return nil, "", apperr.Unavailable("identity store unavailable", err)
	}

	id, err := token.GenerateRandomToken(32)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "could not open session", err)
	}

	now := m.now()
	rec := Record{
		ID:        id,
		User:      user,
		Mode:      m.auth.Mode(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, rec, m.ttl); err != nil {
		return nil, "", apperr.Unavailable("session store unavailable", err)
	}

	access, err := token.SignAccessToken(m.secret, user.ID, id, user.Roles, now, m.ttl)
	if err != nil {
		_ = m.store.Delete(ctx, id)
		return nil, "", apperr.Wrap(apperr.KindInternal, "could not open session", err)
	}

	metrics.ObserveLogin(true)
	m.log.AuthEvent("login", identifier, true, "")
	return newSession(rec, m.registry), access, nil
}

// Logout closes the session. Closing an unknown session succeeds.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrNotFound) {
		return apperr.Unavailable("session store unavailable", err)
	}
	return nil
}

// EndUserSessions closes every session of the user, for example after their
// roles changed. Open requests fail their next session lookup.
func (m *Manager) EndUserSessions(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.DeleteUser(ctx, userID); err != nil {
		return apperr.Unavailable("session store unavailable", err)
	}
	m.log.Info("user sessions revoked", "user_id", userID.String())
	return nil
}

// Resolve returns the live session for the id.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (*Session, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Unauthorized("session expired")
	}
	if err != nil {
		return nil, apperr.Unavailable("session store unavailable", err)
	}
	if rec.Mode != m.registry.Mode() {
		return nil, apperr.Unauthorized("session expired")
	}
	return newSession(rec, m.registry), nil
}

// ResolvePrincipal implements httpkit.SessionResolver.
func (m *Manager) ResolvePrincipal(ctx context.Context, sessionID string) (httpkit.Principal, error) {
	s, err := m.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

var _ httpkit.SessionResolver = (*Manager)(nil)
