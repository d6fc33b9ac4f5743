// Package demo is the demonstration identity provider. It accepts any of a
// fixed list of mock users with one shared secret and is only reachable when
// IDENTITY_MODE=demo. It never reads or writes password hashes.
package demo

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/internal/auth/repository"
	"claims_portal_backend/internal/auth/session"

	"github.com/google/uuid"
)

// SharedSecret is accepted for every mock user.
const SharedSecret = "demo123"

var seededAt = time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

var users = []session.User{
	{ID: uuid.MustParse("6f1c9a3e-0001-4a6b-9d2e-000000000001"), Email: "admin@demo.assur.fr", Name: "Alice Martin", Roles: []string{permissions.RoleAdmin}},
	{ID: uuid.MustParse("6f1c9a3e-0002-4a6b-9d2e-000000000002"), Email: "responsable@demo.assur.fr", Name: "Bruno Leroy", Roles: []string{permissions.RoleResponsable}},
	{ID: uuid.MustParse("6f1c9a3e-0003-4a6b-9d2e-000000000003"), Email: "gestionnaire@demo.assur.fr", Name: "Claire Dubois", Roles: []string{permissions.RoleGestionnaire}},
	{ID: uuid.MustParse("6f1c9a3e-0004-4a6b-9d2e-000000000004"), Email: "expert@demo.assur.fr", Name: "David Moreau", Roles: []string{permissions.RoleExpert}},
	{ID: uuid.MustParse("6f1c9a3e-0005-4a6b-9d2e-000000000005"), Email: "comptabilite@demo.assur.fr", Name: "Emma Petit", Roles: []string{permissions.RoleComptabilite}},
	{ID: uuid.MustParse("6f1c9a3e-0006-4a6b-9d2e-000000000006"), Email: "assure@demo.assur.fr", Name: "François Girard", Roles: []string{permissions.RoleAssure}},
}

// Users returns a copy of the mock user list.
func Users() []session.User {
	out := make([]session.User, len(users))
	for i, u := range users {
		u.Roles = append([]string(nil), u.Roles...)
		u.CreatedAt = seededAt
		out[i] = u
	}
	return out
}

// Authenticator implements session.Authenticator over the mock user list.
type Authenticator struct {
	byEmail map[string]session.User
}

func NewAuthenticator() *Authenticator {
	byEmail := make(map[string]session.User, len(users))
	for _, u := range Users() {
		byEmail[u.Email] = u
	}
	return &Authenticator{byEmail: byEmail}
}

func (a *Authenticator) Mode() string { return permissions.ModeDemo }

func (a *Authenticator) Authenticate(_ context.Context, identifier, secret string) (session.User, error) {
	u, ok := a.byEmail[strings.ToLower(strings.TrimSpace(identifier))]
	secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(SharedSecret)) == 1
	if !ok || !secretOK {
		return session.User{}, session.ErrInvalidCredentials
	}
	return u, nil
}

// Seed writes the mock users into the profile store so claims can reference
// them. Password hashes stay empty, so these accounts cannot log in through
// the store authenticator.
func Seed(ctx context.Context, store repository.UserStore) error {
	for _, u := range Users() {
		if err := store.UpsertProfile(ctx, repository.User{
			ID:    u.ID,
			Email: u.Email,
			Name:  u.Name,
			Roles: u.Roles,
		}); err != nil {
			return err
		}
	}
	return nil
}
