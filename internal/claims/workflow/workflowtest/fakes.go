// Package workflowtest provides actors, a user directory and a clock for
// exercising the workflow engine against the in-memory store.
package workflowtest

import (
	"context"
	"sync"
	"time"

	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// Actor resolves permissions through a real registry table using the
// user's role. It also satisfies httpkit.Principal for handler tests.
type Actor struct {
	User     domain.User
	Registry permissions.Registry
}

func NewActor(u domain.User, registry permissions.Registry) Actor {
	return Actor{User: u, Registry: registry}
}

func (a Actor) UserID() uuid.UUID   { return a.User.ID }
func (a Actor) Email() string       { return a.User.Email }
func (a Actor) DisplayName() string { return a.User.Name }
func (a Actor) PrimaryRole() string { return a.User.Role }
func (a Actor) SessionID() string   { return "test-" + a.User.ID.String() }
func (a Actor) Roles() []string     { return []string{a.User.Role} }

func (a Actor) HasPermission(permission string) bool {
	return a.Registry.HasPermission(a.User.Role, permission)
}

// Directory is a map-backed user directory.
type Directory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

func NewDirectory(users ...domain.User) *Directory {
	d := &Directory{users: make(map[uuid.UUID]domain.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *Directory) Add(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *Directory) LookupUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return domain.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
