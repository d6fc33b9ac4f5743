// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated user's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access user information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// SessionID returns the id of the session behind the request.
	SessionID() string
	// Email returns the user's email address.
	Email() string
	// DisplayName returns the user's display name.
	DisplayName() string
	// PrimaryRole returns the role used for permission checks.
	PrimaryRole() string
	// Roles returns the user's assigned roles.
	Roles() []string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// HasPermission checks the primary role's permission set.
	HasPermission(permission string) bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	principal Principal
}

func (i *identity) UserID() uuid.UUID {
	if i.principal == nil {
		return uuid.Nil
	}
	return i.principal.UserID()
}

func (i *identity) SessionID() string {
	if i.principal == nil {
		return ""
	}
	return i.principal.SessionID()
}

func (i *identity) Email() string {
	if i.principal == nil {
		return ""
	}
	return i.principal.Email()
}

func (i *identity) DisplayName() string {
	if i.principal == nil {
		return ""
	}
	return i.principal.DisplayName()
}

func (i *identity) PrimaryRole() string {
	if i.principal == nil {
		return ""
	}
	return i.principal.PrimaryRole()
}

func (i *identity) Roles() []string {
	if i.principal == nil {
		return nil
	}
	return i.principal.Roles()
}

func (i *identity) HasRole(role string) bool {
	for _, r := range i.Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission is false without a principal.
func (i *identity) HasPermission(permission string) bool {
	if i.principal == nil {
		return false
	}
	return i.principal.HasPermission(permission)
}

func (i *identity) IsAuthenticated() bool {
	return i.principal != nil
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if no principal is present.
func GetIdentity(c *gin.Context) Identity {
	value, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return &identity{}
	}
	principal, ok := value.(Principal)
	if !ok {
		return &identity{}
	}
	return &identity{principal: principal}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
