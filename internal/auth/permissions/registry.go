// Package permissions maps roles to permission strings.
//
// Two tables ship with the binary: the full nine-role table used with the
// identity store, and the six-role demo table used with the demo login. The
// active table is chosen once at startup from IDENTITY_MODE and never merged
// with the other one.
package permissions

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Wildcard grants every permission.
const Wildcard = "*"

// Role names as stored in the identity store.
const (
	RoleAdmin         = "admin"
	RoleResponsable   = "responsable"
	RoleGestionnaire  = "gestionnaire"
	RoleExpert        = "expert"
	RoleMedecinExpert = "medecin_expert"
	RoleComptabilite  = "comptabilite"
	RoleDirection     = "direction"
	RoleAudit         = "audit"
	RoleAssure        = "assure"
)

// Mode names match config.IdentityModeFull and config.IdentityModeDemo.
const (
	ModeFull = "full"
	ModeDemo = "demo"
)

// priority orders roles from strongest to weakest for primary-role resolution.
var priority = []string{
	RoleAdmin,
	RoleDirection,
	RoleResponsable,
	RoleGestionnaire,
	RoleComptabilite,
	RoleExpert,
	RoleMedecinExpert,
	RoleAudit,
	RoleAssure,
}

// AllRoles returns the nine roles in priority order.
func AllRoles() []string {
	out := make([]string, len(priority))
	copy(out, priority)
	return out
}

// IsRole reports whether name is one of the nine roles.
func IsRole(name string) bool {
	for _, r := range priority {
		if r == name {
			return true
		}
	}
	return false
}

// PrimaryRole returns the highest-priority role held, defaulting to assure.
func PrimaryRole(roles []string) string {
	held := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		held[r] = struct{}{}
	}
	for _, r := range priority {
		if _, ok := held[r]; ok {
			return r
		}
	}
	return RoleAssure
}

// Registry is a pure role to permission lookup.
type Registry interface {
	// Mode names the table in use.
	Mode() string
	// Permissions returns a copy of the role's permission set, sorted.
	// Unknown roles yield an empty slice.
	Permissions(role string) []string
	// HasPermission is true when the role's set contains permission or the wildcard.
	HasPermission(role, permission string) bool
}

//go:embed tables/*.yaml
var tablesFS embed.FS

type tableFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// Table is a Registry backed by a static role table.
type Table struct {
	mode  string
	roles map[string]map[string]struct{}
}

// Load returns the registry for the given mode.
func Load(mode string) (*Table, error) {
	var file string
	switch mode {
	case ModeFull:
		file = "tables/full.yaml"
	case ModeDemo:
		file = "tables/demo.yaml"
	default:
		return nil, fmt.Errorf("unknown permission mode %q", mode)
	}

	raw, err := tablesFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read permission table: %w", err)
	}
	return parse(mode, raw)
}

// MustLoad is Load for package-level initialisation and tests.
func MustLoad(mode string) *Table {
	t, err := Load(mode)
	if err != nil {
		panic(err)
	}
	return t
}

func parse(mode string, raw []byte) (*Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parse %s permission table: %w", mode, err)
	}

	roles := make(map[string]map[string]struct{}, len(tf.Roles))
	for role, perms := range tf.Roles {
		if !IsRole(role) {
			return nil, fmt.Errorf("%s permission table: unknown role %q", mode, role)
		}
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		roles[role] = set
	}
	return &Table{mode: mode, roles: roles}, nil
}

// Mode implements Registry.
func (t *Table) Mode() string { return t.mode }

// Permissions implements Registry.
func (t *Table) Permissions(role string) []string {
	set := t.roles[role]
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasPermission implements Registry.
func (t *Table) HasPermission(role, permission string) bool {
	set, ok := t.roles[role]
	if !ok {
		return false
	}
	if _, ok := set[Wildcard]; ok {
		return true
	}
	_, ok = set[permission]
	return ok
}

var _ Registry = (*Table)(nil)
