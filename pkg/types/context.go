package types

import (
	"strings"
	"time"
)

// UserContext is an immutable per-request snapshot of an authenticated
// principal: identity, group memberships, resolved roles and permissions,
// and the raw claims that produced them. It is built once per request and
// never mutated afterwards.
type UserContext struct {
	UserID          string            `json:"userId"`
	Email           string            `json:"email,omitempty"`
	DisplayName     string            `json:"displayName,omitempty"`
	TenantID        string            `json:"tenantId"`
	Groups          []string          `json:"groups,omitempty"`
	Roles           []string          `json:"roles,omitempty"`
	Permissions     []string          `json:"permissions,omitempty"`
	Claims          map[string]string `json:"claims,omitempty"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// Valid reports whether the context may be used for decision-making:
// authenticated with both a user and a tenant identity.
func (u *UserContext) Valid() bool {
	return u != nil && u.IsAuthenticated && u.UserID != "" && u.TenantID != ""
}

// HasRole checks role membership, case-insensitively.
func (u *UserContext) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole checks whether the context holds at least one of the roles.
func (u *UserContext) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// HasPermission checks whether the granted permission set covers a
// permission, either by exact membership or by a wildcard ancestor.
// The walk is from the most specific ancestor ("a.b.*" for "a.b.c") to the
// most general ("a.*"), returning on the first grant found.
func (u *UserContext) HasPermission(permission string) bool {
	if u == nil || permission == "" {
		return false
	}
	if u.hasExactPermission(permission) {
		return true
	}

	parts := strings.Split(permission, ".")
	for i := len(parts) - 1; i > 0; i-- {
		ancestor := strings.Join(parts[:i], ".") + ".*"
		if u.hasExactPermission(ancestor) {
			return true
		}
	}
	return false
}

func (u *UserContext) hasExactPermission(permission string) bool {
	for _, p := range u.Permissions {
		if strings.EqualFold(p, permission) {
			return true
		}
	}
	return false
}

// Claim returns a retained raw claim value (multi-valued claims are
// comma-joined), or "" if absent.
func (u *UserContext) Claim(claimType string) string {
	if u == nil {
		return ""
	}
	return u.Claims[claimType]
}

// Unauthenticated returns the fail-closed snapshot used when a context
// cannot be built from the incoming claims.
func Unauthenticated() *UserContext {
	return &UserContext{
		IsAuthenticated: false,
		Claims:          map[string]string{},
		CreatedAt:       time.Now().UTC(),
	}
}

// TenantContext carries the tenant identity extracted from the incoming
// claim set. It lives for the duration of a single request.
type TenantContext struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
}

// IsValid reports whether a tenant identifier was present.
func (t *TenantContext) IsValid() bool {
	return t != nil && t.TenantID != ""
}
