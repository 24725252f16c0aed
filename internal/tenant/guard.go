// Package tenant enforces multi-tenant isolation: every resolution and
// cache key downstream of the guard is scoped to the tenant extracted here.
package tenant

import (
	"strings"

	"github.com/authz-engine/resolution/internal/auth"
	"github.com/authz-engine/resolution/pkg/types"
)

// Guard extracts and validates the tenant identity carried by a request's
// claim set. A guard is request-scoped: it corroborates only the context it
// extracted, never an arbitrary other principal. Cross-user tenant
// membership checks belong to the directory collaborator.
type Guard struct {
	current *types.TenantContext

	// rawTenant keeps the claim value before normalization so a tenant
	// claim that is present but unusable can be told apart from an
	// absent one.
	rawTenant string
}

// NewGuard creates an empty guard. Extract must be called before any other
// operation is meaningful.
func NewGuard() *Guard {
	return &Guard{}
}

// Extract reads the tenant and subject claims into a TenantContext and
// retains it as the guard's current context. A missing tenant claim yields
// an invalid context; downstream operations requiring a tenant must fail
// closed on it.
func (g *Guard) Extract(claims *types.ClaimSet) *types.TenantContext {
	raw := auth.TenantID(claims)
	tc := &types.TenantContext{
		TenantID: strings.TrimSpace(raw),
		UserID:   auth.UserID(claims),
	}
	g.rawTenant = raw
	g.current = tc
	return tc
}

// Validate reports whether a context carries a tenant.
func (g *Guard) Validate(tc *types.TenantContext) bool {
	return tc.IsValid()
}

// Current returns the most recently extracted context, or nil.
func (g *Guard) Current() *types.TenantContext {
	return g.current
}

// UserBelongsToTenant corroborates the supplied identifiers against the
// currently-extracted context. It consults no external store and therefore
// cannot answer for any principal other than the one this request carries.
func (g *Guard) UserBelongsToTenant(userID, tenantID string) bool {
	if g.current == nil || !g.current.IsValid() {
		return false
	}
	return g.current.UserID == userID && g.current.TenantID == tenantID
}

// RequireTenant returns the current context, ErrTenantRequired when the
// request carried no tenant claim, or ErrTenantInvalid when the claim was
// present but normalized to nothing. Admin lookups use this to surface a
// distinct error instead of a silent deny.
func (g *Guard) RequireTenant() (*types.TenantContext, error) {
	switch {
	case g.current == nil || g.rawTenant == "":
		return nil, ErrTenantRequired
	case g.current.TenantID == "":
		return nil, ErrTenantInvalid
	default:
		return g.current, nil
	}
}
