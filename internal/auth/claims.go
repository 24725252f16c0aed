// Package auth provides claim extraction utilities over verified claim
// sets. Token issuance and signature validation happen upstream; nothing
// here checks a signature.
package auth

import (
	"strings"

	"github.com/authz-engine/resolution/pkg/types"
)

// UserID extracts the principal identifier, preferring the object-identifier
// claim over the generic subject claim.
func UserID(claims *types.ClaimSet) string {
	return claims.FirstOf(types.ClaimObjectID, types.ClaimSubject)
}

// Email extracts the principal's address, preferring the preferred-username
// claim over the generic email claim.
func Email(claims *types.ClaimSet) string {
	return claims.FirstOf(types.ClaimPreferredUsername, types.ClaimEmail)
}

// DisplayName extracts the human-readable name claim.
func DisplayName(claims *types.ClaimSet) string {
	return claims.First(types.ClaimName)
}

// TenantID extracts the tenant identifier claim.
func TenantID(claims *types.ClaimSet) string {
	return claims.First(types.ClaimTenantID)
}

// Roles extracts role assertions carried directly on the token.
func Roles(claims *types.ClaimSet) []string {
	return splitMultiValued(claims.All(types.ClaimRoles))
}

// Groups extracts directory group claims.
func Groups(claims *types.ClaimSet) []string {
	return splitMultiValued(claims.All(types.ClaimGroups))
}

// splitMultiValued normalizes claim values that some providers emit as a
// single comma- or space-joined string rather than repeated claims.
func splitMultiValued(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' '
		}) {
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
