// Package types provides shared types for the permission and policy
// resolution engine.
package types

import "strings"

// Well-known claim types. The upstream identity provider validates token
// signatures; this engine only reads the resulting claim set.
const (
	ClaimObjectID          = "oid"
	ClaimSubject           = "sub"
	ClaimTenantID          = "tid"
	ClaimPreferredUsername = "preferred_username"
	ClaimEmail             = "email"
	ClaimName              = "name"
	ClaimRoles             = "roles"
	ClaimGroups            = "groups"
	ClaimAuthMethods       = "amr"
	ClaimAuthContextClass  = "acr"
)

// Claim is a single claim-type/value pair.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClaimSet is an ordered, multi-valued bag of verified claims. Order is
// preserved so that "first value wins" extraction is deterministic.
type ClaimSet struct {
	claims        []Claim
	authenticated bool
}

// NewClaimSet creates a claim set from an ordered list of claims.
func NewClaimSet(claims []Claim, authenticated bool) *ClaimSet {
	cs := &ClaimSet{
		claims:        make([]Claim, len(claims)),
		authenticated: authenticated,
	}
	copy(cs.claims, claims)
	return cs
}

// IsAuthenticated reports whether the upstream provider authenticated the
// principal these claims describe.
func (c *ClaimSet) IsAuthenticated() bool {
	return c != nil && c.authenticated
}

// First returns the first value for a claim type, or "" if absent.
func (c *ClaimSet) First(claimType string) string {
	if c == nil {
		return ""
	}
	for _, cl := range c.claims {
		if cl.Type == claimType {
			return cl.Value
		}
	}
	return ""
}

// All returns every value carried for a claim type, in order.
func (c *ClaimSet) All(claimType string) []string {
	if c == nil {
		return nil
	}
	var values []string
	for _, cl := range c.claims {
		if cl.Type == claimType {
			values = append(values, cl.Value)
		}
	}
	return values
}

// Has reports whether any value exists for a claim type.
func (c *ClaimSet) Has(claimType string) bool {
	return c.First(claimType) != "" || len(c.All(claimType)) > 0
}

// FirstOf returns the first value found among the given claim types, checked
// in preference order.
func (c *ClaimSet) FirstOf(claimTypes ...string) string {
	for _, t := range claimTypes {
		if v := c.First(t); v != "" {
			return v
		}
	}
	return ""
}

// Flatten collapses the bag into a map, joining multi-valued claims with
// commas. Used to retain raw claims on a UserContext for audit.
func (c *ClaimSet) Flatten() map[string]string {
	if c == nil {
		return map[string]string{}
	}
	flat := make(map[string]string, len(c.claims))
	for _, cl := range c.claims {
		if existing, ok := flat[cl.Type]; ok {
			flat[cl.Type] = existing + "," + cl.Value
		} else {
			flat[cl.Type] = cl.Value
		}
	}
	return flat
}

// Len returns the number of claims in the set.
func (c *ClaimSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.claims)
}

// ContainsValueFold reports whether any value for the claim type contains
// substr, case-insensitively. Multi-valued claims are checked per value.
func (c *ClaimSet) ContainsValueFold(claimType, substr string) bool {
	needle := strings.ToLower(substr)
	for _, v := range c.All(claimType) {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
