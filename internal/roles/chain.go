package roles

import (
	"context"
	"sort"
	"time"
)

// ChainLink explains what a single group contributed to a resolution: the
// role it mapped to (if any) and that role's declared permissions.
type ChainLink struct {
	Group       string   `json:"group"`
	Role        string   `json:"role,omitempty"`
	Mapped      bool     `json:"mapped"`
	Permissions []string `json:"permissions,omitempty"`
}

// ResolutionChain is the audit view of a group-by-group resolution,
// including the overall unions the live decision path would compute.
type ResolutionChain struct {
	UserID      string      `json:"userId"`
	Links       []ChainLink `json:"links"`
	Roles       []string    `json:"roles"`
	Permissions []string    `json:"permissions"`
	ResolvedAt  time.Time   `json:"resolvedAt"`
}

// ChainBuilder re-derives, group by group, which role and permissions each
// group contributed. It is built from the same Resolver primitives as the
// live decision path so it cannot diverge from the semantics it explains.
type ChainBuilder struct {
	resolver *Resolver
}

// NewChainBuilder creates a chain builder over a resolver.
func NewChainBuilder(resolver *Resolver) *ChainBuilder {
	return &ChainBuilder{resolver: resolver}
}

// Build produces the resolution chain for a user's groups.
func (b *ChainBuilder) Build(ctx context.Context, userID string, groups []string) *ResolutionChain {
	chain := &ResolutionChain{
		UserID:     userID,
		Links:      make([]ChainLink, 0, len(groups)),
		ResolvedAt: time.Now().UTC(),
	}

	roleSet := make(map[string]bool)
	for _, group := range groups {
		link := ChainLink{Group: group}

		if role, ok := b.resolver.Table().RoleForGroup(group); ok {
			link.Role = role
			link.Mapped = true
			link.Permissions = b.resolver.ResolvePermissions(ctx, []string{role})
			roleSet[role] = true
		}

		chain.Links = append(chain.Links, link)
	}

	chain.Roles = make([]string, 0, len(roleSet))
	for role := range roleSet {
		chain.Roles = append(chain.Roles, role)
	}
	sort.Strings(chain.Roles)

	chain.Permissions = b.resolver.ResolvePermissions(ctx, chain.Roles)
	return chain
}
