package roles

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/authz-engine/resolution/internal/cache"
	"github.com/authz-engine/resolution/pkg/types"
)

// DefaultRoleTTL is the cache lifetime for per-role permission sets. Role
// definitions change rarely, so this is deliberately long.
const DefaultRoleTTL = time.Hour

// Resolver maps directory groups to application roles and roles to the
// union of their declared permissions. Pure with respect to the table plus
// cache; cache population is idempotent, so concurrent races overwrite with
// equal data.
type Resolver struct {
	table   *Table
	cache   cache.Cache
	roleTTL time.Duration
	logger  *zap.Logger
}

// NewResolver creates a resolver. A nil cache disables caching.
func NewResolver(table *Table, c cache.Cache, logger *zap.Logger) *Resolver {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		table:   table,
		cache:   c,
		roleTTL: DefaultRoleTTL,
		logger:  logger,
	}
}

// SetRoleTTL overrides the role-permission cache lifetime.
func (r *Resolver) SetRoleTTL(ttl time.Duration) {
	if ttl > 0 {
		r.roleTTL = ttl
	}
}

// Table exposes the underlying table for components that explain decisions.
func (r *Resolver) Table() *Table {
	return r.table
}

// MapGroupsToRoles maps each group through the static table. Unmapped
// groups are silently dropped; the result is deduplicated and sorted for
// determinism. Empty input yields empty output, never an error.
func (r *Resolver) MapGroupsToRoles(groups []string) []string {
	if len(groups) == 0 {
		return []string{}
	}

	seen := make(map[string]bool, len(groups))
	result := make([]string, 0, len(groups))
	for _, group := range groups {
		role, ok := r.table.RoleForGroup(group)
		if !ok {
			continue
		}
		if !seen[role] {
			seen[role] = true
			result = append(result, role)
		}
	}
	sort.Strings(result)
	return result
}

// ResolvePermissions unions the declared permissions of every known role.
// Each role's set is consulted in the cache first and populated on miss
// with the long role TTL. Unknown roles contribute nothing.
func (r *Resolver) ResolvePermissions(ctx context.Context, roleNames []string) []string {
	if len(roleNames) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	result := make([]string, 0)
	for _, role := range roleNames {
		for _, perm := range r.rolePermissions(ctx, role) {
			if !seen[perm] {
				seen[perm] = true
				result = append(result, perm)
			}
		}
	}
	sort.Strings(result)
	return result
}

// rolePermissions fetches one role's permission set, cache-first.
func (r *Resolver) rolePermissions(ctx context.Context, role string) []string {
	key := cache.RolePermissionsKey(role)

	if data, ok := r.cache.Get(ctx, key); ok {
		var perms []string
		if err := json.Unmarshal(data, &perms); err == nil {
			return perms
		}
		// Corrupt entry: drop it and fall through to the table.
		r.cache.Delete(ctx, key)
	}

	perms, ok := r.table.PermissionsForRole(role)
	if !ok {
		r.logger.Debug("role has no permission entry", zap.String("role", role))
		return nil
	}

	if data, err := json.Marshal(perms); err == nil {
		r.cache.Set(ctx, key, data, r.roleTTL)
	}
	return perms
}

// InvalidateRole drops a role's cached permission set. Called after a table
// reload so long-lived entries do not outlive the definitions that produced
// them.
func (r *Resolver) InvalidateRole(ctx context.Context, role string) {
	r.cache.Delete(ctx, cache.RolePermissionsKey(role))
}

// InvalidateTable drops the cached permission set of every role named by
// either snapshot. Roles removed by a reload are covered by the previous
// snapshot; without that, their entries would keep answering until the
// role TTL expires.
func (r *Resolver) InvalidateTable(ctx context.Context, snapshots ...*types.RolePermissionTable) {
	seen := make(map[string]bool)
	for _, snap := range snapshots {
		if snap == nil {
			continue
		}
		for role := range snap.RolePermissions {
			if !seen[role] {
				seen[role] = true
				r.InvalidateRole(ctx, role)
			}
		}
	}
}
