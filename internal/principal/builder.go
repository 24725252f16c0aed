// Package principal builds immutable UserContext snapshots from verified
// claim sets.
package principal

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/authz-engine/resolution/internal/auth"
	"github.com/authz-engine/resolution/internal/cache"
	"github.com/authz-engine/resolution/internal/metrics"
	"github.com/authz-engine/resolution/internal/roles"
	"github.com/authz-engine/resolution/pkg/types"
)

// DefaultUserTTL is the cache lifetime for a user's resolved role and
// permission sets. Shorter than the role TTL: user membership changes more
// often than role definitions.
const DefaultUserTTL = 5 * time.Minute

// Builder converts a verified claim set plus resolved groups, roles and
// permissions into a UserContext. Building is idempotent for a fixed claim
// set and role table, and fails closed to an unauthenticated snapshot when
// the principal is unauthenticated or carries no tenant.
type Builder struct {
	resolver *roles.Resolver
	cache    cache.Cache
	userTTL  time.Duration
	logger   *zap.Logger
	metrics  metrics.Metrics
}

// cachedResolution is the tenant-scoped cache entry for a user's resolved
// sets.
type cachedResolution struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// NewBuilder creates a builder. A nil cache disables caching.
func NewBuilder(resolver *roles.Resolver, c cache.Cache, logger *zap.Logger) *Builder {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		resolver: resolver,
		cache:    c,
		userTTL:  DefaultUserTTL,
		logger:   logger,
		metrics:  metrics.NewNoOpMetrics(),
	}
}

// SetUserTTL overrides the user resolution cache lifetime.
func (b *Builder) SetUserTTL(ttl time.Duration) {
	if ttl > 0 {
		b.userTTL = ttl
	}
}

// SetMetrics attaches a metrics sink.
func (b *Builder) SetMetrics(m metrics.Metrics) {
	if m != nil {
		b.metrics = m
	}
}

// Build produces the UserContext for a claim set.
func (b *Builder) Build(ctx context.Context, claims *types.ClaimSet) *types.UserContext {
	start := time.Now()
	defer func() {
		b.metrics.RecordContextBuild(time.Since(start))
	}()

	if !claims.IsAuthenticated() {
		return types.Unauthenticated()
	}

	userID := auth.UserID(claims)
	tenantID := auth.TenantID(claims)
	if userID == "" || tenantID == "" {
		b.logger.Debug("claims missing identity, failing closed",
			zap.Bool("has_user", userID != ""),
			zap.Bool("has_tenant", tenantID != ""),
		)
		return types.Unauthenticated()
	}

	groups := auth.Groups(claims)
	tokenRoles := auth.Roles(claims)
	roleSet, permissions := b.resolve(ctx, userID, tenantID, tokenRoles, groups)

	return &types.UserContext{
		UserID:          userID,
		Email:           auth.Email(claims),
		DisplayName:     auth.DisplayName(claims),
		TenantID:        tenantID,
		Groups:          groups,
		Roles:           roleSet,
		Permissions:     permissions,
		Claims:          claims.Flatten(),
		IsAuthenticated: true,
		CreatedAt:       time.Now().UTC(),
	}
}

// resolve computes the role union and permission set, consulting the
// tenant-scoped user cache first.
func (b *Builder) resolve(ctx context.Context, userID, tenantID string, tokenRoles, groups []string) ([]string, []string) {
	key := cache.UserPermissionsKey(userID, tenantID)

	if data, ok := b.cache.Get(ctx, key); ok {
		var cached cachedResolution
		if err := json.Unmarshal(data, &cached); err == nil {
			b.metrics.RecordCacheHit()
			return cached.Roles, cached.Permissions
		}
		b.cache.Delete(ctx, key)
	}
	b.metrics.RecordCacheMiss()

	// Token-asserted roles and group-mapped roles are a union: neither
	// suppresses the other.
	roleSet := unionRoles(tokenRoles, b.resolver.MapGroupsToRoles(groups))
	permissions := b.resolver.ResolvePermissions(ctx, roleSet)

	if data, err := json.Marshal(cachedResolution{Roles: roleSet, Permissions: permissions}); err == nil {
		b.cache.Set(ctx, key, data, b.userTTL)
	}
	return roleSet, permissions
}

// Invalidate drops a user's cached resolution for one tenant.
func (b *Builder) Invalidate(ctx context.Context, userID, tenantID string) {
	b.cache.Delete(ctx, cache.UserPermissionsKey(userID, tenantID))
}

func unionRoles(a, c []string) []string {
	seen := make(map[string]bool, len(a)+len(c))
	out := make([]string, 0, len(a)+len(c))
	for _, set := range [][]string{a, c} {
		for _, role := range set {
			if role != "" && !seen[role] {
				seen[role] = true
				out = append(out, role)
			}
		}
	}
	sort.Strings(out)
	return out
}
