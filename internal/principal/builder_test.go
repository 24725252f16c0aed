package principal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authz-engine/resolution/internal/cache"
	"github.com/authz-engine/resolution/internal/roles"
	"github.com/authz-engine/resolution/pkg/types"
)

func testResolver(t *testing.T) *roles.Resolver {
	t.Helper()
	table, err := roles.NewTable(&types.RolePermissionTable{
		GroupToRole: map[string]string{
			"G1": "Viewer",
			"G2": "Editor",
		},
		RolePermissions: map[string][]string{
			"Viewer": {"users.read"},
			"Editor": {"users.read", "users.write"},
			"Admin":  {"users.*"},
		},
	})
	require.NoError(t, err)
	return roles.NewResolver(table, nil, nil)
}

func authClaims(pairs ...[2]string) *types.ClaimSet {
	claims := make([]types.Claim, 0, len(pairs))
	for _, p := range pairs {
		claims = append(claims, types.Claim{Type: p[0], Value: p[1]})
	}
	return types.NewClaimSet(claims, true)
}

func TestBuild(t *testing.T) {
	b := NewBuilder(testResolver(t), nil, nil)

	uc := b.Build(context.Background(), authClaims(
		[2]string{types.ClaimObjectID, "user-1"},
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimPreferredUsername, "alice@example.com"},
		[2]string{types.ClaimName, "Alice"},
		[2]string{types.ClaimRoles, "Admin"},
		[2]string{types.ClaimGroups, "G1"},
	))

	assert.True(t, uc.Valid())
	assert.Equal(t, "user-1", uc.UserID)
	assert.Equal(t, "T1", uc.TenantID)
	assert.Equal(t, "alice@example.com", uc.Email)
	assert.Equal(t, "Alice", uc.DisplayName)
	assert.Equal(t, []string{"G1"}, uc.Groups)

	// Union law: token roles and group-mapped roles, deduplicated.
	assert.Equal(t, []string{"Admin", "Viewer"}, uc.Roles)
	assert.Equal(t, []string{"users.*", "users.read"}, uc.Permissions)

	// Raw claims retained for audit.
	assert.Equal(t, "Admin", uc.Claims[types.ClaimRoles])
}

func TestBuildFailsClosed(t *testing.T) {
	b := NewBuilder(testResolver(t), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		claims *types.ClaimSet
	}{
		{
			name:   "unauthenticated",
			claims: types.NewClaimSet([]types.Claim{{Type: types.ClaimTenantID, Value: "T1"}}, false),
		},
		{
			name: "missing tenant",
			claims: authClaims(
				[2]string{types.ClaimObjectID, "user-1"},
				[2]string{types.ClaimRoles, "Admin"},
			),
		},
		{
			name:   "missing user id",
			claims: authClaims([2]string{types.ClaimTenantID, "T1"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := b.Build(ctx, tt.claims)
			assert.False(t, uc.IsAuthenticated)
			assert.False(t, uc.Valid())
			assert.Empty(t, uc.UserID)
			assert.Empty(t, uc.Roles)
			assert.Empty(t, uc.Permissions)
		})
	}
}

func TestBuildTokenRolesOnly(t *testing.T) {
	// Scenario: no groups, role asserted on the token alone.
	b := NewBuilder(testResolver(t), nil, nil)

	uc := b.Build(context.Background(), authClaims(
		[2]string{types.ClaimObjectID, "user-1"},
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimRoles, "Admin"},
	))

	assert.Equal(t, []string{"Admin"}, uc.Roles)
	assert.Equal(t, []string{"users.*"}, uc.Permissions)
	assert.True(t, uc.HasPermission("users.delete"))
}

func TestBuildGroupRolesOnly(t *testing.T) {
	// Scenario: role arrives via group mapping, no token roles.
	b := NewBuilder(testResolver(t), nil, nil)

	uc := b.Build(context.Background(), authClaims(
		[2]string{types.ClaimObjectID, "user-1"},
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimGroups, "G1"},
	))

	assert.Equal(t, []string{"Viewer"}, uc.Roles)
	assert.Equal(t, []string{"users.read"}, uc.Permissions)
	assert.False(t, uc.HasPermission("users.delete"))
}

func TestBuildIdempotent(t *testing.T) {
	c := cache.NewLRU(100, time.Minute)
	b := NewBuilder(testResolver(t), c, nil)
	ctx := context.Background()

	claims := authClaims(
		[2]string{types.ClaimObjectID, "user-1"},
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimGroups, "G1"},
		[2]string{types.ClaimGroups, "G2"},
	)

	first := b.Build(ctx, claims)
	second := b.Build(ctx, claims) // warm cache

	assert.Equal(t, first.Roles, second.Roles)
	assert.Equal(t, first.Permissions, second.Permissions)
	assert.Greater(t, c.Stats().Hits, uint64(0))
}

func TestBuildCacheIsTenantScoped(t *testing.T) {
	c := cache.NewLRU(100, time.Minute)
	b := NewBuilder(testResolver(t), c, nil)
	ctx := context.Background()

	b.Build(ctx, authClaims(
		[2]string{types.ClaimObjectID, "user-1"},
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimGroups, "G1"},
	))

	_, ok := c.Get(ctx, cache.UserPermissionsKey("user-1", "T1"))
	assert.True(t, ok)
	_, ok = c.Get(ctx, cache.UserPermissionsKey("user-1", "T2"))
	assert.False(t, ok, "resolution for one tenant must not be visible under another")
}

func TestInvalidate(t *testing.T) {
	c := cache.NewLRU(100, time.Minute)
	b := NewBuilder(testResolver(t), c, nil)
	ctx := context.Background()

	b.Build(ctx, authClaims(
		[2]string{types.ClaimObjectID, "user-1"},
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimGroups, "G1"},
	))
	b.Invalidate(ctx, "user-1", "T1")

	_, ok := c.Get(ctx, cache.UserPermissionsKey("user-1", "T1"))
	assert.False(t, ok)
}
