package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authz-engine/resolution/internal/cache"
	"github.com/authz-engine/resolution/pkg/types"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable(&types.RolePermissionTable{
		GroupToRole: map[string]string{
			"G1":        "Viewer",
			"G2":        "Editor",
			"G3":        "Viewer",
			"G-orphans": "GhostRole",
		},
		RolePermissions: map[string][]string{
			"Viewer": {"users.read", "reports.read"},
			"Editor": {"users.read", "users.write"},
			"Admin":  {"users.*"},
		},
	})
	require.NoError(t, err)
	return table
}

func TestMapGroupsToRoles(t *testing.T) {
	r := NewResolver(testTable(t), nil, nil)

	tests := []struct {
		name   string
		groups []string
		want   []string
	}{
		{name: "single group", groups: []string{"G1"}, want: []string{"Viewer"}},
		{name: "two groups two roles", groups: []string{"G1", "G2"}, want: []string{"Editor", "Viewer"}},
		{name: "two groups same role dedupes", groups: []string{"G1", "G3"}, want: []string{"Viewer"}},
		{name: "unmapped group dropped silently", groups: []string{"G1", "unknown"}, want: []string{"Viewer"}},
		{name: "all unmapped", groups: []string{"x", "y"}, want: []string{}},
		{name: "empty input", groups: []string{}, want: []string{}},
		{name: "nil input", groups: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.MapGroupsToRoles(tt.groups))
		})
	}
}

func TestResolvePermissions(t *testing.T) {
	r := NewResolver(testTable(t), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		roles []string
		want  []string
	}{
		{name: "single role", roles: []string{"Viewer"}, want: []string{"reports.read", "users.read"}},
		{name: "union dedupes shared grants", roles: []string{"Viewer", "Editor"}, want: []string{"reports.read", "users.read", "users.write"}},
		{name: "unknown role contributes nothing", roles: []string{"Viewer", "Nobody"}, want: []string{"reports.read", "users.read"}},
		{name: "role without permission entry", roles: []string{"GhostRole"}, want: []string{}},
		{name: "empty input", roles: []string{}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ResolvePermissions(ctx, tt.roles))
		})
	}
}

func TestResolvePermissionsIdempotentColdAndWarm(t *testing.T) {
	c := cache.NewLRU(100, time.Minute)
	r := NewResolver(testTable(t), c, nil)
	ctx := context.Background()

	cold := r.ResolvePermissions(ctx, []string{"Viewer", "Editor"})
	warm := r.ResolvePermissions(ctx, []string{"Viewer", "Editor"})

	assert.Equal(t, cold, warm, "cache state must not change the result")
	assert.Greater(t, c.Stats().Hits, uint64(0), "second resolution should hit the cache")
}

func TestResolvePermissionsPopulatesCache(t *testing.T) {
	c := cache.NewLRU(100, time.Minute)
	r := NewResolver(testTable(t), c, nil)
	ctx := context.Background()

	r.ResolvePermissions(ctx, []string{"Viewer"})

	data, ok := c.Get(ctx, cache.RolePermissionsKey("Viewer"))
	require.True(t, ok)
	assert.JSONEq(t, `["users.read","reports.read"]`, string(data))
}

func TestResolvePermissionsDropsCorruptCacheEntry(t *testing.T) {
	c := cache.NewLRU(100, time.Minute)
	r := NewResolver(testTable(t), c, nil)
	ctx := context.Background()

	c.Set(ctx, cache.RolePermissionsKey("Viewer"), []byte("not json"), time.Minute)

	got := r.ResolvePermissions(ctx, []string{"Viewer"})
	assert.Equal(t, []string{"reports.read", "users.read"}, got)
}

func TestInvalidateRole(t *testing.T) {
	c := cache.NewLRU(100, time.Minute)
	r := NewResolver(testTable(t), c, nil)
	ctx := context.Background()

	r.ResolvePermissions(ctx, []string{"Viewer"})
	r.InvalidateRole(ctx, "Viewer")

	_, ok := c.Get(ctx, cache.RolePermissionsKey("Viewer"))
	assert.False(t, ok)
}

func TestInvalidateTableDropsStaleEntries(t *testing.T) {
	c := cache.NewLRU(100, time.Hour)
	table := testTable(t)
	r := NewResolver(table, c, nil)
	ctx := context.Background()

	assert.Equal(t, []string{"users.*"}, r.ResolvePermissions(ctx, []string{"Admin"}))
	r.ResolvePermissions(ctx, []string{"Viewer"})

	prev := table.Snapshot()
	require.NoError(t, table.Replace(&types.RolePermissionTable{
		GroupToRole:     map[string]string{"G1": "Admin"},
		RolePermissions: map[string][]string{"Admin": {"users.read"}},
	}))
	r.InvalidateTable(ctx, prev, table.Snapshot())

	assert.Equal(t, []string{"users.read"}, r.ResolvePermissions(ctx, []string{"Admin"}))
	// Viewer only exists in the previous snapshot; its entry must be gone too.
	_, ok := c.Get(ctx, cache.RolePermissionsKey("Viewer"))
	assert.False(t, ok)
}

func TestTableReplaceIsAtomic(t *testing.T) {
	table := testTable(t)
	r := NewResolver(table, nil, nil)
	ctx := context.Background()

	err := table.Replace(&types.RolePermissionTable{
		GroupToRole:     map[string]string{"G1": "Admin"},
		RolePermissions: map[string][]string{"Admin": {"users.*"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Admin"}, r.MapGroupsToRoles([]string{"G1"}))
	assert.Equal(t, []string{"users.*"}, r.ResolvePermissions(ctx, []string{"Admin"}))
}

func TestTableRejectsInvalid(t *testing.T) {
	_, err := NewTable(&types.RolePermissionTable{
		GroupToRole: map[string]string{"G1": ""},
	})
	assert.Error(t, err)

	table := testTable(t)
	err = table.Replace(&types.RolePermissionTable{
		RolePermissions: map[string][]string{"": {"x"}},
	})
	assert.Error(t, err)

	// Previous snapshot still live after the failed replace.
	_, ok := table.RoleForGroup("G1")
	assert.True(t, ok)
}
