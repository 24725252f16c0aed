// Package roles expands directory group memberships into application roles
// and roles into granted permissions, backed by the static role-permission
// table.
package roles

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/authz-engine/resolution/pkg/types"
)

// Table holds the process-wide role-permission configuration behind an
// atomic pointer. Readers always see a complete snapshot; reloads swap the
// whole table at once, never edit it in place.
type Table struct {
	current atomic.Pointer[types.RolePermissionTable]
}

// NewTable creates a table from a validated snapshot.
func NewTable(t *types.RolePermissionTable) (*Table, error) {
	if t == nil {
		return nil, fmt.Errorf("role table is nil")
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid role table: %w", err)
	}

	table := &Table{}
	table.current.Store(t)
	return table, nil
}

// LoadTableFile parses a role-permission table from a YAML file.
func LoadTableFile(path string) (*types.RolePermissionTable, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role table: %w", err)
	}

	t := &types.RolePermissionTable{}
	if err := yaml.Unmarshal(content, t); err != nil {
		return nil, fmt.Errorf("failed to parse role table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid role table %s: %w", path, err)
	}
	return t, nil
}

// NewTableFromFile loads and validates a table from disk. Malformed tables
// are fatal at startup.
func NewTableFromFile(path string) (*Table, error) {
	t, err := LoadTableFile(path)
	if err != nil {
		return nil, err
	}
	return NewTable(t)
}

// Snapshot returns the current table. The returned value must be treated as
// read-only.
func (t *Table) Snapshot() *types.RolePermissionTable {
	return t.current.Load()
}

// Replace atomically swaps in a new validated snapshot.
func (t *Table) Replace(next *types.RolePermissionTable) error {
	if next == nil {
		return fmt.Errorf("role table is nil")
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid role table: %w", err)
	}
	t.current.Store(next)
	return nil
}

// ReloadFromFile loads a new snapshot from disk and swaps it in. On any
// error the previous snapshot stays live.
func (t *Table) ReloadFromFile(path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	next, err := LoadTableFile(path)
	if err != nil {
		logger.Error("role table reload failed, keeping previous table",
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}

	t.current.Store(next)
	logger.Info("role table reloaded",
		zap.String("path", path),
		zap.Int("groups", len(next.GroupToRole)),
		zap.Int("roles", len(next.RolePermissions)),
	)
	return nil
}

// RoleForGroup looks up the role a group maps to.
func (t *Table) RoleForGroup(group string) (string, bool) {
	role, ok := t.Snapshot().GroupToRole[group]
	return role, ok
}

// PermissionsForRole looks up a role's declared permissions. Unknown roles
// yield nothing; that is not an error.
func (t *Table) PermissionsForRole(role string) ([]string, bool) {
	perms, ok := t.Snapshot().RolePermissions[role]
	return perms, ok
}
