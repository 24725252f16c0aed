package cache

import "fmt"

// Key construction for the resolution engine. Keys for tenant-scoped data
// carry the tenant identifier so entries can never leak across tenant
// boundaries; role definitions are global by design and their keys are
// tenant-agnostic.

// UserPermissionsKey is the tenant-scoped key for a user's resolved
// permission set.
func UserPermissionsKey(userID, tenantID string) string {
	return fmt.Sprintf("user:%s:permissions:%s", userID, tenantID)
}

// RolePermissionsKey is the global key for a role's declared permissions.
func RolePermissionsKey(role string) string {
	return fmt.Sprintf("role:%s:permissions", role)
}

// UserRecordKey is the tenant-scoped key for a cached directory user record.
func UserRecordKey(userID, tenantID string) string {
	return fmt.Sprintf("dir:user:%s:%s", userID, tenantID)
}

// UserGroupsKey is the tenant-scoped key for a user's directory group list.
func UserGroupsKey(userID, tenantID string) string {
	return fmt.Sprintf("dir:user:%s:groups:%s", userID, tenantID)
}

// GroupRecordKey is the tenant-scoped key for a cached directory group.
func GroupRecordKey(groupID, tenantID string) string {
	return fmt.Sprintf("dir:group:%s:%s", groupID, tenantID)
}
