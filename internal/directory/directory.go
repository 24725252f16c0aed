// Package directory defines the boundary to the upstream identity
// directory. The engine treats directory records as opaque inputs: it
// resolves what they grant but never interprets or mutates them.
package directory

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means no directory backend was wired in. Callers
	// must not fall back to open behavior.
	ErrNotConfigured = errors.New("directory: not configured")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("directory: not found")
)

// User is a directory user record.
type User struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Group is a directory group record.
type Group struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"tenantId"`
	DisplayName string   `json:"displayName,omitempty"`
	MemberIDs   []string `json:"memberIds,omitempty"`
	// ParentIDs are the groups this group is directly a member of.
	ParentIDs []string `json:"parentIds,omitempty"`
}

// Directory reads identity records. Single lookups return ErrNotFound for
// missing records; list operations return empty slices instead.
type Directory interface {
	GetUser(ctx context.Context, tenantID, userID string) (*User, error)
	GetUserGroups(ctx context.Context, tenantID, userID string) ([]string, error)
	GetUserTransitiveGroups(ctx context.Context, tenantID, userID string) ([]string, error)
	GetGroup(ctx context.Context, tenantID, groupID string) (*Group, error)
	GetGroupMembers(ctx context.Context, tenantID, groupID string) ([]string, error)
	// ListUsers enumerates a tenant's users in stable ID order. A
	// pageSize of zero or less disables the limit; offsets past the end
	// yield an empty page.
	ListUsers(ctx context.Context, tenantID string, pageSize, offset int) ([]*User, error)
}

// Unconfigured returns a Directory whose every operation fails with
// ErrNotConfigured.
func Unconfigured() Directory {
	return unconfigured{}
}

type unconfigured struct{}

func (unconfigured) GetUser(context.Context, string, string) (*User, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) GetUserGroups(context.Context, string, string) ([]string, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) GetUserTransitiveGroups(context.Context, string, string) ([]string, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) GetGroup(context.Context, string, string) (*Group, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) GetGroupMembers(context.Context, string, string) ([]string, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) ListUsers(context.Context, string, int, int) ([]*User, error) {
	return nil, ErrNotConfigured
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
