package directory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/authz-engine/resolution/internal/cache"
)

// DefaultRecordTTL bounds how stale a cached directory record may be.
const DefaultRecordTTL = 5 * time.Minute

// Cached decorates a Directory with read-through caching. Cache failures
// and corrupt entries degrade to the underlying directory; ErrNotFound is
// never cached, so deleted records reappear as misses immediately.
type Cached struct {
	inner  Directory
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps a directory with a cache.
func NewCached(inner Directory, c cache.Cache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		inner:  inner,
		cache:  c,
		ttl:    DefaultRecordTTL,
		logger: logger,
	}
}

// SetRecordTTL overrides the cache lifetime for directory records.
func (d *Cached) SetRecordTTL(ttl time.Duration) {
	if ttl > 0 {
		d.ttl = ttl
	}
}

func (d *Cached) GetUser(ctx context.Context, tenantID, userID string) (*User, error) {
	key := cache.UserRecordKey(userID, tenantID)

	if data, ok := d.cache.Get(ctx, key); ok {
		var u User
		if err := json.Unmarshal(data, &u); err == nil {
			return &u, nil
		}
		d.logger.Debug("dropping corrupt cached user record", zap.String("key", key))
		d.cache.Delete(ctx, key)
	}

	u, err := d.inner.GetUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(u); err == nil {
		d.cache.Set(ctx, key, data, d.ttl)
	}
	return u, nil
}

func (d *Cached) GetUserGroups(ctx context.Context, tenantID, userID string) ([]string, error) {
	key := cache.UserGroupsKey(userID, tenantID)

	if data, ok := d.cache.Get(ctx, key); ok {
		var groups []string
		if err := json.Unmarshal(data, &groups); err == nil {
			return groups, nil
		}
		d.logger.Debug("dropping corrupt cached group list", zap.String("key", key))
		d.cache.Delete(ctx, key)
	}

	groups, err := d.inner.GetUserGroups(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(groups); err == nil {
		d.cache.Set(ctx, key, data, d.ttl)
	}
	return groups, nil
}

// GetUserTransitiveGroups is not cached separately: the expansion depends
// on group records that change independently, so a stale flattened list
// would be hard to invalidate. The underlying directory answers directly.
func (d *Cached) GetUserTransitiveGroups(ctx context.Context, tenantID, userID string) ([]string, error) {
	return d.inner.GetUserTransitiveGroups(ctx, tenantID, userID)
}

func (d *Cached) GetGroup(ctx context.Context, tenantID, groupID string) (*Group, error) {
	key := cache.GroupRecordKey(groupID, tenantID)

	if data, ok := d.cache.Get(ctx, key); ok {
		var g Group
		if err := json.Unmarshal(data, &g); err == nil {
			return &g, nil
		}
		d.logger.Debug("dropping corrupt cached group record", zap.String("key", key))
		d.cache.Delete(ctx, key)
	}

	g, err := d.inner.GetGroup(ctx, tenantID, groupID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(g); err == nil {
		d.cache.Set(ctx, key, data, d.ttl)
	}
	return g, nil
}

func (d *Cached) GetGroupMembers(ctx context.Context, tenantID, groupID string) ([]string, error) {
	g, err := d.GetGroup(ctx, tenantID, groupID)
	if err != nil {
		return nil, err
	}
	members := append([]string(nil), g.MemberIDs...)
	sort.Strings(members)
	return members, nil
}

// ListUsers bypasses the cache; enumeration is an administrative path.
func (d *Cached) ListUsers(ctx context.Context, tenantID string, pageSize, offset int) ([]*User, error) {
	return d.inner.ListUsers(ctx, tenantID, pageSize, offset)
}

// InvalidateUser evicts a user's cached record and group list.
func (d *Cached) InvalidateUser(ctx context.Context, tenantID, userID string) {
	d.cache.Delete(ctx, cache.UserRecordKey(userID, tenantID))
	d.cache.Delete(ctx, cache.UserGroupsKey(userID, tenantID))
}
