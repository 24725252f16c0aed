package directory

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Directory for tests and single-node
// deployments. Records are keyed per tenant.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]map[string]*User  // tenant -> user ID -> record
	groups map[string]map[string]*Group // tenant -> group ID -> record
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]map[string]*User),
		groups: make(map[string]map[string]*Group),
	}
}

// PutUser adds or replaces a user record.
func (m *Memory) PutUser(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.users[u.TenantID] == nil {
		m.users[u.TenantID] = make(map[string]*User)
	}
	cp := *u
	m.users[u.TenantID][u.ID] = &cp
}

// PutGroup adds or replaces a group record.
func (m *Memory) PutGroup(g *Group) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.groups[g.TenantID] == nil {
		m.groups[g.TenantID] = make(map[string]*Group)
	}
	cp := *g
	cp.MemberIDs = append([]string(nil), g.MemberIDs...)
	cp.ParentIDs = append([]string(nil), g.ParentIDs...)
	m.groups[g.TenantID][g.ID] = &cp
}

func (m *Memory) GetUser(_ context.Context, tenantID, userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[tenantID][userID]
	if !ok {
		return nil, notFound("user", userID)
	}
	cp := *u
	return &cp, nil
}

// GetUserGroups returns the groups the user is a direct member of,
// sorted for determinism.
func (m *Memory) GetUserGroups(_ context.Context, tenantID, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var groups []string
	for id, g := range m.groups[tenantID] {
		for _, member := range g.MemberIDs {
			if member == userID {
				groups = append(groups, id)
				break
			}
		}
	}
	sort.Strings(groups)
	return groups, nil
}

// GetUserTransitiveGroups walks nested membership breadth-first: the
// direct groups plus every group those groups are members of.
func (m *Memory) GetUserTransitiveGroups(ctx context.Context, tenantID, userID string) ([]string, error) {
	direct, err := m.GetUserGroups(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool, len(direct))
	queue := append([]string(nil), direct...)
	for _, id := range direct {
		seen[id] = true
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		g, ok := m.groups[tenantID][id]
		if !ok {
			continue
		}
		for _, parent := range g.ParentIDs {
			if !seen[parent] {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}

	all := make([]string, 0, len(seen))
	for id := range seen {
		all = append(all, id)
	}
	sort.Strings(all)
	return all, nil
}

func (m *Memory) GetGroup(_ context.Context, tenantID, groupID string) (*Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[tenantID][groupID]
	if !ok {
		return nil, notFound("group", groupID)
	}
	cp := *g
	cp.MemberIDs = append([]string(nil), g.MemberIDs...)
	cp.ParentIDs = append([]string(nil), g.ParentIDs...)
	return &cp, nil
}

func (m *Memory) GetGroupMembers(_ context.Context, tenantID, groupID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[tenantID][groupID]
	if !ok {
		return nil, notFound("group", groupID)
	}
	members := append([]string(nil), g.MemberIDs...)
	sort.Strings(members)
	return members, nil
}

func (m *Memory) ListUsers(_ context.Context, tenantID string, pageSize, offset int) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*User, 0, len(m.users[tenantID]))
	for _, u := range m.users[tenantID] {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(users) {
		return []*User{}, nil
	}
	users = users[offset:]
	if pageSize > 0 && pageSize < len(users) {
		users = users[:pageSize]
	}
	return users, nil
}
