// Package policy provides storage, loading and validation of named
// authorization policies.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/authz-engine/resolution/pkg/types"
)

// ErrUnknownPolicy is returned when a policy name has no registered
// definition. Referencing an unknown policy is a configuration error; the
// evaluator logs it and denies, it never crashes the decision path.
var ErrUnknownPolicy = errors.New("unknown policy")

// Registry is the named policy lookup, built once at startup from the
// configuration snapshot and replaced atomically on reload.
type Registry struct {
	current atomic.Pointer[map[string]*types.Policy]
}

// NewRegistry creates a registry from an initial policy set.
func NewRegistry(policies []*types.Policy) (*Registry, error) {
	r := &Registry{}
	if err := r.ReplaceAll(policies); err != nil {
		return nil, err
	}
	return r, nil
}

// Get retrieves a policy by name.
func (r *Registry) Get(name string) (*types.Policy, error) {
	snapshot := *r.current.Load()
	p, ok := snapshot[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p, nil
}

// All returns every registered policy, sorted by name.
func (r *Registry) All() []*types.Policy {
	snapshot := *r.current.Load()
	out := make([]*types.Policy, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered policies.
func (r *Registry) Count() int {
	return len(*r.current.Load())
}

// ReplaceAll atomically swaps the whole policy set. Duplicate names are a
// configuration error.
func (r *Registry) ReplaceAll(policies []*types.Policy) error {
	next := make(map[string]*types.Policy, len(policies))
	for _, p := range policies {
		if p.Name == "" {
			return fmt.Errorf("policy with empty name")
		}
		if _, dup := next[p.Name]; dup {
			return fmt.Errorf("duplicate policy name %q", p.Name)
		}
		next[p.Name] = p
	}
	r.current.Store(&next)
	return nil
}
