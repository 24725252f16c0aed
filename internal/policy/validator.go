package policy

import (
	"fmt"
	"time"

	"github.com/authz-engine/resolution/internal/cel"
	"github.com/authz-engine/resolution/pkg/types"
)

// Validator checks policies at load time so evaluation never meets a
// malformed definition. Time windows that would span midnight are rejected
// here: the evaluator's half-open check cannot represent them.
type Validator struct {
	celEngine *cel.Engine
}

// NewValidator creates a validator. The CEL engine is used to compile
// condition predicates ahead of time.
func NewValidator(celEngine *cel.Engine) *Validator {
	return &Validator{celEngine: celEngine}
}

// ValidatePolicy checks a single policy definition.
func (v *Validator) ValidatePolicy(p *types.Policy) error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}

	for i, perm := range p.RequirePermissions {
		if perm == "" {
			return fmt.Errorf("policy %q: requirePermissions[%d] is empty", p.Name, i)
		}
	}
	for i, role := range p.RequireRoles {
		if role == "" {
			return fmt.Errorf("policy %q: requireRoles[%d] is empty", p.Name, i)
		}
	}

	if len(p.AllowedTenants) > 0 && !p.RequireTenant {
		return fmt.Errorf("policy %q: allowedTenants set without requireTenant", p.Name)
	}

	if p.TimeRestriction != nil {
		if err := p.TimeRestriction.Validate(); err != nil {
			return fmt.Errorf("policy %q: %w", p.Name, err)
		}
		if tz := p.TimeRestriction.Timezone; tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("policy %q: unknown timezone %q", p.Name, tz)
			}
		}
	}

	for claimType := range p.RequireCustomClaims {
		if claimType == "" {
			return fmt.Errorf("policy %q: requireCustomClaims has an empty claim type", p.Name)
		}
	}

	if p.Condition != "" && v.celEngine != nil {
		if _, err := v.celEngine.Compile(p.Condition); err != nil {
			return fmt.Errorf("policy %q: invalid condition: %w", p.Name, err)
		}
	}

	return nil
}

// ValidateAll checks a policy set, reporting the first failure.
func (v *Validator) ValidateAll(policies []*types.Policy) error {
	for _, p := range policies {
		if err := v.ValidatePolicy(p); err != nil {
			return err
		}
	}
	return nil
}
