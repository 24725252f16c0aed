package types

import "fmt"

// Policy is a named compound authorization rule. Every present condition
// category must pass (AND across categories); RequireRoles and
// RequirePermissions are each satisfied by any single member (OR within).
// An absent category is vacuously satisfied.
type Policy struct {
	Name string `json:"name" yaml:"name"`

	RequirePermissions []string `json:"requirePermissions,omitempty" yaml:"requirePermissions,omitempty"`
	RequireRoles       []string `json:"requireRoles,omitempty" yaml:"requireRoles,omitempty"`

	RequireTenant  bool     `json:"requireTenant,omitempty" yaml:"requireTenant,omitempty"`
	AllowedTenants []string `json:"allowedTenants,omitempty" yaml:"allowedTenants,omitempty"`

	TimeRestriction *TimeRestriction `json:"timeRestriction,omitempty" yaml:"timeRestriction,omitempty"`

	RequireMFA bool `json:"requireMfa,omitempty" yaml:"requireMfa,omitempty"`

	RequireCustomClaims map[string]string `json:"requireCustomClaims,omitempty" yaml:"requireCustomClaims,omitempty"`

	// Condition is an optional CEL predicate over the claim bag, evaluated
	// after the structured condition categories. Compiled at load time.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// TimeRestriction limits a policy to a half-open hour window
// [StartHour, EndHour) in the given IANA timezone, optionally narrowed to
// ISO weekdays (Monday=1 .. Sunday=7). Windows spanning midnight are not
// representable; the validator rejects StartHour >= EndHour at load time.
type TimeRestriction struct {
	StartHour   int    `json:"startHour" yaml:"startHour"`
	EndHour     int    `json:"endHour" yaml:"endHour"`
	AllowedDays []int  `json:"allowedDays,omitempty" yaml:"allowedDays,omitempty"`
	Timezone    string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Validate checks the window bounds. Timezone resolution is checked by the
// policy validator, which can report the offending zone name.
func (t *TimeRestriction) Validate() error {
	if t.StartHour < 0 || t.StartHour > 23 {
		return fmt.Errorf("startHour %d out of range [0,23]", t.StartHour)
	}
	if t.EndHour < 1 || t.EndHour > 24 {
		return fmt.Errorf("endHour %d out of range [1,24]", t.EndHour)
	}
	if t.StartHour >= t.EndHour {
		return fmt.Errorf("window [%d,%d) spans midnight or is empty; not supported", t.StartHour, t.EndHour)
	}
	for _, d := range t.AllowedDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("allowed day %d out of ISO range [1,7]", d)
		}
	}
	return nil
}

// RolePermissionTable is the process-wide static mapping from directory
// groups to application roles and from roles to granted permissions.
// Loaded once at startup, replaced atomically on reload, never edited in
// place. Group mapping is many-to-one: a group maps to at most one role.
type RolePermissionTable struct {
	GroupToRole     map[string]string   `json:"groupToRole" yaml:"groupToRole"`
	RolePermissions map[string][]string `json:"rolePermissions" yaml:"rolePermissions"`
}

// Validate rejects malformed tables: empty group or role keys, groups mapped
// to roles with no permission entry is allowed (the role simply contributes
// nothing), but empty names are configuration mistakes.
func (t *RolePermissionTable) Validate() error {
	for group, role := range t.GroupToRole {
		if group == "" {
			return fmt.Errorf("groupToRole contains an empty group name")
		}
		if role == "" {
			return fmt.Errorf("group %q maps to an empty role name", group)
		}
	}
	for role, perms := range t.RolePermissions {
		if role == "" {
			return fmt.Errorf("rolePermissions contains an empty role name")
		}
		for i, p := range perms {
			if p == "" {
				return fmt.Errorf("role %q permission %d is empty", role, i)
			}
		}
	}
	return nil
}
