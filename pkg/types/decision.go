package types

// Effect represents the authorization decision outcome.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Condition categories reported in decision reasons. A denial always names
// the category that failed, for audit trails.
const (
	CategoryRole        = "role"
	CategoryPermission  = "permission"
	CategoryTenant      = "tenant"
	CategoryTime        = "time"
	CategoryMFA         = "mfa"
	CategoryCustomClaim = "custom_claim"
	CategoryCondition   = "condition"
	CategoryPolicy      = "policy"
	CategoryContext     = "context"
)

// Decision is the result of an authorization check. Denial is a first-class
// result, never an error: errors are reserved for conditions that prevent
// computing a definite answer, and those fail closed upstream.
type Decision struct {
	Effect   Effect `json:"effect"`
	Policy   string `json:"policy,omitempty"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason"`
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Allow builds an allow decision with a reason.
func Allow(reason string) Decision {
	return Decision{Effect: EffectAllow, Reason: reason}
}

// Deny builds a deny decision naming the failed condition category.
func Deny(category, reason string) Decision {
	return Decision{Effect: EffectDeny, Category: category, Reason: reason}
}
