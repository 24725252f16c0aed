// Package evaluator makes policy decisions over resolved user contexts.
// A denial is a first-class result carrying the failed condition category;
// errors never reach the caller, every failure mode resolves to deny.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/authz-engine/resolution/internal/audit"
	"github.com/authz-engine/resolution/internal/cel"
	"github.com/authz-engine/resolution/internal/metrics"
	"github.com/authz-engine/resolution/internal/permission"
	"github.com/authz-engine/resolution/internal/policy"
	"github.com/authz-engine/resolution/pkg/types"
)

// Evaluator evaluates named policies against user and tenant contexts.
// The condition categories are checked in a fixed order and the first
// failing category decides; categories absent from a policy pass
// vacuously.
type Evaluator struct {
	registry *policy.Registry
	cel      *cel.Engine
	metrics  metrics.Metrics
	audit    audit.Logger
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMetrics attaches a metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Evaluator) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithAuditLogger attaches an audit logger.
func WithAuditLogger(l audit.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.audit = l
		}
	}
}

// WithClock overrides the time source used for time restrictions.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an evaluator over a policy registry. The CEL engine may be
// nil when no policy uses conditions; evaluating a condition without an
// engine denies.
func New(registry *policy.Registry, celEngine *cel.Engine, logger *zap.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Evaluator{
		registry: registry,
		cel:      celEngine,
		metrics:  metrics.NewNoOpMetrics(),
		audit:    audit.NewNopLogger(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides a named policy for a user in a tenant. Unknown policy
// names deny and are logged; they usually mean a deployment misconfigured
// a policy reference.
func (e *Evaluator) Evaluate(ctx context.Context, policyName string, userCtx *types.UserContext, tenantCtx *types.TenantContext) types.Decision {
	start := e.now()

	decision := e.evaluate(policyName, userCtx, tenantCtx)
	decision.Policy = policyName

	e.observe(ctx, userCtx, tenantCtx, policyName, "", decision, e.now().Sub(start))

	return decision
}

func (e *Evaluator) evaluate(policyName string, userCtx *types.UserContext, tenantCtx *types.TenantContext) types.Decision {
	if !userCtx.Valid() {
		return types.Deny(types.CategoryContext, "user context is not valid for decision-making")
	}

	pol, err := e.registry.Get(policyName)
	if err != nil {
		if errors.Is(err, policy.ErrUnknownPolicy) {
			e.logger.Error("policy lookup failed",
				zap.String("policy", policyName),
				zap.Error(err))
		}
		return types.Deny(types.CategoryPolicy, fmt.Sprintf("unknown policy %q", policyName))
	}

	if d, ok := e.checkRoles(pol, userCtx); !ok {
		return d
	}
	if d, ok := e.checkPermissions(pol, userCtx); !ok {
		return d
	}
	if d, ok := e.checkTenant(pol, tenantCtx); !ok {
		return d
	}
	if d, ok := e.checkTimeRestriction(pol); !ok {
		return d
	}
	if d, ok := e.checkMFA(pol, userCtx); !ok {
		return d
	}
	if d, ok := e.checkCustomClaims(pol, userCtx); !ok {
		return d
	}
	if d, ok := e.checkCondition(pol, userCtx, tenantCtx); !ok {
		return d
	}

	return types.Allow("all policy conditions satisfied")
}

// checkRoles passes when the user holds any one of the required roles.
func (e *Evaluator) checkRoles(pol *types.Policy, userCtx *types.UserContext) (types.Decision, bool) {
	if len(pol.RequireRoles) == 0 {
		return types.Decision{}, true
	}
	if userCtx.HasAnyRole(pol.RequireRoles...) {
		return types.Decision{}, true
	}
	return types.Deny(types.CategoryRole,
		fmt.Sprintf("requires one of roles [%s]", strings.Join(pol.RequireRoles, ", "))), false
}

// checkPermissions passes when any one required permission is covered by
// the granted set, wildcard grants included.
func (e *Evaluator) checkPermissions(pol *types.Policy, userCtx *types.UserContext) (types.Decision, bool) {
	if len(pol.RequirePermissions) == 0 {
		return types.Decision{}, true
	}
	for _, required := range pol.RequirePermissions {
		for _, granted := range userCtx.Permissions {
			if permission.Matches(required, granted) {
				return types.Decision{}, true
			}
		}
	}
	return types.Deny(types.CategoryPermission,
		fmt.Sprintf("requires one of permissions [%s]", strings.Join(pol.RequirePermissions, ", "))), false
}

func (e *Evaluator) checkTenant(pol *types.Policy, tenantCtx *types.TenantContext) (types.Decision, bool) {
	if !pol.RequireTenant {
		return types.Decision{}, true
	}
	if !tenantCtx.IsValid() {
		return types.Deny(types.CategoryTenant, "tenant context missing or invalid"), false
	}
	if len(pol.AllowedTenants) == 0 {
		return types.Decision{}, true
	}
	for _, allowed := range pol.AllowedTenants {
		if allowed == tenantCtx.TenantID {
			return types.Decision{}, true
		}
	}
	return types.Deny(types.CategoryTenant,
		fmt.Sprintf("tenant %q is not in the policy allow-list", tenantCtx.TenantID)), false
}

// checkTimeRestriction evaluates the half-open hour window in the policy
// timezone. An unresolvable timezone denies; the validator should have
// caught it at load time.
func (e *Evaluator) checkTimeRestriction(pol *types.Policy) (types.Decision, bool) {
	tr := pol.TimeRestriction
	if tr == nil {
		return types.Decision{}, true
	}

	loc := time.UTC
	if tr.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(tr.Timezone)
		if err != nil {
			e.logger.Error("time restriction has unresolvable timezone",
				zap.String("policy", pol.Name),
				zap.String("timezone", tr.Timezone),
				zap.Error(err))
			return types.Deny(types.CategoryTime,
				fmt.Sprintf("timezone %q could not be resolved", tr.Timezone)), false
		}
	}

	now := e.now().In(loc)

	if len(tr.AllowedDays) > 0 {
		day := isoWeekday(now.Weekday())
		allowed := false
		for _, d := range tr.AllowedDays {
			if d == day {
				allowed = true
				break
			}
		}
		if !allowed {
			return types.Deny(types.CategoryTime,
				fmt.Sprintf("%s is outside the allowed days", now.Weekday())), false
		}
	}

	if h := now.Hour(); h < tr.StartHour || h >= tr.EndHour {
		return types.Deny(types.CategoryTime,
			fmt.Sprintf("hour %d is outside the window [%d,%d)", h, tr.StartHour, tr.EndHour)), false
	}

	return types.Decision{}, true
}

// checkMFA inspects the authentication method claims. The amr claim is
// authoritative; acr is the fallback. Absence of both denies.
func (e *Evaluator) checkMFA(pol *types.Policy, userCtx *types.UserContext) (types.Decision, bool) {
	if !pol.RequireMFA {
		return types.Decision{}, true
	}

	if amr := userCtx.Claim(types.ClaimAuthMethods); amr != "" {
		if containsFold(amr, "mfa") {
			return types.Decision{}, true
		}
		return types.Deny(types.CategoryMFA, "authentication methods do not include mfa"), false
	}

	if acr := userCtx.Claim(types.ClaimAuthContextClass); acr != "" {
		if containsFold(acr, "mfa") {
			return types.Decision{}, true
		}
		return types.Deny(types.CategoryMFA, "authentication context class does not indicate mfa"), false
	}

	return types.Deny(types.CategoryMFA, "no authentication method claims present"), false
}

// checkCustomClaims requires every entry to match a retained claim value,
// case-insensitively. Multi-valued claims satisfy an entry when any single
// value matches.
func (e *Evaluator) checkCustomClaims(pol *types.Policy, userCtx *types.UserContext) (types.Decision, bool) {
	for claimType, required := range pol.RequireCustomClaims {
		value := userCtx.Claim(claimType)
		if value == "" {
			return types.Deny(types.CategoryCustomClaim,
				fmt.Sprintf("claim %q is absent", claimType)), false
		}

		matched := false
		for _, v := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(v), required) {
				matched = true
				break
			}
		}
		if !matched {
			return types.Deny(types.CategoryCustomClaim,
				fmt.Sprintf("claim %q does not have the required value", claimType)), false
		}
	}
	return types.Decision{}, true
}

// checkCondition evaluates the optional CEL predicate. Evaluation errors
// deny; a predicate we cannot answer is treated the same as false.
func (e *Evaluator) checkCondition(pol *types.Policy, userCtx *types.UserContext, tenantCtx *types.TenantContext) (types.Decision, bool) {
	if pol.Condition == "" {
		return types.Decision{}, true
	}
	if e.cel == nil {
		e.logger.Error("policy has a condition but no CEL engine is configured",
			zap.String("policy", pol.Name))
		return types.Deny(types.CategoryCondition, "condition evaluation is not available"), false
	}

	ok, err := e.cel.EvaluateExpression(pol.Condition, evalContext(userCtx, tenantCtx))
	if err != nil {
		e.logger.Error("condition evaluation failed",
			zap.String("policy", pol.Name),
			zap.Error(err))
		return types.Deny(types.CategoryCondition, "condition evaluation failed"), false
	}
	if !ok {
		return types.Deny(types.CategoryCondition, "condition evaluated to false"), false
	}
	return types.Decision{}, true
}

// CheckPermission decides a single permission against the granted set,
// outside any policy.
func (e *Evaluator) CheckPermission(ctx context.Context, userCtx *types.UserContext, perm string) types.Decision {
	start := e.now()

	var decision types.Decision
	switch {
	case !userCtx.Valid():
		decision = types.Deny(types.CategoryContext, "user context is not valid for decision-making")
	case perm == "":
		decision = types.Deny(types.CategoryPermission, "no permission specified")
	case userCtx.HasPermission(perm):
		decision = types.Allow(fmt.Sprintf("permission %q is granted", perm))
	default:
		decision = types.Deny(types.CategoryPermission,
			fmt.Sprintf("permission %q is not granted", perm))
	}

	e.observe(ctx, userCtx, nil, "", perm, decision, e.now().Sub(start))
	e.metrics.RecordPermissionCheck(string(decision.Effect))

	return decision
}

func (e *Evaluator) observe(ctx context.Context, userCtx *types.UserContext, tenantCtx *types.TenantContext, policyName, perm string, d types.Decision, elapsed time.Duration) {
	e.metrics.RecordDecision(string(d.Effect), d.Category, elapsed)

	event := &audit.DecisionEvent{
		Policy:     policyName,
		Permission: perm,
		Effect:     string(d.Effect),
		Category:   d.Category,
		Reason:     d.Reason,
		DurationUs: elapsed.Microseconds(),
	}
	if userCtx != nil {
		event.UserID = userCtx.UserID
		event.TenantID = userCtx.TenantID
	}
	if tenantCtx != nil && event.TenantID == "" {
		event.TenantID = tenantCtx.TenantID
	}
	if perm != "" {
		event.EventType = audit.EventTypePermissionCheck
	}
	e.audit.LogDecision(ctx, event)

	e.logger.Debug("decision",
		zap.String("policy", policyName),
		zap.String("permission", perm),
		zap.String("effect", string(d.Effect)),
		zap.String("category", d.Category),
		zap.String("reason", d.Reason),
		zap.Duration("elapsed", elapsed))
}

func evalContext(userCtx *types.UserContext, tenantCtx *types.TenantContext) *cel.EvalContext {
	ec := &cel.EvalContext{
		User: map[string]interface{}{
			"id":          userCtx.UserID,
			"email":       userCtx.Email,
			"tenantId":    userCtx.TenantID,
			"groups":      userCtx.Groups,
			"roles":       userCtx.Roles,
			"permissions": userCtx.Permissions,
		},
		Claims: userCtx.Claims,
	}
	if tenantCtx != nil {
		ec.Tenant = map[string]interface{}{
			"id":     tenantCtx.TenantID,
			"userId": tenantCtx.UserID,
		}
	} else {
		ec.Tenant = map[string]interface{}{}
	}
	return ec
}

// isoWeekday maps Go's Sunday-first weekday to ISO 8601 (Monday=1).
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
