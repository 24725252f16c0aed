// Package cel compiles and evaluates CEL predicates used as optional
// policy conditions over the claim bag.
package cel

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Engine compiles CEL expressions once and caches the programs.
type Engine struct {
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

// EvalContext contains the variables available to a policy condition.
type EvalContext struct {
	User   map[string]interface{}
	Tenant map[string]interface{}
	Claims map[string]string
}

// NewEngine creates a CEL environment with the authorization helpers.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("tenant", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("claims", cel.MapType(cel.StringType, cel.StringType)),

		// hasRole(user, "Admin") -> bool
		cel.Function("hasRole",
			cel.Overload("hasRole_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(hasRole),
			),
		),
		// hasPermission(user, "users.delete") -> bool, wildcard-aware with
		// the same ancestor semantics as the permission matcher.
		cel.Function("hasPermission",
			cel.Overload("hasPermission_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(hasPermission),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// Compile compiles an expression and caches the program.
func (e *Engine) Compile(expr string) (cel.Program, error) {
	if prog, ok := e.programs.Load(expr); ok {
		return prog.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation failed: %w", issues.Err())
	}

	prog, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation failed: %w", err)
	}

	e.programs.Store(expr, prog)
	return prog, nil
}

// Evaluate runs a compiled program against an evaluation context.
func (e *Engine) Evaluate(prog cel.Program, ctx *EvalContext) (bool, error) {
	result, _, err := prog.Eval(map[string]interface{}{
		"user":   ctx.User,
		"tenant": ctx.Tenant,
		"claims": ctx.Claims,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation failed: %w", err)
	}

	if b, ok := result.Value().(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("CEL expression did not return boolean")
}

// EvaluateExpression compiles and evaluates in one call.
func (e *Engine) EvaluateExpression(expr string, ctx *EvalContext) (bool, error) {
	prog, err := e.Compile(expr)
	if err != nil {
		return false, err
	}
	return e.Evaluate(prog, ctx)
}

func hasRole(userVal, roleVal ref.Val) ref.Val {
	userMap, ok := userVal.Value().(map[string]interface{})
	if !ok {
		return types.False
	}
	role, ok := roleVal.Value().(string)
	if !ok {
		return types.False
	}
	for _, r := range stringSlice(userMap["roles"]) {
		if strings.EqualFold(r, role) {
			return types.True
		}
	}
	return types.False
}

func hasPermission(userVal, permVal ref.Val) ref.Val {
	userMap, ok := userVal.Value().(map[string]interface{})
	if !ok {
		return types.False
	}
	perm, ok := permVal.Value().(string)
	if !ok || perm == "" {
		return types.False
	}

	granted := stringSlice(userMap["permissions"])
	if containsFold(granted, perm) {
		return types.True
	}
	parts := strings.Split(perm, ".")
	for i := len(parts) - 1; i > 0; i-- {
		if containsFold(granted, strings.Join(parts[:i], ".")+".*") {
			return types.True
		}
	}
	return types.False
}

func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
