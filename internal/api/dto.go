package api

import (
	"github.com/authz-engine/resolution/pkg/types"
)

// CheckRequest asks whether the principal holds a single permission.
// Claims are the verified token claims forwarded by the caller; signature
// validation happens at the edge, not here.
type CheckRequest struct {
	Claims     map[string]interface{} `json:"claims" binding:"required"`
	Permission string                 `json:"permission" binding:"required"`
}

// EvaluateRequest asks for a full policy decision.
type EvaluateRequest struct {
	Claims map[string]interface{} `json:"claims" binding:"required"`
	Policy string                 `json:"policy" binding:"required"`
}

// ContextRequest asks for the resolved user context for a claim set.
type ContextRequest struct {
	Claims map[string]interface{} `json:"claims" binding:"required"`
}

// InvalidateRequest names a principal whose cached resolution should be
// dropped, typically after a role-table or directory change.
type InvalidateRequest struct {
	UserID   string `json:"userId" binding:"required"`
	TenantID string `json:"tenantId" binding:"required"`
}

// DecisionResponse carries a decision plus the request correlation ID.
type DecisionResponse struct {
	Decision  types.Decision `json:"decision"`
	RequestID string         `json:"requestId,omitempty"`
}

// ContextResponse carries a resolved user context.
type ContextResponse struct {
	Context   *types.UserContext `json:"context"`
	RequestID string             `json:"requestId,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse reports process health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
