package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the resolution engine.
const (
	EventTypeDecision        = "authz.decision"
	EventTypePermissionCheck = "authz.permission_check"
	EventTypePolicyReload    = "authz.policy_reload"
	EventTypeSystemStartup   = "system.startup"
	EventTypeSystemShutdown  = "system.shutdown"
)

// DecisionEvent records the outcome of a single policy evaluation or
// permission check.
type DecisionEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	TenantID   string    `json:"tenant_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Policy     string    `json:"policy,omitempty"`
	Permission string    `json:"permission,omitempty"`
	Effect     string    `json:"effect"`
	Category   string    `json:"category,omitempty"`
	Reason     string    `json:"reason"`
	DurationUs int64     `json:"duration_us"`
}

// SystemEvent records lifecycle markers such as startup, shutdown and
// policy reloads.
type SystemEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func generateEventID() string {
	return uuid.NewString()
}
