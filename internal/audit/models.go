package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable, append-only audit record.
//
// Events are never updated or deleted; the table carries rules that turn
// UPDATE and DELETE into no-ops. TenantID is required.
type Event struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`

	Type EventType `json:"type"`

	// ActorUserID is the authenticated user causing the event.
	ActorUserID string `json:"actor_user_id,omitempty"`
	ActorRole   string `json:"actor_role,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`

	TargetUserID    string `json:"target_user_id,omitempty"`
	AgentExternalID string `json:"agent_external_id,omitempty"`

	Message  string          `json:"message,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventUserCreated     EventType = "user_created"
	EventUserUpdated     EventType = "user_updated"
	EventUserDeleted     EventType = "user_deleted"
	EventAgentAssigned   EventType = "agent_assigned"
	EventAgentUnassigned EventType = "agent_unassigned"
	EventTenantUpdated   EventType = "tenant_updated"

	EventTemplateCreated EventType = "template_created"
	EventTemplateUpdated EventType = "template_updated"
	EventTemplateDeleted EventType = "template_deleted"

	EventAlertRuleCreated EventType = "alert_rule_created"
	EventAlertRuleUpdated EventType = "alert_rule_updated"
	EventAlertRuleDeleted EventType = "alert_rule_deleted"
)

// Actor identifies who did something and from where.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
