package upstream

import (
	"agent-console/internal/calls"

	"github.com/google/uuid"
)

// Tenant is the slice of tenant state the client needs: who is calling and
// which provider credential to use.
type Tenant struct {
	ID     uuid.UUID
	APIKey string
}

type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Voice       string `json:"voice,omitempty"`
}

type PhoneNumber struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Name    string `json:"name,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

type KnowledgeBase struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	AgentID       string `json:"agent_id,omitempty"`
	DocumentCount int    `json:"document_count"`
}

// CallPage is one page of the provider's call listing.
type CallPage struct {
	Calls      []calls.Call
	Page       int
	TotalPages int
}
