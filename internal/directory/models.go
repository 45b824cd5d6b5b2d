// Package directory owns tenants, console users and user-to-agent
// assignments, the relational half of the console.
package directory

import (
	"errors"
	"time"

	"agent-console/internal/rbac"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("directory: not found")
	ErrConflict           = errors.New("directory: conflict")
	ErrInvalidArgument    = errors.New("directory: invalid argument")
	ErrSelfModification   = errors.New("directory: cannot change own role, status or account")
	ErrForbidden          = errors.New("directory: forbidden")
	ErrInvalidCredentials = errors.New("directory: invalid credentials")
)

type Tenant struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Plan        string    `json:"plan"`
	// AgentEnabled gates agent configuration changes for the tenant.
	AgentEnabled bool `json:"agent_enabled"`
	// UpstreamAPIKey is the tenant's own provider key; empty means the deployment default.
	UpstreamAPIKey string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Label is the name shown to users.
func (t Tenant) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

type User struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         rbac.Role `json:"role"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserView is a user with the agents currently assigned to them.
type UserView struct {
	User
	AssignedAgents []string `json:"assigned_agents"`
}

type Assignment struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	TenantID        uuid.UUID `json:"-"`
	AgentExternalID string    `json:"agent_external_id"`
	// AssignedBy is uuid.Nil when unknown.
	AssignedBy uuid.UUID `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Actor is the authenticated admin performing a change.
type Actor struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     rbac.Role
	IP       string
}

type NewUser struct {
	Email    string
	Password string
	Role     rbac.Role
}

// UserPatch carries a partial update; nil fields are left alone.
type UserPatch struct {
	Email    *string
	Password *string
	Role     *rbac.Role
	Active   *bool
}

type TenantPatch struct {
	DisplayName *string
}

// BulkResult reports what a bulk assignment actually created. Agents already
// assigned are skipped and not counted.
type BulkResult struct {
	Requested int          `json:"requested"`
	Created   []Assignment `json:"created"`
}
