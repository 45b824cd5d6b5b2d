package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists tenants, users and assignments. Lookups scoped by
// tenant return ErrNotFound for rows of other tenants.
type Repository interface {
	GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error)
	FindTenantByName(ctx context.Context, name string) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	UpdateTenantDisplayName(ctx context.Context, id uuid.UUID, displayName string) (Tenant, error)

	// GetUserByID ignores tenancy; callers compare TenantID themselves.
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)
	GetUser(ctx context.Context, tenantID, userID uuid.UUID) (User, error)
	FindUsersByEmail(ctx context.Context, email string) ([]User, error)
	ListUsers(ctx context.Context, tenantID uuid.UUID) ([]User, error)
	// CreateUser and UpdateUser return ErrConflict on a duplicate email within the tenant.
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	// DeleteUser removes the user and their assignments, returning the agent ids unassigned.
	DeleteUser(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error)

	AgentIDsForUser(ctx context.Context, tenantID, userID uuid.UUID) ([]string, error)
	AgentIDsByUser(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID][]string, error)
	ListAssignments(ctx context.Context, tenantID, userID uuid.UUID) ([]Assignment, error)
	// CreateAssignment returns ErrConflict if the agent is already assigned.
	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	// CreateAssignments inserts the missing pairs atomically and returns only
	// the rows it created.
	CreateAssignments(ctx context.Context, tenantID, userID uuid.UUID, agentIDs []string, by uuid.UUID, at time.Time) ([]Assignment, error)
	DeleteAssignment(ctx context.Context, tenantID, userID uuid.UUID, agentID string) error
}
