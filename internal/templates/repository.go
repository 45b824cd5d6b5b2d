package templates

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists templates. Tenant-scoped reads see the tenant's own
// templates and presets; writes only ever touch the tenant's own rows.
type Repository interface {
	// List orders presets first, then by usage count descending, then name.
	List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]Template, error)
	ListPresets(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (Template, error)
	// Create returns ErrConflict on a duplicate name within the tenant, or
	// among presets when TenantID is uuid.Nil.
	Create(ctx context.Context, t Template) (Template, error)
	// Update and Delete return ErrNotFound for presets and other tenants' rows.
	Update(ctx context.Context, t Template) (Template, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	IncrementUsage(ctx context.Context, tenantID, id uuid.UUID) (Template, error)
}
