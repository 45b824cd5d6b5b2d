package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists rules and events. Every method is tenant-scoped; rows
// of another tenant are reported as ErrNotFound.
type Repository interface {
	// ListRules returns newest first.
	ListRules(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Rule, error)
	GetRule(ctx context.Context, tenantID, id uuid.UUID) (Rule, error)
	CreateRule(ctx context.Context, r Rule) (Rule, error)
	UpdateRule(ctx context.Context, r Rule) (Rule, error)
	DeleteRule(ctx context.Context, tenantID, id uuid.UUID) error
	// MarkTriggered sets last_triggered and bumps trigger_count.
	MarkTriggered(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error

	// ListEvents returns newest first, at most f.Limit rows.
	ListEvents(ctx context.Context, tenantID uuid.UUID, f EventFilter) ([]Event, error)
	CreateEvent(ctx context.Context, e Event) (Event, error)
	// Acknowledge keeps the first acknowledgement of an event.
	Acknowledge(ctx context.Context, tenantID, id, by uuid.UUID, at time.Time) (Event, error)
	AcknowledgeAll(ctx context.Context, tenantID, by uuid.UUID, at time.Time) (int, error)
	Stats(ctx context.Context, tenantID uuid.UUID, since time.Time) (Stats, error)
}
