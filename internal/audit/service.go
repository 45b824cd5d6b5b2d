package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is append-only; there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records administrative changes. Records are internal and not
// exposed to tenant users.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == uuid.Nil || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record builds an event from an actor and optional metadata. A metadata
// value that fails to marshal is dropped rather than failing the record.
func (s *Service) Record(ctx context.Context, tenantID uuid.UUID, typ EventType, actor Actor, targetUserID, agentID, message string, metadata any) error {
	e := Event{
		TenantID:        tenantID,
		Type:            typ,
		ActorUserID:     actor.UserID,
		ActorRole:       actor.Role,
		IPAddress:       actor.IP,
		TargetUserID:    targetUserID,
		AgentExternalID: agentID,
		Message:         message,
	}
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			e.Metadata = b
		}
	}
	return s.Append(ctx, e)
}
