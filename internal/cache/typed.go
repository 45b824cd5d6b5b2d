package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Typed stores records of one Go type under one Kind.
type Typed[T any] struct {
	repo    Repository
	kind    Kind
	id      func(T) string
	agentID func(T) string
	clock   func() time.Time
}

// NewTyped binds a record type to a kind. id extracts the provider id;
// agentID extracts the linked agent (may return "").
func NewTyped[T any](repo Repository, kind Kind, id, agentID func(T) string) *Typed[T] {
	return &Typed[T]{repo: repo, kind: kind, id: id, agentID: agentID, clock: time.Now}
}

func (s *Typed[T]) Kind() Kind { return s.kind }

// Put upserts items for a tenant. Items without an id are skipped.
func (s *Typed[T]) Put(ctx context.Context, tenantID uuid.UUID, items []T) error {
	now := s.clock().UTC()
	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		id := s.id(it)
		if id == "" {
			continue
		}
		payload, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("cache: encode %s %s: %w", s.kind, id, err)
		}
		entries = append(entries, Entry{
			TenantID:   tenantID,
			Kind:       s.kind,
			ExternalID: id,
			AgentID:    s.agentID(it),
			Payload:    payload,
			SyncedAt:   now,
		})
	}
	return s.repo.UpsertMany(ctx, entries)
}

func (s *Typed[T]) All(ctx context.Context, tenantID uuid.UUID) ([]T, error) {
	entries, err := s.repo.ReadAll(ctx, tenantID, s.kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Payload, &v); err != nil {
			return nil, fmt.Errorf("cache: decode %s %s: %w", s.kind, e.ExternalID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Typed[T]) Get(ctx context.Context, tenantID uuid.UUID, id string) (T, error) {
	var v T
	e, err := s.repo.ReadOne(ctx, tenantID, s.kind, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return v, fmt.Errorf("cache: decode %s %s: %w", s.kind, id, err)
	}
	return v, nil
}
