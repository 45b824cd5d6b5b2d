package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries map[memKey]Entry
}

type memKey struct {
	tenant uuid.UUID
	kind   Kind
	id     string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{entries: map[memKey]Entry{}} }

func (r *MemoryRepo) UpsertMany(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		e.Payload = append([]byte(nil), e.Payload...)
		r.entries[memKey{e.TenantID, e.Kind, e.ExternalID}] = e
	}
	return nil
}

func (r *MemoryRepo) ReadAll(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Entry, error) {
	if _, err := kind.table(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0)
	for k, e := range r.entries {
		if k.tenant == tenantID && k.kind == kind {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (r *MemoryRepo) ReadOne(ctx context.Context, tenantID uuid.UUID, kind Kind, externalID string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[memKey{tenantID, kind, externalID}]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}
