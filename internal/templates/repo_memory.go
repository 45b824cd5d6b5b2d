package templates

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Template
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[uuid.UUID]Template{}} }

func visible(t Template, tenantID uuid.UUID) bool {
	return t.IsPreset || t.TenantID == tenantID
}

func (r *MemoryRepo) List(_ context.Context, tenantID uuid.UUID, f Filter) ([]Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Template, 0)
	for _, t := range r.rows {
		if t.IsPreset && !f.IncludePresets {
			continue
		}
		if !visible(t, tenantID) || (f.Category != "" && t.Category != f.Category) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsPreset != b.IsPreset {
			return a.IsPreset
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.Name < b.Name
	})
	return out, nil
}

func (r *MemoryRepo) ListPresets(_ context.Context) ([]Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Template, 0)
	for _, t := range r.rows {
		if t.IsPreset {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, tenantID, id uuid.UUID) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || !visible(t, tenantID) {
		return Template{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) nameTaken(t Template) bool {
	for _, o := range r.rows {
		if o.ID != t.ID && o.TenantID == t.TenantID && o.IsPreset == t.IsPreset && o.Name == t.Name {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) Create(_ context.Context, t Template) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if r.nameTaken(t) {
		return Template{}, ErrConflict
	}
	r.rows[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) Update(_ context.Context, t Template) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[t.ID]
	if !ok || cur.IsPreset || cur.TenantID != t.TenantID {
		return Template{}, ErrNotFound
	}
	if r.nameTaken(t) {
		return Template{}, ErrConflict
	}
	t.IsPreset, t.UsageCount, t.CreatedAt, t.CreatedBy = false, cur.UsageCount, cur.CreatedAt, cur.CreatedBy
	r.rows[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[id]
	if !ok || cur.IsPreset || cur.TenantID != tenantID {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *MemoryRepo) IncrementUsage(_ context.Context, tenantID, id uuid.UUID) (Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || !visible(t, tenantID) {
		return Template{}, ErrNotFound
	}
	t.UsageCount++
	r.rows[id] = t
	return t, nil
}
