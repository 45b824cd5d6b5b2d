package reporting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	configs map[uuid.UUID]ReportConfig
	reports map[uuid.UUID][]WeeklyReport
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		configs: map[uuid.UUID]ReportConfig{},
		reports: map[uuid.UUID][]WeeklyReport{},
	}
}

func (r *MemoryRepo) GetConfig(_ context.Context, tenantID uuid.UUID) (ReportConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[tenantID]
	if !ok {
		return ReportConfig{}, ErrNotFound
	}
	c.Recipients = append([]string(nil), c.Recipients...)
	return c, nil
}

func (r *MemoryRepo) SaveConfig(_ context.Context, c ReportConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Recipients = append([]string{}, c.Recipients...)
	r.configs[c.TenantID] = c
	return nil
}

func (r *MemoryRepo) ListEnabledConfigs(context.Context) ([]ReportConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReportConfig, 0)
	for _, c := range r.configs {
		if c.Enabled {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID.String() < out[j].TenantID.String() })
	return out, nil
}

func (r *MemoryRepo) SaveReport(_ context.Context, rep WeeklyReport) (WeeklyReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.reports[rep.TenantID]
	for i, existing := range list {
		if existing.WeekStart.Equal(rep.WeekStart) {
			rep.ID = existing.ID
			rep.SentAt, rep.SentTo = existing.SentAt, existing.SentTo
			list[i] = rep
			return rep, nil
		}
	}
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	r.reports[rep.TenantID] = append(list, rep)
	return rep, nil
}

func (r *MemoryRepo) ListReports(_ context.Context, tenantID uuid.UUID, limit int) ([]WeeklyReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]WeeklyReport{}, r.reports[tenantID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) MarkSent(_ context.Context, tenantID, reportID uuid.UUID, at time.Time, to []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rep := range r.reports[tenantID] {
		if rep.ID == reportID {
			at := at.UTC()
			r.reports[tenantID][i].SentAt = &at
			r.reports[tenantID][i].SentTo = append([]string{}, to...)
			return nil
		}
	}
	return ErrNotFound
}
