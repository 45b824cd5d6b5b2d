package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu     sync.Mutex
	rules  map[uuid.UUID]Rule
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rules: map[uuid.UUID]Rule{}} }

func (r *MemoryRepo) ListRules(_ context.Context, tenantID uuid.UUID, activeOnly bool) ([]Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Rule, 0)
	for _, rule := range r.rules {
		if rule.TenantID != tenantID || (activeOnly && !rule.Active) {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) GetRule(_ context.Context, tenantID, id uuid.UUID) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok || rule.TenantID != tenantID {
		return Rule{}, ErrNotFound
	}
	return rule, nil
}

func (r *MemoryRepo) CreateRule(_ context.Context, rule Rule) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	r.rules[rule.ID] = rule
	return rule, nil
}

func (r *MemoryRepo) UpdateRule(_ context.Context, rule Rule) (Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rules[rule.ID]
	if !ok || cur.TenantID != rule.TenantID {
		return Rule{}, ErrNotFound
	}
	rule.LastTriggered, rule.TriggerCount = cur.LastTriggered, cur.TriggerCount
	rule.CreatedBy, rule.CreatedAt = cur.CreatedBy, cur.CreatedAt
	r.rules[rule.ID] = rule
	return rule, nil
}

func (r *MemoryRepo) DeleteRule(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rules[id]
	if !ok || cur.TenantID != tenantID {
		return ErrNotFound
	}
	delete(r.rules, id)
	for i := range r.events {
		if e := &r.events[i]; e.RuleID != nil && *e.RuleID == id {
			e.RuleID = nil
		}
	}
	return nil
}

func (r *MemoryRepo) MarkTriggered(_ context.Context, tenantID, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rules[id]
	if !ok || cur.TenantID != tenantID {
		return ErrNotFound
	}
	at = at.UTC()
	cur.LastTriggered = &at
	cur.TriggerCount++
	r.rules[id] = cur
	return nil
}

func (r *MemoryRepo) ListEvents(_ context.Context, tenantID uuid.UUID, f EventFilter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.TenantID != tenantID {
			continue
		}
		if f.Severity != "" && e.Severity != f.Severity {
			continue
		}
		if f.Acknowledged != nil && (e.AcknowledgedAt != nil) != *f.Acknowledged {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) CreateEvent(_ context.Context, e Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	r.events = append(r.events, e)
	return e, nil
}

func (r *MemoryRepo) Acknowledge(_ context.Context, tenantID, id, by uuid.UUID, at time.Time) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		e := &r.events[i]
		if e.ID != id || e.TenantID != tenantID {
			continue
		}
		if e.AcknowledgedAt == nil {
			at, by := at.UTC(), by
			e.AcknowledgedAt, e.AcknowledgedBy = &at, &by
		}
		return *e, nil
	}
	return Event{}, ErrNotFound
}

func (r *MemoryRepo) AcknowledgeAll(_ context.Context, tenantID, by uuid.UUID, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at = at.UTC()
	n := 0
	for i := range r.events {
		e := &r.events[i]
		if e.TenantID != tenantID || e.AcknowledgedAt != nil {
			continue
		}
		at, by := at, by
		e.AcknowledgedAt, e.AcknowledgedBy = &at, &by
		n++
	}
	return n, nil
}

func (r *MemoryRepo) Stats(_ context.Context, tenantID uuid.UUID, since time.Time) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Stats{BySeverity: emptyBySeverity()}
	for _, e := range r.events {
		if e.TenantID != tenantID {
			continue
		}
		if e.AcknowledgedAt == nil {
			st.Unacknowledged++
		}
		if !e.CreatedAt.Before(since) {
			st.Last24h++
			st.BySeverity[e.Severity]++
		}
	}
	for _, rule := range r.rules {
		if rule.TenantID == tenantID && rule.Active {
			st.ActiveRules++
		}
	}
	return st, nil
}

func emptyBySeverity() map[Severity]int {
	return map[Severity]int{SeverityInfo: 0, SeverityWarning: 0, SeverityCritical: 0}
}
