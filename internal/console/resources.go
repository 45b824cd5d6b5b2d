package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"agent-console/internal/access"
	"agent-console/internal/cache"
	"agent-console/internal/calls"
	"agent-console/internal/tenancy"
	"agent-console/internal/upstream"

	"github.com/google/uuid"
)

func (s *Service) fetchAgents(ctx context.Context, ut upstream.Tenant) (cache.Listing[upstream.Agent], error) {
	l, err := cache.ReadThrough(ctx, s.agents, ut.ID, func(ctx context.Context) ([]upstream.Agent, error) {
		return throttled(ctx, s, ut.ID, func(ctx context.Context) ([]upstream.Agent, error) {
			return s.up.ListAgents(ctx, ut)
		})
	}, s.log)
	if err != nil {
		return l, err
	}
	s.rememberNames(ut.ID, l.Items)
	return l, nil
}

func (s *Service) ListAgents(ctx context.Context, p tenancy.Principal) (cache.Listing[upstream.Agent], error) {
	ut, scope, err := s.request(ctx, p)
	if err != nil {
		return cache.Listing[upstream.Agent]{}, err
	}
	l, err := s.fetchAgents(ctx, ut)
	if err != nil {
		return l, err
	}
	l.Items = access.Filter(scope, l.Items, func(a upstream.Agent) string { return a.ID })
	return l, nil
}

func (s *Service) GetAgent(ctx context.Context, p tenancy.Principal, id string) (upstream.Agent, cache.Source, error) {
	ut, scope, err := s.request(ctx, p)
	if err != nil {
		return upstream.Agent{}, "", err
	}
	if !scope.Visible(id) {
		return upstream.Agent{}, "", ErrNotFound
	}
	a, src, err := cache.GetThrough(ctx, s.agents, ut.ID, id, func(ctx context.Context) (upstream.Agent, error) {
		return throttled(ctx, s, ut.ID, func(ctx context.Context) (upstream.Agent, error) {
			return s.up.GetAgent(ctx, ut, id)
		})
	}, s.log)
	if err != nil {
		return upstream.Agent{}, "", notFound(err)
	}
	s.names.Set(ut.ID, a.ID, a.Name)
	return a, src, nil
}

// UpdateAgent forwards a partial update. There is no cache fallback for writes.
func (s *Service) UpdateAgent(ctx context.Context, p tenancy.Principal, id string, patch map[string]any) (upstream.Agent, error) {
	t, ut, err := s.tenant(ctx, p.TenantID)
	if err != nil {
		return upstream.Agent{}, err
	}
	if !t.AgentEnabled {
		return upstream.Agent{}, ErrFeatureDisabled
	}
	scope, err := s.Scope(ctx, p)
	if err != nil {
		return upstream.Agent{}, err
	}
	if !scope.Visible(id) {
		return upstream.Agent{}, ErrNotFound
	}
	if len(patch) == 0 {
		return upstream.Agent{}, fmt.Errorf("%w: empty update", ErrInvalidQuery)
	}

	a, err := throttled(ctx, s, ut.ID, func(ctx context.Context) (upstream.Agent, error) {
		return s.up.UpdateAgent(ctx, ut, id, patch)
	})
	if err != nil {
		return upstream.Agent{}, notFound(err)
	}
	if perr := s.agents.Put(ctx, ut.ID, []upstream.Agent{a}); perr != nil {
		s.log.Warn("cache write-through failed", "kind", cache.KindAgent, "tenant_id", ut.ID.String(), "err", perr)
	}
	s.names.Set(ut.ID, a.ID, a.Name)
	s.log.Info("agent updated", "tenant_id", ut.ID.String(), "user_id", p.UserID.String(), "agent_id", id)
	return a, nil
}

// TenantAgents lists every agent of a tenant, unscoped, sorted by name.
func (s *Service) TenantAgents(ctx context.Context, tenantID uuid.UUID) (cache.Listing[upstream.Agent], error) {
	_, ut, err := s.tenant(ctx, tenantID)
	if err != nil {
		return cache.Listing[upstream.Agent]{}, err
	}
	l, err := s.fetchAgents(ctx, ut)
	if err != nil {
		return l, err
	}
	items := append([]upstream.Agent(nil), l.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	l.Items = items
	return l, nil
}

// KnownAgents returns the set of the tenant's provider agent ids, read
// through the cache like any other agent listing.
func (s *Service) KnownAgents(ctx context.Context, tenantID uuid.UUID) (map[string]struct{}, error) {
	_, ut, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	l, err := s.fetchAgents(ctx, ut)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(l.Items))
	for _, a := range l.Items {
		known[a.ID] = struct{}{}
	}
	return known, nil
}

var ErrInvalidQuery = errors.New("console: invalid query")

// CallQuery filters one page of the call listing.
type CallQuery struct {
	Status  string
	AgentID string
	Limit   int
	Page    int
}

func (q CallQuery) normalize() (CallQuery, error) {
	if q.Limit == 0 {
		q.Limit = 50
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 200 {
		return q, fmt.Errorf("%w: limit must be between 1 and 200", ErrInvalidQuery)
	}
	if q.Page < 1 {
		return q, fmt.Errorf("%w: page must be at least 1", ErrInvalidQuery)
	}
	q.Status = strings.TrimSpace(q.Status)
	q.AgentID = strings.TrimSpace(q.AgentID)
	return q, nil
}

func (q CallQuery) match(c calls.Call) bool {
	if q.Status != "" && c.Status != calls.NormalizeStatus(q.Status) {
		return false
	}
	if q.AgentID != "" && c.AgentID != q.AgentID {
		return false
	}
	return true
}

type CallPage struct {
	Items      []calls.Call
	Source     cache.Source
	Page       int
	TotalPages int
}

// ListCalls returns one page. Live pages come from the provider and are
// filtered after the fact; cached pages are filtered first, then cut.
func (s *Service) ListCalls(ctx context.Context, p tenancy.Principal, q CallQuery) (CallPage, error) {
	q, err := q.normalize()
	if err != nil {
		return CallPage{}, err
	}
	ut, scope, err := s.request(ctx, p)
	if err != nil {
		return CallPage{}, err
	}

	totalPages := 1
	l, err := cache.ReadThrough(ctx, s.calls, ut.ID, func(ctx context.Context) ([]calls.Call, error) {
		pg, err := throttled(ctx, s, ut.ID, func(ctx context.Context) (upstream.CallPage, error) {
			return s.up.ListCalls(ctx, ut, q.Limit, q.Page)
		})
		totalPages = pg.TotalPages
		return pg.Calls, err
	}, s.log)
	if err != nil {
		return CallPage{}, err
	}

	visible := func(c calls.Call) bool { return scope.Visible(c.AgentID) && q.match(c) }
	out := CallPage{Source: l.Source, Page: q.Page, TotalPages: max(totalPages, 1)}

	if l.Source == cache.SourceCache {
		kept := make([]calls.Call, 0, len(l.Items))
		for _, c := range l.Items {
			if visible(c) {
				kept = append(kept, c)
			}
		}
		sortNewestFirst(kept)
		out.TotalPages = max((len(kept)+q.Limit-1)/q.Limit, 1)
		from := min((q.Page-1)*q.Limit, len(kept))
		to := min(from+q.Limit, len(kept))
		out.Items = kept[from:to]
	} else {
		out.Items = make([]calls.Call, 0, len(l.Items))
		for _, c := range l.Items {
			if visible(c) {
				out.Items = append(out.Items, c)
			}
		}
	}
	s.nameCalls(ut.ID, out.Items)
	return out, nil
}

func sortNewestFirst(cs []calls.Call) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, aok := cs[i].Start()
		b, bok := cs[j].Start()
		if aok != bok {
			return aok
		}
		return a.After(b)
	})
}

// GetCall hides calls of agents outside the caller's scope as not found.
func (s *Service) GetCall(ctx context.Context, p tenancy.Principal, id string) (calls.Call, cache.Source, error) {
	ut, scope, err := s.request(ctx, p)
	if err != nil {
		return calls.Call{}, "", err
	}
	c, src, err := cache.GetThrough(ctx, s.calls, ut.ID, id, func(ctx context.Context) (calls.Call, error) {
		return throttled(ctx, s, ut.ID, func(ctx context.Context) (calls.Call, error) {
			return s.up.GetCall(ctx, ut, id)
		})
	}, s.log)
	if err != nil {
		return calls.Call{}, "", notFound(err)
	}
	if !scope.Visible(c.AgentID) {
		return calls.Call{}, "", ErrNotFound
	}
	if c.AgentName == "" {
		c.AgentName = s.agentName(ut.ID, c.AgentID)
	}
	return c, src, nil
}

func (s *Service) ListPhoneNumbers(ctx context.Context, p tenancy.Principal) (cache.Listing[upstream.PhoneNumber], error) {
	ut, scope, err := s.request(ctx, p)
	if err != nil {
		return cache.Listing[upstream.PhoneNumber]{}, err
	}
	l, err := cache.ReadThrough(ctx, s.phones, ut.ID, func(ctx context.Context) ([]upstream.PhoneNumber, error) {
		return throttled(ctx, s, ut.ID, func(ctx context.Context) ([]upstream.PhoneNumber, error) {
			return s.up.ListPhoneNumbers(ctx, ut)
		})
	}, s.log)
	if err != nil {
		return l, err
	}
	l.Items = access.Filter(scope, l.Items, func(n upstream.PhoneNumber) string { return n.AgentID })
	return l, nil
}

func (s *Service) ListKnowledgeBases(ctx context.Context, p tenancy.Principal) (cache.Listing[upstream.KnowledgeBase], error) {
	ut, scope, err := s.request(ctx, p)
	if err != nil {
		return cache.Listing[upstream.KnowledgeBase]{}, err
	}
	l, err := cache.ReadThrough(ctx, s.kbs, ut.ID, func(ctx context.Context) ([]upstream.KnowledgeBase, error) {
		return throttled(ctx, s, ut.ID, func(ctx context.Context) ([]upstream.KnowledgeBase, error) {
			return s.up.ListKnowledgeBases(ctx, ut)
		})
	}, s.log)
	if err != nil {
		return l, err
	}
	l.Items = access.Filter(scope, l.Items, func(k upstream.KnowledgeBase) string { return k.AgentID })
	return l, nil
}
