package console

import (
	"context"
	"errors"
	"fmt"

	"agent-console/internal/access"
	"agent-console/internal/cache"
	"agent-console/internal/calls"
	"agent-console/internal/reporting"
	"agent-console/internal/tenancy"
	"agent-console/internal/upstream"

	"github.com/google/uuid"
)

const (
	MinAnalyticsDays = 7
	MaxAnalyticsDays = 90
)

// allCalls pulls up to maxPages pages. A failure after the first page keeps
// what was collected so far.
func (s *Service) allCalls(ctx context.Context, ut upstream.Tenant) ([]calls.Call, error) {
	out := make([]calls.Call, 0, s.pageSize)
	for page := 1; page <= s.maxPages; page++ {
		pg, err := throttled(ctx, s, ut.ID, func(ctx context.Context) (upstream.CallPage, error) {
			return s.up.ListCalls(ctx, ut, s.pageSize, page)
		})
		if err != nil {
			if page == 1 {
				return nil, err
			}
			s.log.Warn("call history truncated", "tenant_id", ut.ID.String(), "page", page, "err", err)
			break
		}
		out = append(out, pg.Calls...)
		if page >= pg.TotalPages || len(pg.Calls) == 0 {
			break
		}
	}
	return out, nil
}

func (s *Service) tenantCalls(ctx context.Context, ut upstream.Tenant) (cache.Listing[calls.Call], error) {
	return cache.ReadThrough(ctx, s.calls, ut.ID, func(ctx context.Context) ([]calls.Call, error) {
		return s.allCalls(ctx, ut)
	}, s.log)
}

// TenantCalls is the unscoped call history used by weekly reports.
func (s *Service) TenantCalls(ctx context.Context, tenantID uuid.UUID) ([]calls.Call, error) {
	_, ut, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	l, err := s.tenantCalls(ctx, ut)
	if err != nil {
		return nil, err
	}
	return l.Items, nil
}

// scopedCalls never fails on provider errors: it degrades to whatever the
// cache holds, and to nothing when the cache is empty too.
func (s *Service) scopedCalls(ctx context.Context, p tenancy.Principal) ([]calls.Call, access.Scope, cache.Source, error) {
	ut, scope, err := s.request(ctx, p)
	if err != nil {
		return nil, access.Scope{}, "", err
	}

	l, err := s.tenantCalls(ctx, ut)
	if err != nil {
		if ctx.Err() != nil {
			return nil, access.Scope{}, "", ctx.Err()
		}
		if errors.Is(err, upstream.ErrRejected) {
			s.log.Error("provider rejected analytics call listing", "tenant_id", ut.ID.String(), "err", err)
		} else {
			s.log.Warn("analytics falling back to cache", "tenant_id", ut.ID.String(), "err", err)
		}
		cached, cerr := s.calls.All(ctx, ut.ID)
		if cerr != nil {
			s.log.Error("cache read failed", "kind", cache.KindCall, "tenant_id", ut.ID.String(), "err", cerr)
			cached = nil
		}
		l = cache.Listing[calls.Call]{Items: cached, Source: cache.SourceCache}
	}

	visible := access.Filter(scope, l.Items, func(c calls.Call) string { return c.AgentID })
	return visible, scope, l.Source, nil
}

func (s *Service) Overview(ctx context.Context, p tenancy.Principal, w reporting.Window) (reporting.Overview, cache.Source, error) {
	cs, _, src, err := s.scopedCalls(ctx, p)
	if err != nil {
		return reporting.Overview{}, "", err
	}
	ov := reporting.ComputeOverview(cs, w)
	for i := range ov.Agents {
		ov.Agents[i].AgentName = s.agentName(p.TenantID, ov.Agents[i].AgentID)
	}
	return ov, src, nil
}

func checkDays(days int) error {
	if days < MinAnalyticsDays || days > MaxAnalyticsDays {
		return fmt.Errorf("%w: days must be between %d and %d", reporting.ErrInvalidRequest, MinAnalyticsDays, MaxAnalyticsDays)
	}
	return nil
}

// Trends is one point per UTC day over the last days, gaps filled with zeros.
func (s *Service) Trends(ctx context.Context, p tenancy.Principal, days int) ([]reporting.TrendPoint, cache.Source, error) {
	if err := checkDays(days); err != nil {
		return nil, "", err
	}
	cs, _, src, err := s.scopedCalls(ctx, p)
	if err != nil {
		return nil, "", err
	}
	w := reporting.LastDays(days, s.clock())
	return reporting.TrendSeries(reporting.InWindow(cs, w), w.Start, w.End), src, nil
}

func (s *Service) PeakHours(ctx context.Context, p tenancy.Principal, days int) (reporting.PeakHours, cache.Source, error) {
	if err := checkDays(days); err != nil {
		return reporting.PeakHours{}, "", err
	}
	cs, _, src, err := s.scopedCalls(ctx, p)
	if err != nil {
		return reporting.PeakHours{}, "", err
	}
	w := reporting.LastDays(days, s.clock())
	return reporting.ComputePeakHours(reporting.InWindow(cs, w)), src, nil
}

// Dashboard counts agents from the cache for admins, and from assignments
// and call activity for everyone else.
func (s *Service) Dashboard(ctx context.Context, p tenancy.Principal, w reporting.Window) (reporting.Dashboard, cache.Source, error) {
	cs, scope, src, err := s.scopedCalls(ctx, p)
	if err != nil {
		return reporting.Dashboard{}, "", err
	}
	d := reporting.ComputeDashboard(cs, w, s.clock())

	if scope.IsUnrestricted() {
		agents, err := s.agents.All(ctx, p.TenantID)
		if err != nil {
			s.log.Error("cache read failed", "kind", cache.KindAgent, "tenant_id", p.TenantID.String(), "err", err)
		}
		d.TotalAgents = len(agents)
		for _, a := range agents {
			if a.Status == "active" {
				d.ActiveAgents++
			}
		}
	} else {
		d.TotalAgents = scope.Len()
		d.ActiveAgents = len(d.AgentsSeen)
	}
	return d, src, nil
}

// RefreshTenant pulls every resource kind through the cache.
func (s *Service) RefreshTenant(ctx context.Context, tenantID uuid.UUID) error {
	_, ut, err := s.tenant(ctx, tenantID)
	if err != nil {
		return err
	}
	var errs []error
	if _, err := s.fetchAgents(ctx, ut); err != nil {
		errs = append(errs, fmt.Errorf("agents: %w", err))
	}
	if _, err := s.tenantCalls(ctx, ut); err != nil {
		errs = append(errs, fmt.Errorf("calls: %w", err))
	}
	if _, err := cache.ReadThrough(ctx, s.phones, ut.ID, func(ctx context.Context) ([]upstream.PhoneNumber, error) {
		return throttled(ctx, s, ut.ID, func(ctx context.Context) ([]upstream.PhoneNumber, error) {
			return s.up.ListPhoneNumbers(ctx, ut)
		})
	}, s.log); err != nil {
		errs = append(errs, fmt.Errorf("phone numbers: %w", err))
	}
	if _, err := cache.ReadThrough(ctx, s.kbs, ut.ID, func(ctx context.Context) ([]upstream.KnowledgeBase, error) {
		return throttled(ctx, s, ut.ID, func(ctx context.Context) ([]upstream.KnowledgeBase, error) {
			return s.up.ListKnowledgeBases(ctx, ut)
		})
	}, s.log); err != nil {
		errs = append(errs, fmt.Errorf("knowledge bases: %w", err))
	}
	return errors.Join(errs...)
}
