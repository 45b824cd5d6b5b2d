package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agent-console/internal/calls"
	"agent-console/pkg/logger"

	"github.com/google/uuid"
)

// CallSource returns every call of a tenant, unfiltered by user scope.
// Weekly reports are tenant-wide.
type CallSource interface {
	TenantCalls(ctx context.Context, tenantID uuid.UUID) ([]calls.Call, error)
}

// Service manages weekly report settings, generation and dispatch bookkeeping.
// Delivery to recipients happens elsewhere; SendNow records when and to whom.
type Service struct {
	repo  Repository
	calls CallSource
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, src CallSource, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		calls: src,
		log:   logger.Component(log, "reporting"),
		clock: time.Now,
	}
}

func (s *Service) Config(ctx context.Context, tenantID uuid.UUID) (ReportConfig, error) {
	c, err := s.repo.GetConfig(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return DefaultConfig(tenantID), nil
	}
	return c, err
}

func (s *Service) UpdateConfig(ctx context.Context, tenantID uuid.UUID, p ConfigPatch) (ReportConfig, error) {
	cur, err := s.Config(ctx, tenantID)
	if err != nil {
		return ReportConfig{}, err
	}
	next, err := cur.Apply(p)
	if err != nil {
		return ReportConfig{}, err
	}
	next.UpdatedAt = s.clock().UTC()
	if err := s.repo.SaveConfig(ctx, next); err != nil {
		return ReportConfig{}, fmt.Errorf("save report config: %w", err)
	}
	return next, nil
}

func (s *Service) ListReports(ctx context.Context, tenantID uuid.UUID, limit int) ([]WeeklyReport, error) {
	return s.repo.ListReports(ctx, tenantID, limit)
}

// Generate builds and stores the report for the last complete week.
func (s *Service) Generate(ctx context.Context, tenantID uuid.UUID) (WeeklyReport, error) {
	now := s.clock()
	cs, err := s.calls.TenantCalls(ctx, tenantID)
	if err != nil {
		return WeeklyReport{}, fmt.Errorf("load calls: %w", err)
	}
	rep := BuildWeeklyReport(tenantID, cs, PreviousWeek(now), now)
	saved, err := s.repo.SaveReport(ctx, rep)
	if err != nil {
		return WeeklyReport{}, fmt.Errorf("save report: %w", err)
	}
	return saved, nil
}

// SendNow generates the latest report and marks it sent to the configured
// recipients. Disabled configs return ErrReportsDisabled.
func (s *Service) SendNow(ctx context.Context, tenantID uuid.UUID) (WeeklyReport, error) {
	cfg, err := s.Config(ctx, tenantID)
	if err != nil {
		return WeeklyReport{}, err
	}
	if !cfg.Enabled {
		return WeeklyReport{}, ErrReportsDisabled
	}
	return s.dispatch(ctx, cfg)
}

func (s *Service) dispatch(ctx context.Context, cfg ReportConfig) (WeeklyReport, error) {
	rep, err := s.Generate(ctx, cfg.TenantID)
	if err != nil {
		return WeeklyReport{}, err
	}

	at := s.clock().UTC()
	if err := s.repo.MarkSent(ctx, cfg.TenantID, rep.ID, at, cfg.Recipients); err != nil {
		return WeeklyReport{}, fmt.Errorf("mark sent: %w", err)
	}
	rep.SentAt = &at
	rep.SentTo = append([]string{}, cfg.Recipients...)

	cfg.LastSentAt = &at
	cfg.UpdatedAt = at
	if err := s.repo.SaveConfig(ctx, cfg); err != nil {
		return WeeklyReport{}, fmt.Errorf("save report config: %w", err)
	}

	s.log.Info("weekly report dispatched",
		"tenant_id", cfg.TenantID.String(),
		"week_start", rep.WeekStart.Format(dateLayout),
		"recipients", len(cfg.Recipients),
	)
	return rep, nil
}

// RunDue dispatches every enabled config whose schedule matches the current
// hour. Failures are logged per tenant; the count of dispatched reports is returned.
func (s *Service) RunDue(ctx context.Context) (int, error) {
	cfgs, err := s.repo.ListEnabledConfigs(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock()
	sent := 0
	for _, cfg := range cfgs {
		if !cfg.Due(now) {
			continue
		}
		if cfg.LastSentAt != nil && now.Sub(*cfg.LastSentAt) < time.Hour {
			continue
		}
		if _, err := s.dispatch(ctx, cfg); err != nil {
			s.log.Error("weekly report failed", "tenant_id", cfg.TenantID.String(), "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}
