// Package scheduler runs the periodic background jobs: weekly report dispatch,
// alert rule evaluation and the optional proactive cache refresh.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agent-console/internal/config"
	"agent-console/internal/directory"
	"agent-console/pkg/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type ReportRunner interface {
	RunDue(ctx context.Context) (int, error)
}

type TenantRefresher interface {
	RefreshTenant(ctx context.Context, tenantID uuid.UUID) error
}

type AlertEvaluator interface {
	EvaluateTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

type TenantLister interface {
	Tenants(ctx context.Context) ([]directory.Tenant, error)
}

// jobTimeout bounds one run of any job.
const jobTimeout = 10 * time.Minute

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	base context.Context
	stop context.CancelFunc
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug(msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, append(kv, "err", err)...)
}

// New registers the jobs enabled in cfg. Empty specs disable their job;
// a nil lister disables the per-tenant jobs.
func New(cfg config.SchedulerConfig, reports ReportRunner, refresher TenantRefresher, alerts AlertEvaluator, tenants TenantLister, log *slog.Logger) (*Scheduler, error) {
	log = logger.Component(log, "scheduler")
	cl := cronLogger{l: log}
	base, stop := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:  log,
		base: base,
		stop: stop,
	}

	if cfg.WeeklyReportSpec != "" && reports != nil {
		if _, err := s.cron.AddFunc(cfg.WeeklyReportSpec, func() { s.runReports(reports) }); err != nil {
			stop()
			return nil, fmt.Errorf("weekly report schedule: %w", err)
		}
		log.Info("weekly report job scheduled", "spec", cfg.WeeklyReportSpec)
	}
	if cfg.RefreshSpec != "" && refresher != nil && tenants != nil {
		if _, err := s.cron.AddFunc(cfg.RefreshSpec, func() { s.runRefresh(refresher, tenants) }); err != nil {
			stop()
			return nil, fmt.Errorf("cache refresh schedule: %w", err)
		}
		log.Info("cache refresh job scheduled", "spec", cfg.RefreshSpec)
	}
	if cfg.AlertSpec != "" && alerts != nil && tenants != nil {
		if _, err := s.cron.AddFunc(cfg.AlertSpec, func() { s.runAlerts(alerts, tenants) }); err != nil {
			stop()
			return nil, fmt.Errorf("alert evaluation schedule: %w", err)
		}
		log.Info("alert evaluation job scheduled", "spec", cfg.AlertSpec)
	}
	return s, nil
}

func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) runReports(reports ReportRunner) {
	ctx, cancel := context.WithTimeout(s.base, jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := reports.RunDue(ctx)
	if err != nil {
		s.log.Error("weekly report run failed", "err", err)
		return
	}
	s.log.Info("weekly report run finished", "dispatched", n, "duration_ms", time.Since(start).Milliseconds())
}

func (s *Scheduler) runRefresh(refresher TenantRefresher, tenants TenantLister) {
	ctx, cancel := context.WithTimeout(s.base, jobTimeout)
	defer cancel()

	ts, err := tenants.Tenants(ctx)
	if err != nil {
		s.log.Error("cache refresh: list tenants failed", "err", err)
		return
	}
	failed := 0
	for _, t := range ts {
		if ctx.Err() != nil {
			break
		}
		if err := refresher.RefreshTenant(ctx, t.ID); err != nil {
			failed++
			s.log.Warn("cache refresh failed", "tenant_id", t.ID.String(), "err", err)
		}
	}
	s.log.Info("cache refresh finished", "tenants", len(ts), "failed", failed)
}

func (s *Scheduler) runAlerts(alerts AlertEvaluator, tenants TenantLister) {
	ctx, cancel := context.WithTimeout(s.base, jobTimeout)
	defer cancel()

	ts, err := tenants.Tenants(ctx)
	if err != nil {
		s.log.Error("alert evaluation: list tenants failed", "err", err)
		return
	}
	fired, failed := 0, 0
	for _, t := range ts {
		if ctx.Err() != nil {
			break
		}
		n, err := alerts.EvaluateTenant(ctx, t.ID)
		fired += n
		if err != nil {
			failed++
			s.log.Warn("alert evaluation failed", "tenant_id", t.ID.String(), "err", err)
		}
	}
	s.log.Info("alert evaluation finished", "tenants", len(ts), "fired", fired, "failed", failed)
}
