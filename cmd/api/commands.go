package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"agent-console/internal/alerts"
	"agent-console/internal/audit"
	"agent-console/internal/auth"
	"agent-console/internal/cache"
	"agent-console/internal/config"
	"agent-console/internal/console"
	"agent-console/internal/database"
	"agent-console/internal/directory"
	"agent-console/internal/httpapi"
	"agent-console/internal/metrics"
	"agent-console/internal/rbac"
	"agent-console/internal/reporting"
	"agent-console/internal/scheduler"
	"agent-console/internal/templates"
	"agent-console/internal/tenancy"
	"agent-console/internal/throttle"
	"agent-console/internal/upstream"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

type migrateCmd struct{}

func (migrateCmd) Run(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if err := database.Migrate(cfg.MigrationURL(), log); err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.PostgresDSN(), database.PoolConfig{})
	if err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	defer db.Close()

	res, err := templates.NewService(templates.NewPostgresRepo(db), nil, log).SeedPresets(ctx)
	if err != nil {
		return fmt.Errorf("seed template presets: %w", err)
	}
	log.Info("template presets ready", "created", res.Created, "total", res.TotalPresets)
	return nil
}

type serveCmd struct {
	SkipMigrations bool          `help:"Do not apply migrations on startup." env:"SKIP_MIGRATIONS"`
	ShutdownGrace  time.Duration `help:"Time allowed for in-flight requests on shutdown." default:"20s"`
}

func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config load: %w", err)
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	return cfg, log, nil
}

func (s serveCmd) Run(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if !s.SkipMigrations {
		if err := database.Migrate(cfg.MigrationURL(), log); err != nil {
			return err
		}
	}

	db, err := database.Open(ctx, cfg.PostgresDSN(), database.PoolConfig{})
	if err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	defer db.Close()

	rdb, err := throttle.OpenRedis(ctx, throttle.RedisOptions{Addr: cfg.RedisAddr()})
	if err != nil {
		return fmt.Errorf("redis init: %w", err)
	}
	defer rdb.Close()

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth init: %w", err)
	}
	if err := rbac.RegisterValidation(); err != nil {
		return fmt.Errorf("validator init: %w", err)
	}

	up, err := upstream.NewClient(upstream.Options{
		BaseURL:       cfg.Upstream.BaseURL,
		DefaultAPIKey: cfg.Upstream.DefaultAPIKey,
		Timeout:       cfg.Upstream.Timeout,
		RatePerSecond: cfg.Upstream.RatePerSecond,
		Burst:         cfg.Upstream.Burst,
		Logger:        log,
		Observer:      metrics.Upstream{},
	})
	if err != nil {
		return fmt.Errorf("upstream init: %w", err)
	}

	dirRepo := directory.NewPostgresRepo(db)
	consoleSvc := console.NewService(up, dirRepo, cache.NewPostgresRepo(db), console.Options{
		PageSize: cfg.Upstream.PageSize,
		MaxPages: cfg.Upstream.MaxPages,
		Names:    cache.NewNameCache(cfg.Cache.AgentNameCapacity, cfg.Cache.AgentNameTTL),
		Throttle: throttle.NewCap(rdb, cfg.Upstream.TenantConcurrency, 2*cfg.Upstream.Timeout, log),
		Logger:   log,
	})
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	dirSvc := directory.NewService(dirRepo, auditSvc, consoleSvc, log)
	reports := reporting.NewService(reporting.NewPostgresRepo(db), consoleSvc, log)
	tpls := templates.NewService(templates.NewPostgresRepo(db), auditSvc, log)
	if !s.SkipMigrations {
		if _, err := tpls.SeedPresets(ctx); err != nil {
			return fmt.Errorf("seed template presets: %w", err)
		}
	}
	alertSvc := alerts.NewService(alerts.NewPostgresRepo(db), consoleSvc, auditSvc, log)

	jobs, err := scheduler.New(cfg.Scheduler, reports, consoleSvc, alertSvc, dirSvc, log)
	if err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	registerRoutes(r, db, httpapi.Handlers{
		Auth:          tokens,
		Guard:         tenancy.NewGuard(tokens, dirSvc),
		Directory:     dirSvc,
		Console:       consoleSvc,
		Reports:       reports,
		Templates:     tpls,
		Alerts:        alertSvc,
		SecureCookies: cfg.App.Env != "local",
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()
	jobs.Start()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	jobs.Stop(shutdownCtx)
	return nil
}
