package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	syncqueue "rentbridge/contexts/legacy-integration/sync-queue-service"
	eventsadapter "rentbridge/contexts/legacy-integration/sync-queue-service/adapters/events"
	"rentbridge/contexts/legacy-integration/sync-queue-service/adapters/legacy"
	postgresadapter "rentbridge/contexts/legacy-integration/sync-queue-service/adapters/postgres"
	"rentbridge/contexts/legacy-integration/sync-queue-service/adapters/syncconfig"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/internal/platform/config"
	"rentbridge/internal/platform/db"
	"rentbridge/internal/platform/httpserver"
	"rentbridge/internal/platform/logging"
	"rentbridge/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	alerts   *httpserver.AlertFeed
	stack    *processStack
	embedded bool
}

type WorkerApp struct {
	stack *processStack
}

// processStack holds what both processes share: one database handle, one event
// bus and the wired sync queue module.
type processStack struct {
	cfg      config.Config
	postgres *db.Postgres
	bus      *messaging.Bus
	module   syncqueue.Module
	logger   *slog.Logger
	closers  []io.Closer
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	rt, err := buildStack(ctx, "api")
	if err != nil {
		return nil, err
	}
	alerts := httpserver.NewAlertFeed()
	server := httpserver.New(rt.module, rt.logger, normalizeAddr(rt.cfg.HTTPPort), httpserver.Options{
		APIToken:       rt.cfg.APIToken,
		StreamInterval: rt.cfg.StatusStreamInterval,
		EnableStream:   rt.cfg.EnableStatusStream,
		Alerts:         alerts,
	})
	return &APIApp{
		server:   server,
		alerts:   alerts,
		stack:    rt,
		embedded: rt.cfg.EmbeddedWorker,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	rt, err := buildStack(ctx, "worker")
	if err != nil {
		return nil, err
	}
	return &WorkerApp{stack: rt}, nil
}

func buildStack(ctx context.Context, process string) (*processStack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	baseLogger, logCloser, err := logging.New(logging.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, err
	}
	logger := baseLogger.With("service", cfg.ServiceName, "process", process)
	rt := &processStack{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		_ = rt.Close()
		return nil, errors.New("POSTGRES_DSN is required")
	}

	syncConfig, err := syncconfig.Load(cfg.SyncConfigPath)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	legacyClient, err := legacy.NewClient(legacy.ClientConfig{
		BaseURL: cfg.LegacyBaseURL,
		APIKey:  cfg.LegacyAPIKey,
		Timeout: cfg.LegacyTimeout,
	}, nil, logger)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("legacy client: %w", err)
	}

	pg, err := db.Connect(ctx, cfg.PostgresDSN, db.Pool{})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.postgres = pg

	if cfg.EnsureSchema {
		if err := postgresadapter.EnsureSchema(ctx, pg.DB, syncConfig.Mappings()); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	rt.bus = messaging.NewBus(logger)
	publisher := eventsadapter.Publisher{
		Bus:   rt.bus,
		Clock: postgresadapter.SystemClock{},
	}
	rt.module = syncqueue.NewModule(syncqueue.Dependencies{
		Queue:       postgresadapter.NewQueueRepository(pg.DB, logger),
		Primary:     postgresadapter.NewPrimaryRepository(pg.DB, logger),
		Legacy:      legacyClient,
		Config:      syncConfig,
		Waker:       publisher,
		Alerts:      publisher,
		Clock:       postgresadapter.SystemClock{},
		IDGenerator: postgresadapter.UUIDGenerator{},
		Backoff: services.BackoffPolicy{
			Base:        cfg.BackoffBase,
			Max:         cfg.BackoffMax,
			MaxAttempts: cfg.MaxAttempts,
		},
		WorkerID:            workerID(cfg, process),
		BatchSize:           cfg.BatchSize,
		PollInterval:        cfg.PollInterval,
		MaintenanceInterval: cfg.MaintenanceInterval,
		Retention:           cfg.Retention,
		ReviewAge:           cfg.ReviewAge,
		StaleTimeout:        cfg.StaleTimeout,
		Logger:              logger,
	})
	return rt, nil
}

// runScheduler subscribes the in-process wake signal and the operator alert
// log to the bus and runs the scheduler until ctx is done.
func (rt *processStack) runScheduler(ctx context.Context) error {
	if err := eventsadapter.SubscribeWake(ctx, rt.bus, rt.module.Wake, rt.logger); err != nil {
		return err
	}
	if err := eventsadapter.SubscribeAlerts(ctx, rt.bus, "legacy-sync-alert-log", eventsadapter.AlertLog{Logger: rt.logger}, rt.logger); err != nil {
		return err
	}
	return rt.module.Scheduler.Run(ctx)
}

func (rt *processStack) Close() error {
	var errs []error
	if rt.postgres != nil {
		errs = append(errs, rt.postgres.Close())
	}
	for _, closer := range rt.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

func (a *APIApp) Run(ctx context.Context) error {
	a.stack.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"embedded_worker", a.embedded,
	)
	if err := eventsadapter.SubscribeAlerts(ctx, a.stack.bus, "legacy-sync-status-stream", a.alerts, a.stack.logger); err != nil {
		return err
	}
	if !a.embedded {
		return a.server.Run(ctx)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.stack.runScheduler(groupCtx)
	})
	group.Go(func() error {
		return a.server.Run(groupCtx)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	return a.stack.Close()
}

// Module exposes the wired queue to one-shot operator commands.
func (w *WorkerApp) Module() syncqueue.Module {
	return w.stack.module
}

func (w *WorkerApp) Logger() *slog.Logger {
	return w.stack.logger
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.stack.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.stack.cfg.PollInterval.String(),
		"batch_size", w.stack.cfg.BatchSize,
	)
	return w.stack.runScheduler(ctx)
}

func (w *WorkerApp) Close() error {
	return w.stack.Close()
}

func workerID(cfg config.Config, process string) string {
	if id := strings.TrimSpace(cfg.WorkerID); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%s-%s-%d", cfg.ServiceName, process, host, os.Getpid())
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
