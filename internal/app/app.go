package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"MediaMonitor/internal/config"
	"MediaMonitor/internal/httpclient"
	"MediaMonitor/internal/infrastructure/llm"
	"MediaMonitor/internal/infrastructure/ml"
	"MediaMonitor/internal/infrastructure/parser"
	"MediaMonitor/internal/infrastructure/progress"
	"MediaMonitor/internal/infrastructure/scheduler"
	"MediaMonitor/internal/infrastructure/storage"
	"MediaMonitor/internal/infrastructure/telegram"
	"MediaMonitor/internal/ports"
	"MediaMonitor/internal/processor"
	"MediaMonitor/internal/provider"
	"MediaMonitor/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db         *sql.DB
	store      *storage.SQLStore
	registry   *provider.Registry
	directory  *config.Directory
	cron       *scheduler.CronScheduler
	dispatcher *progress.Dispatcher
	redis      *progress.RedisSink

	orchestrator *usecase.Orchestrator
	scheduler    *usecase.Scheduler
}

// New opens storage, registers available providers and builds the orchestrator.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		store:     storage.NewSQLStore(db, cfg.Database.Driver),
		registry:  provider.NewRegistry(),
		directory: config.NewDirectory(cfg),
		cron:      scheduler.NewCronScheduler(cfg.Scheduler.Location(), baseLogger.With("component", "cron")),
	}

	client := httpclient.New(httpclient.Options{RetryCount: 1})
	parser.RegisterProviders(a.registry, cfg.Providers, a.directory, client, baseLogger.With("component", "provider"))

	sinks := []progress.Sink{progress.NewLogSink(baseLogger.With("component", "progress"))}
	if cfg.Redis.Addr != "" {
		sink, err := progress.NewRedisSink(cfg.Redis)
		if err != nil {
			baseLogger.Warn("redis progress sink unavailable", "addr", cfg.Redis.Addr, "error", err)
		} else {
			a.redis = sink
			sinks = append(sinks, sink)
		}
	}
	a.dispatcher = progress.NewDispatcher(baseLogger.With("component", "progress"), sinks...)

	var onFinish []ports.ExecutionHook
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier := telegram.NewNotifier(tg.BotToken, tg.ChatID, tg.Endpoint)
		onFinish = append(onFinish, usecase.NotifyHook(notifier, baseLogger.With("component", "telegram")))
	}

	a.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Registry:   a.registry,
		Processors: processor.NewFactory(parser.NewHTMLExtractor(client)),
		Tenants:    a.directory,
		Jobs:       a.store,
		Executions: a.store,
		Records:    a.store,
		Enricher:   newEnricher(cfg.AI, baseLogger),
		Planner:    a.cron,
		Progress:   a.dispatcher.Func(),
		OnFinish:   onFinish,
		Config:     cfg.Orchestrator,
		Logger:     baseLogger.With("component", "orchestrator"),
	})
	a.scheduler = usecase.NewScheduler(a.cron, a.store, a.orchestrator, cfg.Scheduler.ReloadExpression, baseLogger.With("component", "scheduler"))

	return a, nil
}

func newEnricher(cfg config.AIConfig, logger *slog.Logger) ports.Enricher {
	switch cfg.Backend {
	case config.AIBackendML:
		if cfg.Endpoint != "" {
			return ml.NewClient(cfg.Endpoint, cfg.APIKey, cfg.Timeout)
		}
	case config.AIBackendChatGPT:
		if cfg.APIKey != "" {
			return llm.NewChatGPTClient(cfg, logger.With("component", "llm"))
		}
	}
	logger.Warn("no AI backend configured, records get default enrichment", "backend", cfg.Backend)
	return nil
}

// Orchestrator exposes run triggers.
func (a *Application) Orchestrator() *usecase.Orchestrator { return a.orchestrator }

// Jobs exposes the scheduled job store.
func (a *Application) Jobs() ports.JobStore { return a.store }

// Executions exposes execution history.
func (a *Application) Executions() ports.ExecutionStore { return a.store }

// Records exposes processed records.
func (a *Application) Records() ports.RecordStore { return a.store }

// Providers lists the providers available in this process.
func (a *Application) Providers() []string { return a.registry.Available() }

// Tenants lists configured tenant IDs.
func (a *Application) Tenants() []string { return a.directory.TenantIDs() }

// Serve runs the scheduler until ctx is cancelled, then drains running jobs.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started",
		"jobs", len(a.scheduler.Scheduled()),
		"providers", a.registry.Available(),
		"timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()
	a.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.scheduler.Stop(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	for _, id := range a.orchestrator.ActiveExecutions() {
		a.orchestrator.Cancel(id)
	}
	if err := a.orchestrator.Wait(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("wait for runs: %w", err))
	}
	return errors.Join(errs...)
}

// Close releases storage and progress resources.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if err := a.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close progress: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	return errors.Join(errs...)
}

// NextRun validates a cron expression and returns its next activation.
func (a *Application) NextRun(expression string) (time.Time, error) {
	return a.cron.Next(expression, time.Now())
}
