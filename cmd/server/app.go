package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/renaissance/internal/api"
	apiMiddleware "github.com/phrazzld/renaissance/internal/api/middleware"
	"github.com/phrazzld/renaissance/internal/config"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/phrazzld/renaissance/internal/identity"
	"github.com/phrazzld/renaissance/internal/platform/postgres"
	"github.com/phrazzld/renaissance/internal/redact"
	"github.com/phrazzld/renaissance/internal/service/auth"
	"github.com/phrazzld/renaissance/internal/service/progress"
	"github.com/phrazzld/renaissance/internal/service/stats"
	"github.com/phrazzld/renaissance/internal/service/training"
	"github.com/phrazzld/renaissance/internal/task"
)

// application holds the long-lived components of a running server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	runner *task.TaskRunner
	router http.Handler
}

// newApplication wires stores, services, background workers and the HTTP
// router. The task runner is started; cleanup stops it.
func newApplication(cfg *config.Config, log *slog.Logger, db *sql.DB) (*application, error) {
	uow := postgres.NewUnitOfWork(db, log)

	cache := progress.NewCache(cfg.Training.UnlockCacheMax, cfg.Training.UnlockCacheTTL)
	aggregator := stats.NewAggregator(uow.Stores(), cfg.Stats.CacheMax, cfg.Stats.CacheTTL, log)
	emitter := events.NewInMemoryEventEmitter(log)

	recorder := training.NewRecorder(uow, emitter, nil, log)
	manager := training.NewManager(uow, recorder, training.Config{
		Policy:    cfg.Training.FlashPolicy(),
		Cache:     cache,
		Retries:   cfg.Training.AttemptRetries,
		RetryBase: cfg.Training.RetryBaseDelay,
	}, log)
	selector := training.NewSelector(uow, cache, emitter, nil, log)

	runnerCfg := task.DefaultTaskRunnerConfig()
	runnerCfg.WorkerCount = cfg.Task.WorkerCount
	runnerCfg.QueueSize = cfg.Task.QueueSize
	runner := task.NewTaskRunner(postgres.NewPostgresTaskStore(db, log), runnerCfg, log)
	runner.Register(task.TaskTypeSessionRepair, task.RepairFactory(recorder, log))

	emitter.RegisterHandler(cache)
	emitter.RegisterHandler(aggregator)
	emitter.RegisterHandler(task.NewRepairEventHandler(runner, recorder, log))

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	ids := identity.ContextProvider{}
	router := api.NewRouter(api.RouterDeps{
		Training: api.NewTrainingHandler(manager, ids, log),
		Stats:    api.NewStatsHandler(aggregator, ids, log),
		Catalog:  api.NewCatalogHandler(uow.Stores().Axes, selector, ids, log),
		Auth:     apiMiddleware.NewAuthMiddleware(jwtService),
		DB:       db,
		Logger:   log,
	})

	if err := runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	return &application{
		config: cfg,
		logger: log,
		db:     db,
		runner: runner,
		router: router,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then releases every resource.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()
	return serve(ctx, app.config.Server, app.router, app.logger)
}

func (app *application) cleanup() {
	app.runner.Stop()
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", redact.ErrorAttr(err))
	}
	app.logger.Info("shutdown complete")
}
