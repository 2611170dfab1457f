package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/seantiz/taskflow/internal/backend"
	"github.com/seantiz/taskflow/internal/config"
	"github.com/seantiz/taskflow/internal/definition"
	"github.com/seantiz/taskflow/internal/engine"
	"github.com/seantiz/taskflow/internal/model"
	"github.com/seantiz/taskflow/internal/store"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *store.SQLiteStore
	redis     *redis.Client
	pipelines store.PipelineStore

	client   *backend.Client
	policies *backend.Registry
	engine   *engine.Engine
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	return cfg, config.NewLogger(os.Stderr, cfg.LogLevel), nil
}

// openStore opens the database and, when configured, the Redis definition
// cache in front of it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, db: db, pipelines: db}

	if cfg.RedisAddr != "" {
		rc, err := store.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.redis = rc
		a.pipelines = store.NewRedisPipelineCache(db, rc, logger, store.WithCacheTTL(cfg.PipelineCacheTTL))
		logger.Info("pipeline cache enabled", "redis_addr", cfg.RedisAddr, "ttl", cfg.PipelineCacheTTL)
	}
	return a, nil
}

// connectBackend builds the backend client, picker, waiter and engine.
func (a *app) connectBackend() error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.client = backend.NewClient(a.cfg.BackendURL, a.cfg.BackendToken)
	a.policies = backend.NewDefaultRegistry(a.client)
	picker, err := a.policies.Resolve(a.cfg.ModelPolicy)
	if err != nil {
		return err
	}
	waiter := backend.NewWaiter(a.client, a.logger,
		backend.WithPollInterval(a.cfg.PollInterval),
		backend.WithMaxAttempts(a.cfg.PollMaxAttempts),
		backend.WithMaxDuration(a.cfg.PollMaxDuration),
	)
	dispatcher := backend.NewDispatcher(picker, a.client, waiter, a.logger)

	a.engine = engine.NewEngine(definition.NewStoreLoader(a.pipelines), a.db, dispatcher, a.logger,
		engine.WithExecutionTimeout(a.cfg.ExecutionTimeout))
	return nil
}

// importFiles stores every parsed definition under its pipeline name.
func (a *app) importFiles(ctx context.Context, files []definition.File) error {
	for _, f := range files {
		def := &model.PipelineDefinition{Name: f.Pipeline.Name, Source: string(f.Source)}
		if err := a.pipelines.PutPipeline(ctx, def); err != nil {
			return fmt.Errorf("import %s: %w", f.Path, err)
		}
		a.logger.Info("pipeline imported", "pipeline", def.Name, "path", f.Path)
	}
	return nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}
