// Package commands implements the promptpulse CLI command tree. Commands
// are thin wrappers over the service facade; wiring happens in newApp.
package commands

import (
	"database/sql"
	"time"

	"github.com/teranos/promptpulse/config"
	"github.com/teranos/promptpulse/db"
	"github.com/teranos/promptpulse/errors"
	"github.com/teranos/promptpulse/eval"
	"github.com/teranos/promptpulse/logger"
	"github.com/teranos/promptpulse/prompt"
	"github.com/teranos/promptpulse/pulse"
	"github.com/teranos/promptpulse/pulse/budget"
	"github.com/teranos/promptpulse/results"
	"github.com/teranos/promptpulse/service"
)

// app bundles the wired collaborators for one command invocation.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	store   *prompt.Store
	service *service.Service
	watcher *config.Watcher // nil when no config file is in use
}

// newApp loads configuration, opens the database, and wires the service
// stack. Callers must Close.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	conn, err := db.Open(cfg.Database.Path, logger.Named("db"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, logger.Named("db")); err != nil {
		conn.Close()
		return nil, err
	}

	store := prompt.NewStore(conn)
	lifecycle := prompt.NewManager(store, logger.Named("prompt"))

	evaluator := eval.NewClient(eval.Config{
		BaseURL:           cfg.Evaluator.BaseURL,
		APIKey:            cfg.Evaluator.APIKey,
		Provider:          cfg.Evaluator.Provider,
		Model:             cfg.Evaluator.Model,
		Timeout:           time.Duration(cfg.Evaluator.TimeoutSeconds) * time.Second,
		AllowPrivateHosts: cfg.Evaluator.AllowPrivateHosts,
		Logger:            logger.Named("eval"),
	})

	registry := pulse.NewRegistry(
		time.Duration(cfg.Engine.RetentionMinutes)*time.Minute,
		logger.Named("pulse"),
	)
	tracker := budget.NewTracker(conn, budget.Limits{
		DailyUSD:   cfg.Budget.DailyUSD,
		MonthlyUSD: cfg.Budget.MonthlyUSD,
	}, logger.Named("budget"))
	watcher := setupConfigWatcher(tracker)
	var limiter *budget.Limiter
	if cfg.Engine.MaxRequestsPerMin > 0 {
		limiter = budget.NewLimiter(cfg.Engine.MaxRequestsPerMin)
	}

	engine := pulse.NewEngine(registry, store, evaluator,
		results.NewParser(conn, logger.Named("results")),
		results.NewAggregator(conn, logger.Named("results")),
		tracker, limiter,
		pulse.EngineConfig{
			DefaultEnvironment: cfg.Engine.DefaultEnvironment,
			MaxConcurrency:     cfg.Engine.MaxConcurrency,
			Timeout:            time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
			CostPerTestUSD:     cfg.Budget.CostPerTestUSD,
		},
		logger.Named("pulse"),
	)

	return &app{
		cfg:     cfg,
		db:      conn,
		store:   store,
		service: service.New(lifecycle, store, engine, logger.Named("service")),
		watcher: watcher,
	}, nil
}

// setupConfigWatcher starts live-reload on the config file so budget limit
// edits take effect without a restart. Returns nil when no config file is in
// use or the watcher cannot start; the app runs fine without one.
func setupConfigWatcher(tracker *budget.Tracker) *config.Watcher {
	log := logger.Named("config")

	configPath := config.GetViper().ConfigFileUsed()
	if configPath == "" {
		log.Debugw("No config file in use, live reload disabled")
		return nil
	}

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		log.Warnw("Failed to create config watcher, restart to pick up config changes",
			"path", configPath, "error", err)
		return nil
	}

	watcher.OnReload(func(newCfg *config.Config) error {
		tracker.UpdateLimits(budget.Limits{
			DailyUSD:   newCfg.Budget.DailyUSD,
			MonthlyUSD: newCfg.Budget.MonthlyUSD,
		})
		return nil
	})
	watcher.Start()
	log.Debugw("Config watcher started", "path", configPath)
	return watcher
}

func (a *app) Close() error {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			logger.Named("config").Warnw("Failed to stop config watcher", "error", err)
		}
	}
	return a.db.Close()
}
