package main

import (
	"context"
	"fmt"

	"github.com/sissm-go/pioverride/internal/audit"
	"github.com/sissm-go/pioverride/internal/config"
	"github.com/sissm-go/pioverride/internal/gamestate"
	"github.com/sissm-go/pioverride/internal/lifecycle"
	"github.com/sissm-go/pioverride/internal/pioverride"
	"github.com/sissm-go/pioverride/internal/rcon"
	"go.uber.org/zap"
)

// app holds the wired components shared by run and fire.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	exec      rcon.Executor
	store     *audit.Store
	bus       *lifecycle.Bus
	tracker   *gamestate.Tracker
	engine    *pioverride.Engine
	installed bool
}

func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("starting pioverride",
		zap.String("version", version),
		zap.String("config", configPath),
	)

	rules := pioverride.LoadRuleSet(cfg.Source())

	exec, err := rcon.New(cfg.RCON, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		exec:   exec,
		bus:    lifecycle.NewBus(),
	}

	var setter pioverride.PropertySetter = rcon.NewGameModeProperties(exec, logger)
	if cfg.Audit.Enabled {
		store, err := audit.Open(ctx, cfg.Audit.DSN)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = store
		setter = audit.NewSetter(setter, store, logger)
		logger.Info("audit log enabled")
	}

	// The tracker subscribes first so Query-mode lookups see the current event.
	a.tracker = gamestate.NewTracker(logger)
	a.tracker.Attach(a.bus)

	a.engine = pioverride.NewEngine(rules, setter, a.tracker, logger)
	_, a.installed = a.engine.Install(a.bus)

	logger.Info("pioverride initialized",
		zap.Bool("enabled", rules.Enabled),
		zap.String("rcon_transport", cfg.RCON.Transport),
		zap.String("rcon_address", cfg.RCON.Address),
	)
	return a, nil
}

func (a *app) close() {
	if a.exec != nil {
		if err := a.exec.Close(); err != nil {
			a.logger.Debug("closing rcon connection", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}
