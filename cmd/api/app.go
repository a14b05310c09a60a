package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"alphaseeker/pkg/config"
	"alphaseeker/pkg/core/agent"
	"alphaseeker/pkg/core/pipeline"
	"alphaseeker/pkg/core/prompt"
	"alphaseeker/pkg/core/store"
	"alphaseeker/pkg/core/validate"
	"alphaseeker/pkg/logger"
)

// app holds the wired components shared by every command.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  store.HistoryStore
	agents *agent.Manager
	orch   *pipeline.Orchestrator
}

func newApp(ctx context.Context, configPath string, debug bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	log := logger.New(cfg.Log)
	logger.SetGlobalLogger(log)

	prompts, err := loadPrompts(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("prompts", prompts.Count()).Msg("prompt library loaded")

	agents, err := agent.NewManager(cfg.Agents, log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure model providers: %w", err)
	}

	hs, err := store.Open(ctx, cfg.History, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	orch := pipeline.NewOrchestrator(hs, agents, prompts, validate.New(), pipeline.Options{
		ModelTimeout: cfg.Model.Timeout,
	}, log)

	return &app{cfg: cfg, log: log, store: hs, agents: agents, orch: orch}, nil
}

// loadPrompts builds the built-in library, overlaid with cfg.PromptsDir when set.
func loadPrompts(cfg *config.Config) (*prompt.Registry, error) {
	prompts, err := prompt.Builtin()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt library: %w", err)
	}
	if cfg.PromptsDir != "" {
		if err := prompts.LoadFromDirectory(cfg.PromptsDir); err != nil {
			return nil, fmt.Errorf("failed to load prompts from %s: %w", cfg.PromptsDir, err)
		}
	}
	return prompts, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close history store")
	}
}
