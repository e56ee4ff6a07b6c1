package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valinor-ai/llmguard/internal/analyze"
	"github.com/valinor-ai/llmguard/internal/anonymize"
	"github.com/valinor-ai/llmguard/internal/model"
	"github.com/valinor-ai/llmguard/internal/platform/config"
	"github.com/valinor-ai/llmguard/internal/platform/database"
	"github.com/valinor-ai/llmguard/internal/platform/telemetry"
	"github.com/valinor-ai/llmguard/internal/scanners"
)

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPaths...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)
	return cfg, nil
}

// scannerDeps wires the inference backends named in the runtime section.
func scannerDeps(rc config.RuntimeConfig) scanners.Deps {
	timeout := time.Duration(rc.TimeoutSecs) * time.Second
	deps := scanners.Deps{
		Runtime: model.Runtime{
			Device:  rc.Device,
			BaseURL: rc.ModelURL,
			Timeout: timeout,
		},
	}
	if rc.NERURL != "" {
		deps.NER = anonymize.NewHTTPNERClient(model.Runtime{
			Device:  rc.Device,
			BaseURL: rc.NERURL,
			Timeout: timeout,
		}, "")
	}
	return deps
}

func buildPipeline(cfg *config.Config) (*analyze.Pipeline, error) {
	p, err := analyze.FromConfig(cfg, scannerDeps(cfg.Runtime))
	if err != nil {
		return nil, err
	}
	slog.Info("scanner chains ready",
		"input", len(cfg.Scanners.Input),
		"output", len(cfg.Scanners.Output),
		"model_backend", cfg.Runtime.ModelURL != "",
		"ner_backend", cfg.Runtime.NERURL != "",
	)
	return p, nil
}

// connectAudit opens the audit database when auditing is enabled. It
// returns nil without error when auditing is off.
func connectAudit(ctx context.Context, cfg *config.Config) (*database.Pool, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("audit enabled but database.url is empty")
	}
	slog.Info("connecting to database")
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return pool, nil
}
