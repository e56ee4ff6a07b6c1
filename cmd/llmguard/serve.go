package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/valinor-ai/llmguard/internal/analyze"
	"github.com/valinor-ai/llmguard/internal/audit"
	"github.com/valinor-ai/llmguard/internal/platform/config"
	"github.com/valinor-ai/llmguard/internal/platform/server"
	"github.com/valinor-ai/llmguard/internal/vault"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scanning service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("llmguard starting", "port", cfg.Server.Port)

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	pool, err := connectAudit(ctx, cfg)
	if err != nil {
		return fmt.Errorf("audit database: %w", err)
	}

	var auditLogger audit.Logger = audit.NopLogger{}
	var auditHandler *audit.Handler
	if pool != nil {
		defer pool.Close()
		auditLogger = audit.NewAsyncLogger(pool, audit.NewStore(), audit.LoggerConfig{
			BufferSize:    cfg.Audit.BufferSize,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: time.Duration(cfg.Audit.FlushIntervalMS) * time.Millisecond,
		})
		defer auditLogger.Close()
		auditHandler = audit.NewHandler(pool)
		slog.Info("audit logger started")
	}

	sessions := vault.NewStore(time.Duration(cfg.Session.TTLSecs) * time.Second)
	scanTimeout := time.Duration(cfg.Scan.TimeoutSecs) * time.Second
	analyzeHandler := analyze.NewHandler(pipeline, sessions, auditLogger, analyze.HandlerConfig{
		Timeout:  scanTimeout,
		FailFast: cfg.Scan.FailFast,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:               pool,
		AnalyzeHandler:     analyzeHandler,
		AuditHandler:       auditHandler,
		Logger:             slog.Default(),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimitRPS:       cfg.Scan.RateLimitRPS,
		RateLimitBurst:     cfg.Scan.RateLimitBurst,
		WriteTimeout:       scanTimeout + 5*time.Second,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		return sessions.Run(ctx, time.Duration(cfg.Session.SweepIntervalSecs)*time.Second)
	})

	slog.Info("server ready", "addr", addr, "audit", pool != nil)
	return g.Wait()
}
