package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/rx-inference-gateway/internal/config"
	"github.com/tjfontaine/rx-inference-gateway/internal/frontdoor"
	"github.com/tjfontaine/rx-inference-gateway/internal/prompt"
	"github.com/tjfontaine/rx-inference-gateway/internal/provider"
	"github.com/tjfontaine/rx-inference-gateway/internal/server"
	"github.com/tjfontaine/rx-inference-gateway/internal/telemetry"
	"github.com/tjfontaine/rx-inference-gateway/internal/upload"
)

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.InitTracer("rx-inference-gateway", cfg.Telemetry.Exporter, logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	p, err := provider.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	handler := frontdoor.NewHandler(
		p,
		upload.New(upload.WithMaxSize(cfg.Upload.MaxBytes)),
		prompt.NewAssembler(cfg.Prompt.SystemInstruction, cfg.Prompt.AnalysisInstruction),
		frontdoor.Options{
			StreamTimeout:   cfg.Server.StreamTimeout,
			RequestTimeout:  cfg.Server.RequestTimeout,
			ModelConfigured: cfg.Configured(),
		},
		logger,
	)

	srv := server.New(cfg.Server.Port, logger, server.Options{
		Timeout:         cfg.Server.StreamTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	for _, route := range frontdoor.Routes(handler) {
		srv.Router.Method(route.Method, route.Path, route.Handler)
		logger.Info("registered route", slog.String("method", route.Method), slog.String("path", route.Path))
	}

	logger.Info("gateway configured",
		slog.String("provider", p.Name()),
		slog.Bool("model_configured", cfg.Configured()),
		slog.String("model", cfg.Model.Name),
	)

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("gateway shutdown complete")
	return nil
}
