package cmd

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/jbrache/goose/internal/config"
	"github.com/jbrache/goose/internal/discovery"
	"github.com/jbrache/goose/internal/logging"
	"github.com/jbrache/goose/internal/mcpserver"
	"github.com/jbrache/goose/internal/metrics"
	"github.com/jbrache/goose/internal/observability"
	"github.com/jbrache/goose/internal/types"
)

// version is overridden at build time with -ldflags "-X github.com/jbrache/goose/cmd.version=..."
var version = "dev"

// app holds the process-wide dependencies shared by every subcommand.
type app struct {
	cfg       *types.Config
	logger    *zap.Logger
	backend   discovery.Backend
	recorder  *metrics.Recorder
	gauge     metric.Registration
	telemetry observability.ShutdownFunc
}

// configure is applied to the loaded configuration before validation-dependent
// components are built. Subcommands use it for flag overrides.
type configure func(cfg *types.Config)

// loadApp reads the configuration and builds the Discovery Engine client.
// Configuration errors are returned before anything else is created.
func loadApp(ctx context.Context, overrides ...configure) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, types.NewConfigurationError(err.Error(), "LOG_LEVEL", "LOG_FORMAT")
	}

	client, err := discovery.NewClient(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to create Discovery Engine client: %w", err)
	}

	return newApp(ctx, cfg, client, logger)
}

// newApp wires telemetry around an existing backend.
func newApp(ctx context.Context, cfg *types.Config, backend discovery.Backend, logger *zap.Logger) (*app, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	telemetry, err := observability.Init(ctx, cfg, version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		backend:   backend,
		telemetry: telemetry,
	}, nil
}

// stats opens the invocation statistics on first use. Only the query command
// records them, and only when AGENTSPACE_STATS_PATH is set.
func (a *app) stats() *metrics.Recorder {
	if a.recorder != nil {
		return a.recorder
	}
	a.recorder = metrics.OpenRecorder(a.cfg.StatsPath, a.logger)
	if a.cfg.StatsPath == "" {
		return a.recorder
	}
	gauge, err := metrics.RegisterInvocationGauge(a.recorder)
	if err != nil {
		a.logger.Warn("Failed to register invocation gauge", zap.Error(err))
	}
	a.gauge = gauge
	return a.recorder
}

// newServer registers the configured tools on a fresh MCP server.
func (a *app) newServer() (*mcpserver.ServerWrapper, error) {
	registry, err := mcpserver.NewDefaultRegistry(a.cfg, a.backend, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	server, err := mcpserver.NewServerWrapper(a.cfg, registry, version, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Registered tools", zap.Strings("tools", registry.Names()))
	return server, nil
}

// Close flushes telemetry and releases the statistics store, if one was opened.
func (a *app) Close() {
	if a.gauge != nil {
		if err := a.gauge.Unregister(); err != nil {
			a.logger.Debug("Failed to unregister invocation gauge", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry(ctx); err != nil {
		a.logger.Warn("Failed to flush telemetry", zap.Error(err))
	}

	if err := a.recorder.Close(); err != nil {
		a.logger.Warn("Failed to close stats store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
