package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/internal/telemetry"
	"github.com/marmos91/webshim/pkg/api"
	"github.com/marmos91/webshim/pkg/config"
	"github.com/marmos91/webshim/pkg/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the webshim API server",
	Long: `Start the webshim API server with the specified configuration.

The server accepts web applet invocations over HTTP, manages the archive
registrations behind the offline resolver and exposes the extraction cache.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/webshim/config.yaml.

Examples:
  # Start with default config location
  webshim start

  # Start with custom config file
  webshim start --config /etc/webshim/config.yaml

  # Start with environment variable overrides
  WEBSHIM_LOGGING_LEVEL=DEBUG webshim start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "webshim",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "webshim",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	fmt.Println("Webshim - Web applet argument decoder and offline document host")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics FIRST (before creating the resolver and host that
	// record into them). This ensures metrics.IsEnabled() returns true when
	// the collectors are created.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "endpoint", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	if !cfg.API.Enabled {
		return fmt.Errorf("the API server is disabled in configuration; nothing to serve")
	}

	env, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	logger.Info("Content stores opened",
		"system_store", cfg.Content.SystemStoreDir,
		"content_store", cfg.Content.ContentStoreDir,
		"patch_dir", cfg.Content.PatchDir)
	logger.Info("Offline cache configured",
		logger.KeyCacheDir, cfg.Cache.Root,
		"max_size", cfg.Cache.MaxSize.String())
	logger.Info("Applet process context",
		logger.KeyTitleID, env.title.String())

	server := api.NewServer(cfg.API,
		api.NewInvocationHandler(env.host),
		api.NewContentHandler(env.system, env.contents),
		api.NewCacheHandler(cfg.Cache.Root, cfg.Cache.MaxSize),
	)

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown",
			"timeout", cfg.ShutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		cancel()

		if err := <-serverDone; err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("Server stopped")
	}

	return nil
}
