// Package commands implements CLI command handlers for apertium-stats.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apertium/apertium-stats-service/internal/config"
	"github.com/apertium/apertium-stats-service/internal/entrystore"
	"github.com/apertium/apertium-stats-service/internal/inflight"
	"github.com/apertium/apertium-stats-service/internal/observability"
	"github.com/apertium/apertium-stats-service/internal/orchestrator"
	"github.com/apertium/apertium-stats-service/internal/packages"
	"github.com/apertium/apertium-stats-service/internal/server"
	"github.com/apertium/apertium-stats-service/internal/source"
	"github.com/apertium/apertium-stats-service/internal/stats"
	"github.com/apertium/apertium-stats-service/internal/worker"
	"github.com/apertium/apertium-stats-service/pkg/version"
)

// serviceName is the OTel resource service name.
const serviceName = "apertium-stats-service"

// readHeaderTimeout bounds slow-header clients on the listener.
const readHeaderTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")

	return cmd
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.OTLPInsecure,
		SampleRatio:    cfg.Observability.SampleRatio,
		LogLevel:       parseLogLevel(cfg.Observability.LogLevel),
		LogJSON:        cfg.Observability.LogJSON,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if shutdownErr := providers.Shutdown(shutdownCtx); shutdownErr != nil {
			providers.Logger.Error("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	logger := providers.Logger

	metrics, err := observability.NewServiceMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store, err := entrystore.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open entry store: %w", err)
	}
	defer func() { _ = store.Close() }()

	fetcher := newFetcher(cfg)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := worker.NewPool(ctx, cfg.Worker.Count)
	defer pool.Close()

	w := &worker.Worker{
		Fetcher:   fetcher,
		Computers: stats.Default(),
		Store:     store,
		Timeout:   cfg.Worker.Timeout,
		Logger:    logger,
		Tracer:    providers.Tracer,
	}

	orch := orchestrator.New(
		store, inflight.NewRegistry(), pool, w, fetcher,
		orchestrator.WithWait(cfg.Server.Wait),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithLogger(logger),
	)

	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithMetricsHandler(providers.MetricsHandler),
		server.WithReadyChecks(store.Ping),
		server.WithTracer(providers.Tracer),
	}

	// The listing endpoint needs authenticated API calls; without a token
	// the rate limit makes periodic refresh useless.
	if cfg.Packages.Enabled && cfg.Source.Token != "" {
		tracker := packages.NewTracker(fetcher, cfg.Packages.RefreshInterval, logger)
		go tracker.Run(ctx)

		serverOpts = append(serverOpts, server.WithTracker(tracker))
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(orch, serverOpts...).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

func newFetcher(cfg *config.Config) *source.GitHub {
	opts := []source.GitHubOption{
		source.WithOrganization(cfg.Source.Organization),
		source.WithHTTPClient(&http.Client{Timeout: cfg.Source.Timeout}),
	}

	if cfg.Source.Token != "" {
		opts = append(opts, source.WithToken(cfg.Source.Token))
	}

	if cfg.Source.APIRoot != "" || cfg.Source.RawRoot != "" {
		apiRoot, rawRoot := cfg.Source.APIRoot, cfg.Source.RawRoot
		if apiRoot == "" {
			apiRoot = source.DefaultAPIRoot
		}

		if rawRoot == "" {
			rawRoot = source.DefaultRawRoot
		}

		opts = append(opts, source.WithRoots(apiRoot, rawRoot))
	}

	return source.NewGitHub(opts...)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
