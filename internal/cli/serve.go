package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenderops/remixbridge/internal/compile"
	"github.com/tenderops/remixbridge/internal/config"
	"github.com/tenderops/remixbridge/internal/directory"
	"github.com/tenderops/remixbridge/internal/hostbridge"
	"github.com/tenderops/remixbridge/internal/importer"
	"github.com/tenderops/remixbridge/internal/observability/metrics"
	"github.com/tenderops/remixbridge/internal/plugin"
	"github.com/tenderops/remixbridge/internal/registry"
	"github.com/tenderops/remixbridge/internal/server"
	"github.com/tenderops/remixbridge/internal/session"
	"github.com/tenderops/remixbridge/internal/statestore"
	"github.com/tenderops/remixbridge/internal/verify"
	"github.com/tenderops/remixbridge/pkg/tenderly"
)

func createServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(version)
		},
	}
}

func runServe(version string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if backendFlag != "" {
		cfg.Backend.APIURL = backendFlag
	}

	logger := setupLogger(cfg)
	logger.Info("starting remixbridge", "version", version, "backend", cfg.Backend.APIURL)

	metrics.Init(cfg.Metrics.Enabled, cfg.Metrics.ServiceName)

	store, err := statestore.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing state store: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// A token saved via `remixbridge login` before the first daemon
	// start lives only in the credentials file; move it into the store.
	if err := seedFromCredentials(context.Background(), cfg, store); err != nil {
		logger.Warn("seeding credential failed", "error", err)
	}

	client := tenderly.New(cfg.Backend.APIURL)

	sess := session.New(client, store, logger)
	dir := directory.New(client, store, logger)
	reg := registry.New(client, logger)
	snap := compile.NewSnapshot()
	hub := hostbridge.NewHub()
	verifier := verify.New(client, hub, logger)
	imp := importer.New(reg, hub, logger)

	p := plugin.New(client, sess, dir, reg, snap, hub, verifier, imp, logger)

	if err := p.Start(context.Background()); err != nil {
		logger.Error("restoring plugin state failed", "error", err)
	}

	srv := server.New(cfg, p, hub, snap, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("bridge listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("bridge stopped")
	return nil
}

// seedFromCredentials copies a credentials-file token into the state
// store when the store has none.
func seedFromCredentials(ctx context.Context, cfg *config.Config, store statestore.Store) error {
	existing, err := store.AccessToken(ctx)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}

	token := getCredential(cfg.Backend.APIURL)
	if token == "" {
		return nil
	}
	return store.SetAccessToken(ctx, token)
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
