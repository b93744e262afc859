package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BRAVO68WEB/echohook/internal/adapters/storage/memory"
	"github.com/BRAVO68WEB/echohook/internal/adapters/storage/redisstore"
	cfgpkg "github.com/BRAVO68WEB/echohook/internal/infrastructure/config"
	httpapi "github.com/BRAVO68WEB/echohook/internal/infrastructure/httpapi"
	obs "github.com/BRAVO68WEB/echohook/internal/infrastructure/observability"
	"github.com/BRAVO68WEB/echohook/internal/live"
	"github.com/BRAVO68WEB/echohook/internal/usecase"
)

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
	shutdownTimeout = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cfgpkg.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("host") {
				cfg.Host, _ = cmd.Flags().GetString("host")
			}
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("host", "", "listen host (overrides SERVER_HOST)")
	cmd.Flags().Int("port", 0, "listen port (overrides SERVER_PORT)")
	cmd.Flags().String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	return cmd
}

func serve(ctx context.Context, cfg cfgpkg.Config) error {
	logger := obs.NewLogger(cfg.LogLevel, cfg.DevMode)
	logger.Info().
		Str("addr", cfg.Addr()).
		Str("listen_url", cfg.ListenURL).
		Str("version", obs.Version).
		Int("session_ttl", cfg.SessionTTLSeconds).
		Int("max_requests_per_session", cfg.MaxRequestsPerSession).
		Msg("starting echohook")

	metrics := obs.NewMetrics()
	registry := live.NewRegistry(live.DefaultCapacity, logger)
	metrics.BindLive(registry)

	store, err := openStore(cfg, registry, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := connectWithRetry(ctx, store, connectAttempts, connectDelay, logger); err != nil {
		return err
	}
	if err := store.SetAPIURL(ctx, cfg.ListenURL); err != nil {
		logger.Warn().Err(err).Msg("failed to store API URL")
	}

	deps := &httpapi.Deps{
		Cfg:      cfg,
		Logger:   logger,
		Metrics:  metrics,
		Sessions: usecase.NewSessionService(store, store, cfg.SessionTTLSeconds),
		Capture: usecase.NewCaptureService(store, store, usecase.CaptureLimits{
			MaxBodySize:           cfg.MaxBodySize,
			MaxRequestsPerSession: cfg.MaxRequestsPerSession,
			TTLSeconds:            cfg.SessionTTLSeconds,
		}, logger),
		Live:      registry,
		Store:     store,
		StartedAt: time.Now(),
	}
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	maintenance := usecase.NewMaintenance(registry, store, logger,
		usecase.WithAPIURLRefresh(store, cfg.ListenURL),
		usecase.WithObserver(metrics),
	)

	g, gctx := errgroup.WithContext(ctx)
	// Open streams end when the server begins shutting down.
	srv.BaseContext = func(net.Listener) context.Context { return gctx }
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return maintenance.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		return nil
	})
	err = g.Wait()
	logger.Info().Msg("echohook stopped")
	return err
}

func openStore(cfg cfgpkg.Config, publisher usecase.Publisher, logger *zerolog.Logger) (usecase.Store, error) {
	if cfg.UsesMemoryStore() {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.NewStore(publisher, logger), nil
	}
	return redisstore.New(redisstore.Options{
		URL:       cfg.RedisURL,
		PoolSize:  cfg.RedisPoolSize,
		Publisher: publisher,
		Logger:    logger,
	})
}

// connectWithRetry probes the store until it answers or attempts run out.
func connectWithRetry(ctx context.Context, store usecase.HealthChecker, attempts int, delay time.Duration, logger *zerolog.Logger) error {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		ok, err := store.HealthCheck(ctx)
		if err == nil && ok {
			logger.Info().Int("attempt", i).Msg("connected to store")
			return nil
		}
		lastErr = err
		if lastErr == nil {
			lastErr = errors.New("unexpected ping reply")
		}
		logger.Warn().Err(lastErr).Int("attempt", i).Int("max_attempts", attempts).Msg("store not ready, retrying")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("connect to store after %d attempts: %w", attempts, lastErr)
}
