package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	httpapi "gridclash/internal/http"
	"gridclash/internal/config"
	"gridclash/internal/csvlog"
	"gridclash/internal/logging"
	"gridclash/internal/match"
	"gridclash/internal/replay"
	"gridclash/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var opts []server.Option

	session, err := match.NewSession(match.WithSessionCapacity(match.Capacity{MaxPlayers: 255}))
	if err != nil {
		logger.Fatal("failed to initialize match session", logging.Error(err))
	}
	opts = append(opts, server.WithMatchSession(session))

	var (
		cleaner       *replay.Cleaner
		replayDumper  httpapi.ReplayDumper
		replayStatsFn func() replay.Stats
	)
	if cfg.ReplayBundleDir != "" {
		matchID := session.Snapshot().MatchID
		writer, _, err := replay.NewWriter(cfg.ReplayBundleDir, matchID, nil)
		if err != nil {
			logger.Fatal("failed to initialize replay writer", logging.Error(err))
		}
		writer.SetHeaderMetadata(matchID, replay.MatchParameters{
			"grid_size":  float64(cfg.GridSize),
			"tick_rate":  float64(cfg.TickRate),
			"event_tick": float64(cfg.EventMaxRetries),
		})
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Warn("replay writer close failed", logging.Error(err))
			}
		}()
		opts = append(opts, server.WithReplayWriter(writer))

		recorder, err := replay.NewRecorder(filepath.Join(cfg.ReplayBundleDir, "dumps"), nil)
		if err != nil {
			logger.Fatal("failed to initialize replay recorder", logging.Error(err))
		}
		opts = append(opts, server.WithReplayRecorder(recorder))

		cleaner = replay.NewCleaner(cfg.ReplayBundleDir, replay.RetentionPolicy{
			MaxMatches: 20,
			MaxAge:     7 * 24 * time.Hour,
		}, logger)
	}

	if cfg.CSVDir != "" {
		metricsWriter, err := csvlog.OpenServerMetrics(filepath.Join(cfg.CSVDir, "server_metrics.csv"))
		if err != nil {
			logger.Fatal("failed to open server_metrics.csv", logging.Error(err))
		}
		defer func() { _ = metricsWriter.Close() }()
		opts = append(opts, server.WithServerMetricsWriter(metricsWriter))

		positionsWriter, err := csvlog.OpenServerPositions(filepath.Join(cfg.CSVDir, "server_positions.csv"), cfg.GridSize*cfg.GridSize)
		if err != nil {
			logger.Fatal("failed to open server_positions.csv", logging.Error(err))
		}
		defer func() { _ = positionsWriter.Close() }()
		opts = append(opts, server.WithServerPositionsWriter(positionsWriter))
	}

	gridServer := server.New(cfg, logger, opts...)
	if cfg.ReplayBundleDir != "" {
		replayDumper = gridServer
		replayStatsFn = gridServer.ReplayStats
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("gridclash server starting", logging.String("address", cfg.Address))
		serverErr <- gridServer.Start(ctx)
	}()

	if cleaner != nil {
		go cleaner.Run(ctx, time.Hour)
	}

	mux := http.NewServeMux()
	var limiter httpapi.RateLimiter
	if cfg.ReplayDumpWindow > 0 && cfg.ReplayDumpBurst > 0 {
		limiter = httpapi.NewSlidingWindowLimiter(cfg.ReplayDumpWindow, cfg.ReplayDumpBurst, nil)
	}
	handlerOpts := httpapi.Options{
		Logger:      logger,
		Readiness:   gridServer,
		Stats:       gridServer.Stats,
		Bandwidth:   gridServer.Bandwidth(),
		AdminToken:  cfg.AdminToken,
		RateLimiter: limiter,
		Match:       session,
		Replay:      replayDumper,
		ReplayStats: replayStatsFn,
	}
	if cleaner != nil {
		handlerOpts.ReplayStorage = cleaner.Stats
	}
	handlers := httpapi.NewHandlerSet(handlerOpts)
	handlers.Register(mux)
	diagnostics := &http.Server{Addr: cfg.DiagnosticsAddr, Handler: mux}

	go func() {
		logger.Info("diagnostics endpoint listening", logging.String("address", cfg.DiagnosticsAddr))
		if err := diagnostics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("diagnostics server terminated", logging.Error(err))
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		gridServer.Stop()
	case err := <-serverErr:
		if err != nil {
			logger.Fatal("gridclash server terminated", logging.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := diagnostics.Shutdown(shutdownCtx); err != nil {
		logger.Warn("diagnostics server shutdown failed", logging.Error(err))
	}
}
