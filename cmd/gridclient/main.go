package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gridclash/internal/client"
	"gridclash/internal/config"
	"gridclash/internal/csvlog"
	"gridclash/internal/logging"
)

func main() {
	serverAddr := flag.String("server", "", "GridClash server address (host:port); overrides GRIDCLASH_ADDR")
	statusInterval := flag.Duration("status-interval", 5*time.Second, "how often to log connection status")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	target := cfg.Address
	if *serverAddr != "" {
		target = *serverAddr
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	renderer := client.NewHeadlessRenderer()

	var opts []client.Option
	if cfg.CSVDir != "" {
		metricsWriter, err := csvlog.OpenClientMetrics(filepath.Join(cfg.CSVDir, "client_metrics.csv"))
		if err != nil {
			logger.Fatal("failed to open client_metrics.csv", logging.Error(err))
		}
		defer func() { _ = metricsWriter.Close() }()
		opts = append(opts, client.WithClientMetricsWriter(metricsWriter))

		positionsWriter, err := csvlog.OpenClientPositions(filepath.Join(cfg.CSVDir, "client_positions.csv"), cfg.GridSize*cfg.GridSize)
		if err != nil {
			logger.Fatal("failed to open client_positions.csv", logging.Error(err))
		}
		defer func() { _ = positionsWriter.Close() }()
		opts = append(opts, client.WithClientPositionsWriter(positionsWriter))
	}

	gridClient := client.New(cfg, target, renderer, logger, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("joining gridclash server", logging.String("address", target))
	if err := gridClient.Join(ctx); err != nil {
		logger.Fatal("join handshake failed", logging.Error(err))
	}
	logger.Info("joined gridclash server", logging.Int64("player_id", int64(gridClient.PlayerID())))

	go func() {
		ticker := time.NewTicker(*statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, _ := renderer.Grid()
				logger.Info("client status",
					logging.Int64("player_id", int64(gridClient.PlayerID())),
					logging.Int64("snapshots_applied", int64(renderer.Snapshots())),
					logging.Int64("cells_known", int64(len(current))),
				)
				if result := renderer.Result(); result != nil {
					logger.Info("game over", logging.Int64("winner_id", int64(result.WinnerID)))
				}
			}
		}
	}()

	gridClient.Start(ctx)
	gridClient.Stop()
}
