package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid_trader/internal/config"
	"grid_trader/internal/exchange"
	inframetrics "grid_trader/internal/infrastructure/metrics"
	"grid_trader/internal/metrics"
	"grid_trader/internal/trading/orchestrator"
	"grid_trader/pkg/logging"
	"grid_trader/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "configs/grid_trader.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "grid_trader: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup("grid_trader")
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(ctx)
	}()

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return fmt.Errorf("logger setup: %w", err)
	}
	logging.SetGlobalLogger(logger)
	defer logger.Sync()

	logger.Info("Starting grid trader",
		"venue", cfg.App.Venue,
		"symbol", cfg.Grid.Symbol,
		"side_bias", cfg.Grid.SideBias,
		"num_orders", cfg.Grid.NumOrders)

	if cfg.Telemetry.EnableMetrics {
		server := inframetrics.NewServer(cfg.Telemetry.MetricsPort, logger)
		server.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(ctx)
		}()
	}

	gateway, err := exchange.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("gateway setup: %w", err)
	}

	sink := metrics.NewSQLiteSink(cfg.MetricsSink.Path)
	supervisor := orchestrator.NewSupervisor(cfg, gateway, sink, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
