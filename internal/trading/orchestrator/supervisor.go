// Package orchestrator wires the trading loops together and owns their
// lifecycle.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"grid_trader/internal/config"
	"grid_trader/internal/core"
	"grid_trader/internal/metrics"
	"grid_trader/internal/trading/grid"
	"grid_trader/internal/trading/order"
	"grid_trader/pkg/concurrency"
	"grid_trader/pkg/retry"
)

// Supervisor starts and joins the long-running loops: price watcher,
// order watcher, rebalancer, metrics publisher. It performs one-shot
// ladder seeding once the first valid mid-price arrives. If any loop
// fails the siblings are canceled and the gateway is closed on every
// exit path.
type Supervisor struct {
	cfg     *config.Config
	gateway core.IGateway
	sink    core.IMetricsSink
	logger  core.ILogger
}

func NewSupervisor(cfg *config.Config, gateway core.IGateway, sink core.IMetricsSink, logger core.ILogger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		gateway: gateway,
		sink:    sink,
		logger:  logger.WithField("component", "supervisor"),
	}
}

// Run blocks until ctx is canceled or a loop fails.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.gateway.Close()

	// One-time metadata warm-up. Unlike the trading-path REST calls
	// this is retried: without market metadata nothing else can start.
	err := retry.Do(ctx, retry.DefaultPolicy, func(error) bool { return true }, func() error {
		return s.gateway.LoadMarkets(ctx)
	})
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	s.logger.Info("Markets loaded", "venue", s.gateway.Name())

	params := grid.FromConfig(s.cfg.Grid)
	state := grid.NewState()

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "order_placement",
		MaxWorkers:  s.cfg.Concurrency.OrderPoolSize,
		MaxCapacity: s.cfg.Concurrency.OrderPoolBuffer,
	}, s.logger)
	defer pool.Stop()

	exec := order.NewExecutor(s.gateway, params.Symbol, params.Bias, pool, s.logger)
	handler := grid.NewFillHandler(params, state, exec, s.logger)
	seeder := grid.NewSeeder(params, exec, s.logger)
	priceWatcher := grid.NewPriceWatcher(s.gateway, params.Symbol, state, s.logger)
	orderWatcher := grid.NewOrderWatcher(s.gateway, params, handler, s.logger)
	rebalancer := grid.NewRebalancer(s.gateway, params, state, exec,
		time.Duration(s.cfg.Timing.RebalanceSettleDelayMs)*time.Millisecond, s.logger)
	publisher := metrics.NewPublisher(s.sink, state, params,
		s.cfg.App.VenueName, s.cfg.App.AccountTag,
		time.Duration(s.cfg.MetricsSink.WarmupSeconds)*time.Second,
		time.Duration(s.cfg.MetricsSink.IntervalSeconds)*time.Second,
		s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return priceWatcher.Run(gctx) })
	g.Go(func() error { return orderWatcher.Run(gctx) })
	g.Go(func() error {
		return rebalancer.Run(gctx,
			time.Duration(s.cfg.Timing.RebalanceWarmupSeconds)*time.Second,
			time.Duration(s.cfg.Timing.RebalanceIntervalMs)*time.Millisecond)
	})
	g.Go(func() error { return publisher.Run(gctx) })
	g.Go(func() error { return s.seedOnce(gctx, state, seeder) })
	g.Go(func() error { return s.statsLoop(gctx, state) })

	runErr := g.Wait()
	reason := "clean"
	if runErr != nil {
		reason = runErr.Error()
	}
	s.logger.Info("Trading loops stopped", "reason", reason)

	if s.cfg.System.CancelOnExit {
		s.cancelOpenOrders(params)
	}
	return runErr
}

// seedOnce waits for the first valid mid and seeds the ladder exactly
// once. Completing is not an error; the group keeps running.
func (s *Supervisor) seedOnce(ctx context.Context, state *grid.State, seeder *grid.Seeder) error {
	ticker := time.NewTicker(time.Duration(s.cfg.Timing.SeedPollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			mid := state.MidPrice()
			if !mid.IsPositive() {
				continue
			}
			seeder.Seed(ctx, mid)
			return nil
		}
	}
}

func (s *Supervisor) statsLoop(ctx context.Context, state *grid.State) error {
	ticker := time.NewTicker(time.Duration(s.cfg.Timing.StatsLogIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap := state.Snapshot()
			s.logger.Info("Grid stats",
				"primary_filled", snap.PrimaryFilled,
				"counter_filled", snap.CounterFilled,
				"net_position", snap.Net,
				"match_profit", snap.MatchProfit.String(),
				"mid_price", snap.MidPrice.String())
		}
	}
}

// cancelOpenOrders withdraws the resting ladder on shutdown. Runs on a
// fresh context because the run context is already canceled.
func (s *Supervisor) cancelOpenOrders(params grid.Params) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	open, err := s.gateway.FetchOpenOrders(ctx, params.Symbol)
	if err != nil {
		s.logger.Error("Exit cleanup fetch failed", "error", err.Error())
		return
	}
	for _, o := range open {
		if o.PositionSide != "" && o.PositionSide != params.Bias {
			continue
		}
		if err := s.gateway.CancelOrder(ctx, params.Symbol, o.ID); err != nil {
			s.logger.Warn("Exit cleanup cancel failed", "order_id", o.ID, "error", err.Error())
		}
	}
	s.logger.Info("Exit cleanup done", "orders", len(open))
}
