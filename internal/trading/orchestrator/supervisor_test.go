package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid_trader/internal/config"
	"grid_trader/internal/core"
	"grid_trader/internal/mock"
	"grid_trader/pkg/logging"
)

type nopSink struct{}

func (nopSink) Upsert(ctx context.Context, rec core.MetricsRecord) error { return nil }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	// Keep the periodic loops quiet for the duration of a unit test.
	cfg.Timing.RebalanceWarmupSeconds = 60
	cfg.Timing.SeedPollIntervalMs = 5
	return cfg
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSupervisor_SeedsExactlyOnce(t *testing.T) {
	gateway := mock.NewGateway()
	sup := NewSupervisor(testConfig(), gateway, nopSink{}, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, gateway.HasTickerStream, time.Second, 5*time.Millisecond)

	// Several ticks, one seeding.
	for i := 0; i < 5; i++ {
		gateway.PushTicker(core.BookTicker{Symbol: "BTCUSDT", Bid: dec("99.90"), Ask: dec("100.10")})
	}

	require.Eventually(t, func() bool {
		return len(gateway.CreatedOrders()) == 10
	}, 2*time.Second, 5*time.Millisecond, "ladder not seeded")

	// Give the seed poller room to misbehave before checking it ran
	// only once.
	time.Sleep(50 * time.Millisecond)
	created := gateway.CreatedOrders()
	require.Len(t, created, 10)
	prices := make(map[string]bool)
	for _, o := range created {
		assert.Equal(t, core.SideBuy, o.Side)
		assert.Equal(t, core.PositionSideLong, o.PositionSide)
		prices[o.Price.String()] = true
	}
	// Placement order is up to the worker pool; the rung set is not.
	assert.True(t, prices["100"], "mid rung missing: %v", prices)
	assert.True(t, prices["95.59"], "far rung missing: %v", prices)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisor_LoadsMarketsBeforeTrading(t *testing.T) {
	gateway := mock.NewGateway()
	sup := NewSupervisor(testConfig(), gateway, nopSink{}, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, func() bool { return gateway.LoadMarketsCalls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSupervisor_CancelOnExitClearsLadder(t *testing.T) {
	cfg := testConfig()
	cfg.System.CancelOnExit = true

	gateway := mock.NewGateway()
	sup := NewSupervisor(cfg, gateway, nopSink{}, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Eventually(t, gateway.HasTickerStream, time.Second, 5*time.Millisecond)
	gateway.PushTicker(core.BookTicker{Symbol: "BTCUSDT", Bid: dec("99.90"), Ask: dec("100.10")})
	require.Eventually(t, func() bool {
		return len(gateway.CreatedOrders()) == 10
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	assert.Empty(t, gateway.OpenOrders())
	assert.Len(t, gateway.CanceledIDs(), 10)
}
