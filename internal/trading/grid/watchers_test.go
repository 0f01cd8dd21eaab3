package grid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid_trader/internal/core"
	"grid_trader/pkg/logging"
)

func eventually(t *testing.T, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	require.Eventually(t, cond, timeout, 5*time.Millisecond, msg)
}

func TestPriceWatcher_DrivesMidPrice(t *testing.T) {
	r := newRig(t, longParams())
	w := NewPriceWatcher(r.gateway, r.params.Symbol, r.state, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	eventually(t, r.gateway.HasTickerStream, time.Second, "subscription not opened")
	r.gateway.PushTicker(core.BookTicker{Symbol: "BTCUSDT", Bid: dec("99.90"), Ask: dec("100.10")})

	eventually(t, func() bool {
		return r.state.MidPrice().Equal(dec("100"))
	}, time.Second, "mid not updated")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestOrderWatcher_DispatchFilters(t *testing.T) {
	r := newRig(t, longParams())
	w := NewOrderWatcher(r.gateway, r.params, r.handler, logging.NewNopLogger())
	ctx := context.Background()

	// No id.
	o := terminalFill(core.SideBuy, "100.00", "1000")
	o.ID = ""
	w.dispatch(ctx, o)

	// Other position side in hedge mode.
	o = terminalFill(core.SideBuy, "100.00", "1000")
	o.PositionSide = core.PositionSideShort
	w.dispatch(ctx, o)

	// Partial fill.
	o = terminalFill(core.SideBuy, "100.00", "1000")
	o.Filled = dec("500")
	w.dispatch(ctx, o)

	// Non-terminal status.
	o = terminalFill(core.SideBuy, "100.00", "1000")
	o.Status = core.OrderStatusOpen
	w.dispatch(ctx, o)

	assert.Equal(t, int64(0), r.state.Snapshot().PrimaryFilled)
	assert.Empty(t, r.gateway.CreatedOrders())

	// Terminal fill on the grid's side passes through.
	o = terminalFill(core.SideBuy, "100.00", "1000")
	o.PositionSide = core.PositionSideLong
	w.dispatch(ctx, o)

	assert.Equal(t, int64(1), r.state.Snapshot().PrimaryFilled)
	assert.Len(t, r.gateway.CreatedOrders(), 1)
}

func TestOrderWatcher_UntaggedOrdersPassFilter(t *testing.T) {
	// Venues without hedge mode leave the position side empty.
	r := newRig(t, longParams())
	w := NewOrderWatcher(r.gateway, r.params, r.handler, logging.NewNopLogger())

	w.dispatch(context.Background(), terminalFill(core.SideBuy, "100.00", "1000"))
	assert.Equal(t, int64(1), r.state.Snapshot().PrimaryFilled)
}

func TestOrderWatcher_DeliversStreamedFills(t *testing.T) {
	r := newRig(t, longParams())
	w := NewOrderWatcher(r.gateway, r.params, r.handler, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	eventually(t, r.gateway.HasOrderStream, time.Second, "subscription not opened")
	r.gateway.PushOrderUpdate(terminalFill(core.SideBuy, "99.50", "1005.03"))

	eventually(t, func() bool {
		return r.state.Snapshot().PrimaryFilled == 1
	}, time.Second, "fill not dispatched")

	created := r.gateway.CreatedOrders()
	require.Len(t, created, 1)
	assert.Equal(t, core.SideSell, created[0].Side)
	assert.True(t, created[0].Price.Equal(dec("100")), "got %s", created[0].Price)
}

func TestPriceWatcher_ResubscribesAfterStreamFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("waits through a real backoff interval")
	}

	r := newRig(t, longParams())
	w := NewPriceWatcher(r.gateway, r.params.Symbol, r.state, logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	eventually(t, r.gateway.HasTickerStream, time.Second, "subscription not opened")
	r.gateway.PushTicker(core.BookTicker{Bid: dec("99"), Ask: dec("101")})
	eventually(t, func() bool { return r.state.MidPrice().Equal(dec("100")) }, time.Second, "first tick lost")

	r.gateway.FailTickerStream(assert.AnError)

	// After one successful update the attempt counter is reset, so the
	// reconnect wait is 2^1 seconds.
	eventually(t, func() bool {
		r.gateway.PushTicker(core.BookTicker{Bid: dec("101"), Ask: dec("103")})
		return r.state.MidPrice().Equal(dec("102"))
	}, 5*time.Second, "stream did not come back")
}
