package grid

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid_trader/internal/core"
	"grid_trader/internal/mock"
	"grid_trader/internal/trading/order"
	"grid_trader/pkg/logging"
)

type rig struct {
	params  Params
	state   *State
	gateway *mock.Gateway
	handler *FillHandler
}

func newRig(t *testing.T, params Params) *rig {
	t.Helper()
	logger := logging.NewNopLogger()
	gateway := mock.NewGateway()
	state := NewState()
	exec := order.NewExecutor(gateway, params.Symbol, params.Bias, nil, logger)
	return &rig{
		params:  params,
		state:   state,
		gateway: gateway,
		handler: NewFillHandler(params, state, exec, logger),
	}
}

func terminalFill(side core.Side, price, amount string) core.Order {
	return core.Order{
		ID:     "f1",
		Symbol: "BTCUSDT",
		Side:   side,
		Price:  dec(price),
		Amount: dec(amount),
		Filled: dec(amount),
		Status: core.OrderStatusFilled,
	}
}

func TestOnFill_PrimaryFillPostsCounter(t *testing.T) {
	r := newRig(t, longParams())

	r.handler.OnFill(context.Background(), terminalFill(core.SideBuy, "100.00", "1000"))

	snap := r.state.Snapshot()
	assert.Equal(t, int64(1), snap.PrimaryFilled)
	assert.Equal(t, int64(0), snap.CounterFilled)

	created := r.gateway.CreatedOrders()
	require.Len(t, created, 1)
	assert.Equal(t, core.SideSell, created[0].Side)
	assert.True(t, created[0].Price.Equal(dec("100.5")), "got %s", created[0].Price)
	// Counter carries the filled contract count verbatim.
	assert.True(t, created[0].Amount.Equal(dec("1000")))
}

func TestOnFill_CounterFillBooksMatchAndReplenishes(t *testing.T) {
	r := newRig(t, longParams())

	r.handler.OnFill(context.Background(), terminalFill(core.SideBuy, "100.00", "1000"))
	r.handler.OnFill(context.Background(), terminalFill(core.SideSell, "100.50", "1000"))

	snap := r.state.Snapshot()
	assert.Equal(t, int64(1), snap.PrimaryFilled)
	assert.Equal(t, int64(1), snap.CounterFilled)
	assert.Equal(t, int64(0), snap.Net)
	// One round trip realizes notional * spread.
	assert.True(t, snap.MatchProfit.Equal(dec("5")), "got %s", snap.MatchProfit)

	created := r.gateway.CreatedOrders()
	require.Len(t, created, 2)
	// 100.50 * 0.995 rounds back to the vacated rung.
	assert.Equal(t, core.SideBuy, created[1].Side)
	assert.True(t, created[1].Price.Equal(dec("100")), "got %s", created[1].Price)
}

func TestOnFill_MatchProfitAccumulatesExactly(t *testing.T) {
	r := newRig(t, longParams())

	for i := 0; i < 3; i++ {
		r.handler.OnFill(context.Background(), terminalFill(core.SideSell, "100.50", "990.05"))
	}

	snap := r.state.Snapshot()
	assert.Equal(t, int64(3), snap.CounterFilled)
	assert.True(t, snap.MatchProfit.Equal(dec("15")), "got %s", snap.MatchProfit)
}

func TestOnFill_MissingPriceSkipsPosting(t *testing.T) {
	r := newRig(t, longParams())

	o := terminalFill(core.SideBuy, "0", "1000")
	r.handler.OnFill(context.Background(), o)

	// The fill is still booked; only the posting is skipped.
	assert.Equal(t, int64(1), r.state.Snapshot().PrimaryFilled)
	assert.Empty(t, r.gateway.CreatedOrders())
}

func TestOnFill_PostingFailureIsSwallowed(t *testing.T) {
	r := newRig(t, longParams())
	r.gateway.SetCreateError(errors.New("venue rejected"))

	r.handler.OnFill(context.Background(), terminalFill(core.SideBuy, "100.00", "1000"))

	assert.Equal(t, int64(1), r.state.Snapshot().PrimaryFilled)
	assert.Empty(t, r.gateway.CreatedOrders())
}

func TestOnFill_ShortBias(t *testing.T) {
	r := newRig(t, shortParams())

	// Primary side is sell under a short bias.
	r.handler.OnFill(context.Background(), terminalFill(core.SideSell, "100.00", "1000"))

	snap := r.state.Snapshot()
	assert.Equal(t, int64(1), snap.PrimaryFilled)

	created := r.gateway.CreatedOrders()
	require.Len(t, created, 1)
	assert.Equal(t, core.SideBuy, created[0].Side)
	assert.True(t, created[0].Price.Equal(dec("99.5")), "got %s", created[0].Price)
}

func TestOnFill_NetNeverBelowCounterFills(t *testing.T) {
	r := newRig(t, longParams())

	r.handler.OnFill(context.Background(), terminalFill(core.SideBuy, "100.00", "1000"))
	r.handler.OnFill(context.Background(), terminalFill(core.SideBuy, "99.50", "1005.03"))
	r.handler.OnFill(context.Background(), terminalFill(core.SideSell, "100.50", "1000"))

	snap := r.state.Snapshot()
	assert.GreaterOrEqual(t, snap.PrimaryFilled, snap.CounterFilled)
	assert.Equal(t, int64(1), snap.Net)
}
