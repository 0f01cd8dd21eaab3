package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid_trader/internal/core"
	"grid_trader/internal/mock"
	"grid_trader/pkg/logging"
)

func newExecutor(t *testing.T) (*Executor, *mock.Gateway) {
	t.Helper()
	g := mock.NewGateway()
	return NewExecutor(g, "BTCUSDT", core.PositionSideLong, nil, logging.NewNopLogger()), g
}

func TestPlaceLimit_TagsOrder(t *testing.T) {
	e, g := newExecutor(t)

	placed, err := e.PlaceLimit(context.Background(), core.SideBuy, decimal.NewFromInt(10), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.NotEmpty(t, placed.ID)

	created := g.CreatedOrders()
	require.Len(t, created, 1)
	assert.Equal(t, "BTCUSDT", created[0].Symbol)
	assert.Equal(t, core.PositionSideLong, created[0].PositionSide)
	assert.NotEmpty(t, created[0].ClientOrderID)
	// Binance caps client order ids at 36 characters.
	assert.LessOrEqual(t, len(created[0].ClientOrderID), 36)
}

func TestPlaceLimit_GuardsBadValues(t *testing.T) {
	e, g := newExecutor(t)
	ctx := context.Background()

	_, err := e.PlaceLimit(ctx, core.SideBuy, decimal.NewFromInt(10), decimal.Zero)
	assert.Error(t, err)

	_, err = e.PlaceLimit(ctx, core.SideBuy, decimal.Zero, decimal.NewFromInt(100))
	assert.Error(t, err)

	_, err = e.PlaceLimit(ctx, core.SideBuy, decimal.NewFromInt(-1), decimal.NewFromInt(100))
	assert.Error(t, err)

	assert.Empty(t, g.CreatedOrders())
}

func TestPlaceBatch_CountsOnlySuccesses(t *testing.T) {
	e, g := newExecutor(t)

	placed := e.PlaceBatch(context.Background(), []Placement{
		{Side: core.SideBuy, Amount: decimal.NewFromInt(10), Price: decimal.NewFromInt(100)},
		{Side: core.SideBuy, Amount: decimal.NewFromInt(10), Price: decimal.Zero},
		{Side: core.SideBuy, Amount: decimal.NewFromInt(10), Price: decimal.NewFromInt(99)},
	})

	assert.Equal(t, 2, placed)
	assert.Len(t, g.CreatedOrders(), 2)
}

func TestCancel_UnknownOrder(t *testing.T) {
	e, _ := newExecutor(t)
	assert.Error(t, e.Cancel(context.Background(), "missing"))
}

func TestClientOrderIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newClientOrderID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
