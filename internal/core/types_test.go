package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsTerminalFill(t *testing.T) {
	base := Order{
		Amount: decimal.NewFromInt(10),
		Filled: decimal.NewFromInt(10),
		Status: OrderStatusFilled,
	}
	assert.True(t, base.IsTerminalFill())

	closed := base
	closed.Status = OrderStatusClosed
	assert.True(t, closed.IsTerminalFill())

	partial := base
	partial.Filled = decimal.NewFromInt(5)
	assert.False(t, partial.IsTerminalFill())

	open := base
	open.Status = OrderStatusOpen
	assert.False(t, open.IsTerminalFill())

	canceled := base
	canceled.Status = OrderStatusCanceled
	assert.False(t, canceled.IsTerminalFill())

	// A closed order that never traded is a cancel, not a fill.
	empty := Order{Amount: decimal.Zero, Filled: decimal.Zero, Status: OrderStatusClosed}
	assert.False(t, empty.IsTerminalFill())
}

func TestBookTickerMid(t *testing.T) {
	tick := BookTicker{
		Bid: decimal.RequireFromString("99.90"),
		Ask: decimal.RequireFromString("100.10"),
	}
	assert.True(t, tick.Mid().Equal(decimal.NewFromInt(100)))
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}
