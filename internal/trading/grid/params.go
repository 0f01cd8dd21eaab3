// Package grid implements the order manager: ladder seeding, fill
// handling, and periodic rebalancing for a single-instrument grid.
package grid

import (
	"github.com/shopspring/decimal"

	"grid_trader/internal/config"
	"grid_trader/internal/core"
)

var one = decimal.NewFromInt(1)

// Params is the immutable grid configuration. Created at startup from
// config, never mutated afterwards.
type Params struct {
	Symbol         string
	Bias           core.PositionSide
	Spread         decimal.Decimal
	Notional       decimal.Decimal
	NumOrders      int
	PriceDecimals  int32
	AmountDecimals int32
	ContractSize   decimal.Decimal
}

// FromConfig builds Params from the validated grid config section.
func FromConfig(cfg config.GridConfig) Params {
	return Params{
		Symbol:         cfg.Symbol,
		Bias:           core.PositionSide(cfg.SideBias),
		Spread:         decimal.NewFromFloat(cfg.Spread),
		Notional:       decimal.NewFromFloat(cfg.Notional),
		NumOrders:      cfg.NumOrders,
		PriceDecimals:  cfg.PriceDecimals,
		AmountDecimals: cfg.AmountDecimals,
		ContractSize:   decimal.NewFromFloat(cfg.ContractSize),
	}
}

// PrimarySide returns the resting side of the grid: buys under a long
// bias, sells under a short bias.
func (p Params) PrimarySide() core.Side {
	if p.Bias == core.PositionSideShort {
		return core.SideSell
	}
	return core.SideBuy
}

// CounterSide returns the side that covers a primary fill.
func (p Params) CounterSide() core.Side {
	return p.PrimarySide().Opposite()
}

// IsPrimary reports whether an order side is the primary side.
func (p Params) IsPrimary(side core.Side) bool {
	return side == p.PrimarySide()
}

// PrimaryStepFactor moves a price one rung away from the mid on the
// primary side: (1 - spread) for long, (1 + spread) for short.
func (p Params) PrimaryStepFactor() decimal.Decimal {
	if p.Bias == core.PositionSideShort {
		return one.Add(p.Spread)
	}
	return one.Sub(p.Spread)
}

// CounterStepFactor moves a price one rung toward the counter side:
// (1 + spread) for long, (1 - spread) for short.
func (p Params) CounterStepFactor() decimal.Decimal {
	if p.Bias == core.PositionSideShort {
		return one.Sub(p.Spread)
	}
	return one.Add(p.Spread)
}

// CounterPrice is the price of the covering order for a primary fill
// at the given price.
func (p Params) CounterPrice(price decimal.Decimal) decimal.Decimal {
	return p.RoundPrice(price.Mul(p.CounterStepFactor()))
}

// ReplenishPrice restores the primary rung vacated by a counter fill
// at the given price.
func (p Params) ReplenishPrice(price decimal.Decimal) decimal.Decimal {
	return p.RoundPrice(price.Mul(p.PrimaryStepFactor()))
}

// PrimaryAmount converts the per-rung notional to a contract count at
// the given price. Returns zero for a non-positive price.
func (p Params) PrimaryAmount(price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return p.RoundAmount(p.Notional.Div(price).Div(p.ContractSize))
}

// CounterAmount is the contract count for a counter rung. It carries a
// (1 - spread) factor so the notional balances the filled primary.
func (p Params) CounterAmount(price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return p.RoundAmount(p.Notional.Mul(one.Sub(p.Spread)).Div(price).Div(p.ContractSize))
}

// MatchProfit is the realized profit of one completed round trip.
func (p Params) MatchProfit() decimal.Decimal {
	return p.Notional.Mul(p.Spread)
}

func (p Params) RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(p.PriceDecimals)
}

func (p Params) RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(p.AmountDecimals)
}
