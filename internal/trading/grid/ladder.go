package grid

import (
	"github.com/shopspring/decimal"
)

// RungPrices generates n rung prices cascading geometrically from ref:
// ref * factor^i for i = 0..n-1, each rounded independently so rounding
// error does not compound across rungs.
func RungPrices(ref, factor decimal.Decimal, n int, decimals int32) []decimal.Decimal {
	if n <= 0 || !ref.IsPositive() {
		return nil
	}
	prices := make([]decimal.Decimal, 0, n)
	step := one
	for i := 0; i < n; i++ {
		prices = append(prices, ref.Mul(step).Round(decimals))
		step = step.Mul(factor)
	}
	return prices
}

// PrimaryRungs cascades n primary-side prices away from the mid,
// starting at ref itself.
func (p Params) PrimaryRungs(ref decimal.Decimal, n int) []decimal.Decimal {
	return RungPrices(ref, p.PrimaryStepFactor(), n, p.PriceDecimals)
}

// CounterRungs cascades n counter-side prices away from the mid,
// starting at ref itself.
func (p Params) CounterRungs(ref decimal.Decimal, n int) []decimal.Decimal {
	return RungPrices(ref, p.CounterStepFactor(), n, p.PriceDecimals)
}
