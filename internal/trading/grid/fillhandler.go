package grid

import (
	"context"

	"grid_trader/internal/core"
	"grid_trader/internal/trading/order"
	"grid_trader/pkg/telemetry"
)

// FillHandler reacts to terminal fills: books the fill and posts the
// covering order one rung away. Errors never propagate out of OnFill;
// a failed posting is harmless because the rebalancer repopulates the
// ladder on its next pass.
type FillHandler struct {
	params Params
	state  *State
	exec   *order.Executor
	logger core.ILogger
}

func NewFillHandler(params Params, state *State, exec *order.Executor, logger core.ILogger) *FillHandler {
	return &FillHandler{
		params: params,
		state:  state,
		exec:   exec,
		logger: logger.WithField("component", "fill_handler"),
	}
}

// OnFill processes one terminal fill. The caller has already filtered
// for terminal status and position side.
func (h *FillHandler) OnFill(ctx context.Context, o core.Order) {
	metrics := telemetry.GetGlobalMetrics()
	metrics.FillsTotal.Add(ctx, 1)

	if h.params.IsPrimary(o.Side) {
		h.state.RecordPrimaryFill()

		if o.Price.IsPositive() {
			counterPrice := h.params.CounterPrice(o.Price)
			if _, err := h.exec.PlaceLimit(ctx, h.params.CounterSide(), o.Filled, counterPrice); err != nil {
				h.logger.Error("Counter posting failed", "order_id", o.ID, "price", counterPrice.String(), "error", err.Error())
			}
		} else {
			h.logger.Warn("Fill without a usable price, counter skipped", "order_id", o.ID, "side", string(o.Side))
		}
	} else {
		profit := h.params.MatchProfit()
		h.state.RecordCounterFill(profit)
		metrics.MatchProfitTotal.Add(ctx, profit.InexactFloat64())

		if o.Price.IsPositive() {
			replenishPrice := h.params.ReplenishPrice(o.Price)
			if _, err := h.exec.PlaceLimit(ctx, h.params.PrimarySide(), o.Filled, replenishPrice); err != nil {
				h.logger.Error("Replenish posting failed", "order_id", o.ID, "price", replenishPrice.String(), "error", err.Error())
			}
		} else {
			h.logger.Warn("Fill without a usable price, replenish skipped", "order_id", o.ID, "side", string(o.Side))
		}
	}

	metrics.VolumeTotal.Add(ctx, h.params.Notional.InexactFloat64())
	metrics.SetNetPosition(h.params.Symbol, h.state.Net())
}
