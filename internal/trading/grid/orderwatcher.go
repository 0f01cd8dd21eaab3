package grid

import (
	"context"

	"grid_trader/internal/core"
	"grid_trader/pkg/retry"
	"grid_trader/pkg/telemetry"
)

// OrderWatcher consumes the order-update stream, filters to the grid's
// position side and terminal fills, and hands each fill to the
// FillHandler exactly once per delivery. Redelivered terminal updates
// are accepted as-is; the rebalancer caps resting-order count.
type OrderWatcher struct {
	gateway core.IGateway
	params  Params
	handler *FillHandler
	logger  core.ILogger
}

func NewOrderWatcher(gateway core.IGateway, params Params, handler *FillHandler, logger core.ILogger) *OrderWatcher {
	return &OrderWatcher{
		gateway: gateway,
		params:  params,
		handler: handler,
		logger:  logger.WithField("component", "order_watcher"),
	}
}

// Run blocks until ctx is canceled. Same backoff policy as the price
// watcher, with its own attempt counter.
func (w *OrderWatcher) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		received, err := w.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			attempt = 0
		}

		attempt++
		wait := retry.StreamBackoff(attempt)
		telemetry.GetGlobalMetrics().StreamReconnects.Add(ctx, 1)
		w.logger.Error("Order stream failed, reconnecting",
			"attempt", attempt,
			"wait", wait.String(),
			"error", err.Error())
		if err := retry.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (w *OrderWatcher) consume(ctx context.Context) (bool, error) {
	stream, err := w.gateway.WatchOrders(ctx, w.params.Symbol)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	received := false
	for {
		o, err := stream.Recv(ctx)
		if err != nil {
			return received, err
		}
		received = true
		w.dispatch(ctx, o)
	}
}

// dispatch applies the filters: orders without an id are ignored,
// hedge-mode orders on the other position side are ignored, and only
// terminal fills reach the handler.
func (w *OrderWatcher) dispatch(ctx context.Context, o core.Order) {
	if o.ID == "" {
		return
	}
	if o.PositionSide != "" && o.PositionSide != w.params.Bias {
		return
	}
	if !o.IsTerminalFill() {
		return
	}
	w.logger.Debug("Terminal fill",
		"order_id", o.ID,
		"side", string(o.Side),
		"price", o.Price.String(),
		"filled", o.Filled.String())
	w.handler.OnFill(ctx, o)
}
