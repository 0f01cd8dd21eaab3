package grid

import (
	"context"

	"grid_trader/internal/core"
	"grid_trader/pkg/retry"
	"grid_trader/pkg/telemetry"
)

// PriceWatcher drives State.MidPrice from the best bid/ask stream.
// On any stream error it closes the subscription, waits
// min(2^attempt, 60) seconds and re-subscribes. The attempt counter
// resets on the next successful update.
type PriceWatcher struct {
	gateway core.IGateway
	symbol  string
	state   *State
	logger  core.ILogger
}

func NewPriceWatcher(gateway core.IGateway, symbol string, state *State, logger core.ILogger) *PriceWatcher {
	return &PriceWatcher{
		gateway: gateway,
		symbol:  symbol,
		state:   state,
		logger:  logger.WithField("component", "price_watcher"),
	}
}

// Run blocks until ctx is canceled.
func (w *PriceWatcher) Run(ctx context.Context) error {
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
		w.logger.Error("Price stream failed, reconnecting",
			"attempt", attempt,
			"wait", wait.String(),
			"error", err.Error())
		if err := retry.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// consume reports whether at least one update was processed before the
// stream failed.
func (w *PriceWatcher) consume(ctx context.Context) (bool, error) {
	stream, err := w.gateway.WatchBidsAsks(ctx, w.symbol)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	received := false
	for {
		tick, err := stream.Recv(ctx)
		if err != nil {
			return received, err
		}
		received = true
		w.state.SetMidPrice(tick.Mid())
	}
}
