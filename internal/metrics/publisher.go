package metrics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"grid_trader/internal/core"
	"grid_trader/internal/trading/grid"
	"grid_trader/pkg/retry"
)

// Publisher writes one snapshot record to the sink on a fixed interval
// after a warm-up. Sink failures are logged and never reach the
// trading loops.
type Publisher struct {
	sink     core.IMetricsSink
	state    *grid.State
	params   grid.Params
	venue    string
	account  string
	warmup   time.Duration
	interval time.Duration
	logger   core.ILogger
}

func NewPublisher(sink core.IMetricsSink, state *grid.State, params grid.Params, venue, account string, warmup, interval time.Duration, logger core.ILogger) *Publisher {
	return &Publisher{
		sink:     sink,
		state:    state,
		params:   params,
		venue:    venue,
		account:  account,
		warmup:   warmup,
		interval: interval,
		logger:   logger.WithField("component", "metrics_publisher"),
	}
}

// Run blocks until ctx is canceled. Publishes once after the warm-up,
// then on every interval tick.
func (p *Publisher) Run(ctx context.Context) error {
	if err := retry.Sleep(ctx, p.warmup); err != nil {
		return err
	}
	p.Publish(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Publish(ctx)
		}
	}
}

// Publish writes one record built from the current state snapshot.
func (p *Publisher) Publish(ctx context.Context) {
	rec := p.buildRecord(time.Now().UTC())
	if err := p.sink.Upsert(ctx, rec); err != nil {
		p.logger.Error("Metrics publish failed", "error", err.Error())
		return
	}
	p.logger.Debug("Metrics published",
		"match_profit", rec.MatchProfit,
		"net_position", rec.NetPosition,
		"total_volume", rec.TotalVolume)
}

func (p *Publisher) buildRecord(now time.Time) core.MetricsRecord {
	snap := p.state.Snapshot()
	totalFills := decimal.NewFromInt(snap.PrimaryFilled + snap.CounterFilled)
	return core.MetricsRecord{
		Venue:           p.venue,
		Account:         p.account,
		Symbol:          p.params.Symbol,
		Timestamp:       now.UnixMilli(),
		MatchProfit:     snap.MatchProfit.String(),
		NumberOfMatches: snap.CounterFilled,
		NetPosition:     snap.Net,
		TotalVolume:     totalFills.Mul(p.params.Notional).String(),
	}
}
