package grid

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"grid_trader/internal/core"
	"grid_trader/internal/trading/order"
	"grid_trader/pkg/retry"
	"grid_trader/pkg/telemetry"
)

// hysteresis band: a side has to exceed the other by 10% before a
// rebalance phase fires. Compared as count*10 > other*11 to stay in
// integer arithmetic.
const (
	hysteresisNum = 11
	hysteresisDen = 10
)

// Rebalancer reconciles the resting ladder with its target shape once
// per tick. The venue is the source of truth: every pass starts from a
// fresh open-orders snapshot and the engine keeps no order store.
type Rebalancer struct {
	gateway     core.IGateway
	params      Params
	state       *State
	exec        *order.Executor
	logger      core.ILogger
	settleDelay time.Duration

	// single-flight token, capacity 1
	passTok chan struct{}
}

func NewRebalancer(gateway core.IGateway, params Params, state *State, exec *order.Executor, settleDelay time.Duration, logger core.ILogger) *Rebalancer {
	return &Rebalancer{
		gateway:     gateway,
		params:      params,
		state:       state,
		exec:        exec,
		logger:      logger.WithField("component", "rebalancer"),
		settleDelay: settleDelay,
		passTok:     make(chan struct{}, 1),
	}
}

// Run executes passes on the given cadence after an initial warm-up.
// Pass errors are logged and absorbed; the next pass corrects drift.
func (r *Rebalancer) Run(ctx context.Context, warmup, interval time.Duration) error {
	if err := retry.Sleep(ctx, warmup); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Error("Rebalance pass failed", "error", err.Error())
			}
		}
	}
}

// RunOnce executes one pass: Phase A (too many counters), Phase B (too
// many primaries), then after a settle delay Phase C (total count).
// Passes are single-flight; a pass arriving while one is in progress
// returns immediately.
func (r *Rebalancer) RunOnce(ctx context.Context) error {
	select {
	case r.passTok <- struct{}{}:
	default:
		return nil
	}
	defer func() { <-r.passTok }()

	open, err := r.gateway.FetchOpenOrders(ctx, r.params.Symbol)
	if err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}

	primaries, counters := r.classify(open)
	np, nc := len(primaries), len(counters)
	net := int(r.state.Net())
	maxDiff := max(1, r.params.NumOrders/5)

	r.logger.Debug("Rebalance pass",
		"total_open", np+nc,
		"primary_open", np,
		"counter_open", nc,
		"net", net)

	if nc*hysteresisDen > np*hysteresisNum {
		r.trimCounters(ctx, primaries, counters, maxDiff)
	}

	if np*hysteresisDen > nc*hysteresisNum && net > nc {
		r.trimPrimaries(ctx, primaries, counters, net, maxDiff)
	}

	if err := retry.Sleep(ctx, r.settleDelay); err != nil {
		return err
	}

	final, err := r.gateway.FetchOpenOrders(ctx, r.params.Symbol)
	if err != nil {
		return fmt.Errorf("refetch open orders: %w", err)
	}
	finalPrimaries, finalCounters := r.classify(final)
	count := r.adjustTotal(ctx, finalPrimaries, finalCounters)

	metrics := telemetry.GetGlobalMetrics()
	metrics.RebalancePassesTotal.Add(ctx, 1)
	metrics.SetOpenOrders(r.params.Symbol, int64(count))
	metrics.SetNetPosition(r.params.Symbol, r.state.Net())
	return nil
}

// trimCounters is Phase A: cancel the counter orders farthest from the
// mid and post replacement primary rungs below the current ladder.
func (r *Rebalancer) trimCounters(ctx context.Context, primaries, counters []core.Order, maxDiff int) {
	diff := min(len(counters)-len(primaries), maxDiff)
	r.logger.Info("Too many counter orders, rebalancing with primaries", "diff", diff)

	for _, o := range r.farthestCounters(counters)[:diff] {
		if err := r.exec.Cancel(ctx, o.ID); err != nil {
			r.logger.Warn("Cancel failed", "order_id", o.ID, "error", err.Error())
		}
	}

	ref := decimal.Zero
	if fp := r.farthestPrimaries(primaries); len(fp) > 0 {
		ref = fp[0].Price.Mul(r.params.PrimaryStepFactor())
	}
	if !ref.IsPositive() {
		r.logger.Warn("No primary rung to anchor on, skipping replacements")
		return
	}
	r.postPrimaries(ctx, ref, diff)
}

// trimPrimaries is Phase B: cancel the primary orders farthest from
// the mid and post counter rungs above the current ladder. Counters
// are only added against realized inventory, so the diff is capped by
// net minus the counters already resting.
func (r *Rebalancer) trimPrimaries(ctx context.Context, primaries, counters []core.Order, net, maxDiff int) {
	diff := min(len(primaries)-len(counters), net-len(counters), maxDiff)
	r.logger.Info("Too many primary orders, rebalancing with counters", "diff", diff)

	for _, o := range r.farthestPrimaries(primaries)[:diff] {
		if err := r.exec.Cancel(ctx, o.ID); err != nil {
			r.logger.Warn("Cancel failed", "order_id", o.ID, "error", err.Error())
		}
	}

	ref := decimal.Zero
	if fc := r.farthestCounters(counters); len(fc) > 0 {
		ref = fc[0].Price.Mul(r.params.CounterStepFactor())
	}
	if !ref.IsPositive() {
		r.logger.Warn("No counter rung to anchor on, skipping replacements")
		return
	}

	var placements []order.Placement
	for _, p := range r.params.CounterRungs(ref, diff) {
		placements = append(placements, order.Placement{
			Side:   r.params.CounterSide(),
			Amount: r.params.CounterAmount(p),
			Price:  p,
		})
	}
	r.exec.PlaceBatch(ctx, placements)
}

// adjustTotal is Phase C: top up a shortfall with primary rungs past
// the current ladder edge, or cancel the excess farthest from the mid.
// Returns the resulting open-order count.
func (r *Rebalancer) adjustTotal(ctx context.Context, primaries, counters []core.Order) int {
	total := len(primaries) + len(counters)
	switch {
	case total < r.params.NumOrders:
		missing := r.params.NumOrders - total
		r.logger.Info("Ladder short, topping up", "missing", missing)

		ref := decimal.Zero
		if fp := r.farthestPrimaries(primaries); len(fp) > 0 {
			ref = fp[0].Price.Mul(r.params.PrimaryStepFactor())
		}
		if !ref.IsPositive() {
			r.logger.Warn("No primary rung to anchor on, top-up skipped")
			return total
		}
		return total + r.postPrimaries(ctx, ref, missing)

	case total > r.params.NumOrders:
		excess := total - r.params.NumOrders
		r.logger.Info("Ladder over target, canceling extras", "excess", excess)

		book := append(append([]core.Order{}, primaries...), counters...)
		canceled := 0
		for _, o := range r.farthestOverall(book)[:excess] {
			if err := r.exec.Cancel(ctx, o.ID); err != nil {
				r.logger.Warn("Cancel failed", "order_id", o.ID, "error", err.Error())
				continue
			}
			canceled++
		}
		return total - canceled
	}
	return total
}

func (r *Rebalancer) postPrimaries(ctx context.Context, ref decimal.Decimal, n int) int {
	var placements []order.Placement
	for _, p := range r.params.PrimaryRungs(ref, n) {
		placements = append(placements, order.Placement{
			Side:   r.params.PrimarySide(),
			Amount: r.params.PrimaryAmount(p),
			Price:  p,
		})
	}
	return r.exec.PlaceBatch(ctx, placements)
}

func (r *Rebalancer) classify(open []core.Order) (primaries, counters []core.Order) {
	for _, o := range open {
		if o.PositionSide != "" && o.PositionSide != r.params.Bias {
			continue
		}
		if r.params.IsPrimary(o.Side) {
			primaries = append(primaries, o)
		} else {
			counters = append(counters, o)
		}
	}
	return primaries, counters
}

// farthestPrimaries orders primary-side orders farthest-from-mid
// first: lowest-priced buys under a long bias, highest-priced sells
// under a short bias.
func (r *Rebalancer) farthestPrimaries(orders []core.Order) []core.Order {
	return sortedByPrice(orders, r.params.Bias != core.PositionSideShort)
}

// farthestCounters is the mirror image for counter-side orders.
func (r *Rebalancer) farthestCounters(orders []core.Order) []core.Order {
	return sortedByPrice(orders, r.params.Bias == core.PositionSideShort)
}

// farthestOverall orders the whole book with the primary-away extreme
// first, used when canceling excess orders.
func (r *Rebalancer) farthestOverall(orders []core.Order) []core.Order {
	return sortedByPrice(orders, r.params.Bias != core.PositionSideShort)
}

func sortedByPrice(orders []core.Order, ascending bool) []core.Order {
	out := make([]core.Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].Price.GreaterThan(out[j].Price)
	})
	return out
}
