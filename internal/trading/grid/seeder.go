package grid

import (
	"context"

	"github.com/shopspring/decimal"

	"grid_trader/internal/core"
	"grid_trader/internal/trading/order"
)

// Seeder places the initial ladder. Invoked exactly once by the
// supervisor when the first valid mid-price arrives.
type Seeder struct {
	params Params
	exec   *order.Executor
	logger core.ILogger
}

func NewSeeder(params Params, exec *order.Executor, logger core.ILogger) *Seeder {
	return &Seeder{
		params: params,
		exec:   exec,
		logger: logger.WithField("component", "seeder"),
	}
}

// Seed posts num_orders primary rungs cascading away from mid, with
// mid itself as the first rung.
func (s *Seeder) Seed(ctx context.Context, mid decimal.Decimal) int {
	s.logger.Info("Seeding ladder",
		"mid", mid.String(),
		"num_orders", s.params.NumOrders,
		"side", string(s.params.PrimarySide()))

	var placements []order.Placement
	for _, p := range s.params.PrimaryRungs(mid, s.params.NumOrders) {
		placements = append(placements, order.Placement{
			Side:   s.params.PrimarySide(),
			Amount: s.params.PrimaryAmount(p),
			Price:  p,
		})
	}

	placed := s.exec.PlaceBatch(ctx, placements)
	if placed < len(placements) {
		s.logger.Warn("Seeding placed fewer orders than requested",
			"placed", placed,
			"requested", len(placements))
	}
	return placed
}
