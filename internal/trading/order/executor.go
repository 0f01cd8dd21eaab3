// Package order provides the placement/cancel layer between the grid
// engine and the gateway.
package order

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"grid_trader/internal/core"
	"grid_trader/pkg/concurrency"
	"grid_trader/pkg/telemetry"
)

// Placement describes one limit order to be posted.
type Placement struct {
	Side   core.Side
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Executor places and cancels orders through the gateway. Calls are
// single-shot: failures are returned to the caller, never retried here.
type Executor struct {
	gateway core.IGateway
	symbol  string
	posSide core.PositionSide
	pool    *concurrency.WorkerPool
	logger  core.ILogger
}

func NewExecutor(gateway core.IGateway, symbol string, posSide core.PositionSide, pool *concurrency.WorkerPool, logger core.ILogger) *Executor {
	return &Executor{
		gateway: gateway,
		symbol:  symbol,
		posSide: posSide,
		pool:    pool,
		logger:  logger.WithField("component", "executor"),
	}
}

// PlaceLimit posts a single limit order. Non-positive price or amount
// is a guard failure, not a venue call.
func (e *Executor) PlaceLimit(ctx context.Context, side core.Side, amount, price decimal.Decimal) (*core.Order, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("refusing order with non-positive price %s", price)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("refusing order with non-positive amount %s", amount)
	}

	req := core.CreateOrderRequest{
		Symbol:        e.symbol,
		Side:          side,
		PositionSide:  e.posSide,
		Amount:        amount,
		Price:         price,
		ClientOrderID: newClientOrderID(),
	}

	placed, err := e.gateway.CreateOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create order %s %s @ %s: %w", side, amount, price, err)
	}

	telemetry.GetGlobalMetrics().OrdersPlacedTotal.Add(ctx, 1)
	e.logger.Info("Order placed",
		"side", string(side),
		"amount", amount.String(),
		"price", price.String(),
		"order_id", placed.ID)
	return placed, nil
}

// Cancel cancels a resting order by id.
func (e *Executor) Cancel(ctx context.Context, orderID string) error {
	if err := e.gateway.CancelOrder(ctx, e.symbol, orderID); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	telemetry.GetGlobalMetrics().OrdersCanceledTotal.Add(ctx, 1)
	e.logger.Info("Order canceled", "order_id", orderID)
	return nil
}

// PlaceBatch posts a set of orders through the worker pool and waits
// for all of them. Individual failures are logged and counted, not
// returned; the rebalancer converges on the next pass.
func (e *Executor) PlaceBatch(ctx context.Context, placements []Placement) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := 0

	for _, p := range placements {
		p := p
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if _, err := e.PlaceLimit(ctx, p.Side, p.Amount, p.Price); err != nil {
				e.logger.Warn("Batch placement failed", "error", err.Error())
				return
			}
			mu.Lock()
			placed++
			mu.Unlock()
		}
		if e.pool != nil {
			if err := e.pool.Submit(task); err != nil {
				e.logger.Warn("Batch submit rejected", "error", err.Error())
				wg.Done()
			}
		} else {
			task()
		}
	}

	wg.Wait()
	return placed
}

func newClientOrderID() string {
	return "grid" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
