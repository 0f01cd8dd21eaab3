// Package binance adapts Binance USD-M futures to the gateway
// interface the engine depends on.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"golang.org/x/time/rate"

	"grid_trader/internal/core"
)

const (
	restTimeout = 10 * time.Second

	// Conservative share of the venue's request-weight budget.
	restRatePerSecond = 8
	restBurst         = 16
)

// Options configures the gateway.
type Options struct {
	APIKey    string
	SecretKey string
	BaseURL   string
}

// Gateway implements core.IGateway against Binance futures. REST calls
// carry a per-call timeout and pass through a shared rate limiter;
// they are never retried here.
type Gateway struct {
	client  *futures.Client
	limiter *rate.Limiter
	logger  core.ILogger
}

func NewGateway(opts Options, logger core.ILogger) *Gateway {
	client := futures.NewClient(opts.APIKey, opts.SecretKey)
	if opts.BaseURL != "" {
		client.BaseURL = opts.BaseURL
	}
	return &Gateway{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(restRatePerSecond), restBurst),
		logger:  logger.WithField("component", "binance_gateway"),
	}
}

func (g *Gateway) Name() string { return "binance" }

// LoadMarkets performs the one-time metadata warm-up.
func (g *Gateway) LoadMarkets(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	info, err := failsafe.Get(func() (*futures.ExchangeInfo, error) {
		return g.client.NewExchangeInfoService().Do(ctx)
	}, timeout.With[*futures.ExchangeInfo](restTimeout))
	if err != nil {
		return fmt.Errorf("exchange info: %w", err)
	}
	g.logger.Info("Exchange metadata loaded", "symbols", len(info.Symbols))
	return nil
}

func (g *Gateway) CreateOrder(ctx context.Context, req core.CreateOrderRequest) (*core.Order, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	svc := g.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(toVenueSide(req.Side)).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Quantity(req.Amount.String()).
		Price(req.Price.String())
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	if req.PositionSide != "" {
		svc = svc.PositionSide(toVenuePositionSide(req.PositionSide))
	}

	res, err := failsafe.Get(func() (*futures.CreateOrderResponse, error) {
		return svc.Do(ctx)
	}, timeout.With[*futures.CreateOrderResponse](restTimeout))
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &core.Order{
		ID:            strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          fromVenueSide(res.Side),
		PositionSide:  fromVenuePositionSide(res.PositionSide),
		Price:         parseDecimal(res.Price),
		Amount:        parseDecimal(res.OrigQuantity),
		Filled:        parseDecimal(res.ExecutedQuantity),
		Status:        fromVenueStatus(res.Status),
		UpdateTime:    res.UpdateTime,
	}, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("cancel order: bad id %q: %w", orderID, err)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = failsafe.Get(func() (*futures.CancelOrderResponse, error) {
		return g.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	}, timeout.With[*futures.CancelOrderResponse](restTimeout))
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

func (g *Gateway) FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := failsafe.Get(func() ([]*futures.Order, error) {
		return g.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	}, timeout.With[[]*futures.Order](restTimeout))
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}

	out := make([]core.Order, 0, len(res))
	for _, o := range res {
		out = append(out, core.Order{
			ID:            strconv.FormatInt(o.OrderID, 10),
			ClientOrderID: o.ClientOrderID,
			Symbol:        o.Symbol,
			Side:          fromVenueSide(o.Side),
			PositionSide:  fromVenuePositionSide(o.PositionSide),
			Price:         parseDecimal(o.Price),
			Amount:        parseDecimal(o.OrigQuantity),
			Filled:        parseDecimal(o.ExecutedQuantity),
			Status:        fromVenueStatus(o.Status),
			UpdateTime:    o.UpdateTime,
		})
	}
	return out, nil
}

// WatchBidsAsks opens one raw websocket to the bookTicker channel.
// The stream reports errors to the caller instead of reconnecting;
// the price watcher owns the backoff policy.
func (g *Gateway) WatchBidsAsks(ctx context.Context, symbol string) (core.BookTickerStream, error) {
	return dialBookTicker(ctx, symbol)
}

// WatchOrders opens the user-data stream behind a listenKey with its
// own keepalive. Same contract as WatchBidsAsks: errors surface to the
// caller, the order watcher resubscribes.
func (g *Gateway) WatchOrders(ctx context.Context, symbol string) (core.OrderStream, error) {
	listenKey, err := g.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("start user stream: %w", err)
	}
	return openUserDataStream(g.client, listenKey, symbol, g.logger)
}

func (g *Gateway) Close() error {
	// Streams are closed by their owners; the REST client is
	// connectionless.
	return nil
}
