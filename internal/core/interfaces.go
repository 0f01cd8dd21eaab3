// Package core defines the shared types and interfaces for the grid trader.
package core

import (
	"context"
)

// BookTickerStream is a lazy, restartable subscription to best bid/ask
// updates. Recv blocks until the next update, a stream error, or ctx
// cancellation. After an error the stream is dead; callers close it and
// re-subscribe.
type BookTickerStream interface {
	Recv(ctx context.Context) (BookTicker, error)
	Close() error
}

// OrderStream is a lazy, restartable subscription to order updates.
// Delivery is at least once; redelivered terminal updates are possible.
type OrderStream interface {
	Recv(ctx context.Context) (Order, error)
	Close() error
}

// IGateway is the exchange adapter surface the engine depends on.
// Create/cancel/fetch are single-shot: the engine does not retry them,
// the next rebalance pass corrects any drift.
type IGateway interface {
	Name() string
	LoadMarkets(ctx context.Context) error
	WatchBidsAsks(ctx context.Context, symbol string) (BookTickerStream, error)
	WatchOrders(ctx context.Context, symbol string) (OrderStream, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	Close() error
}

// IMetricsSink is a keyed upsert into an external store.
type IMetricsSink interface {
	Upsert(ctx context.Context, record MetricsRecord) error
}

// MetricsRecord is one published grid snapshot, keyed by
// (venue, account, symbol).
type MetricsRecord struct {
	Venue           string
	Account         string
	Symbol          string
	Timestamp       int64
	MatchProfit     string
	NumberOfMatches int64
	NetPosition     int64
	TotalVolume     string
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
