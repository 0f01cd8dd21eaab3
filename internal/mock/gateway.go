// Package mock provides an in-memory gateway for tests and dry runs.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"grid_trader/internal/core"
)

var ErrStreamClosed = errors.New("mock: stream closed")

// Gateway is an in-memory venue. Orders rest until canceled or filled
// through the test helpers; streams deliver what the test pushes.
type Gateway struct {
	mu   sync.Mutex
	seq  int64
	open map[string]core.Order

	created  []core.Order
	canceled []string

	loadErr   error
	createErr error
	cancelErr error
	fetchErr  error
	watchErr  error

	loadCalls int

	tickerStream *tickerStream
	orderStream  *orderStream
}

func NewGateway() *Gateway {
	return &Gateway{open: make(map[string]core.Order)}
}

func (g *Gateway) Name() string { return "mock" }

func (g *Gateway) LoadMarkets(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loadCalls++
	return g.loadErr
}

func (g *Gateway) WatchBidsAsks(ctx context.Context, symbol string) (core.BookTickerStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.watchErr != nil {
		err := g.watchErr
		g.watchErr = nil
		return nil, err
	}
	g.tickerStream = newTickerStream()
	return g.tickerStream, nil
}

func (g *Gateway) WatchOrders(ctx context.Context, symbol string) (core.OrderStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.watchErr != nil {
		err := g.watchErr
		g.watchErr = nil
		return nil, err
	}
	g.orderStream = newOrderStream()
	return g.orderStream, nil
}

func (g *Gateway) CreateOrder(ctx context.Context, req core.CreateOrderRequest) (*core.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	o := core.Order{
		ID:            fmt.Sprintf("%d", g.seq),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		PositionSide:  req.PositionSide,
		Price:         req.Price,
		Amount:        req.Amount,
		Filled:        decimal.Zero,
		Status:        core.OrderStatusOpen,
	}
	g.open[o.ID] = o
	g.created = append(g.created, o)
	return &o, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	if _, ok := g.open[orderID]; !ok {
		return fmt.Errorf("mock: unknown order %s", orderID)
	}
	delete(g.open, orderID)
	g.canceled = append(g.canceled, orderID)
	return nil
}

func (g *Gateway) FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make([]core.Order, 0, len(g.open))
	for _, o := range g.open {
		out = append(out, o)
	}
	return out, nil
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tickerStream != nil {
		g.tickerStream.Close()
	}
	if g.orderStream != nil {
		g.orderStream.Close()
	}
	return nil
}

// Test helpers

// Resting injects an already-open order directly into the book.
func (g *Gateway) Resting(o core.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o.ID == "" {
		g.seq++
		o.ID = fmt.Sprintf("%d", g.seq)
	}
	if o.Status == "" {
		o.Status = core.OrderStatusOpen
	}
	g.open[o.ID] = o
}

// Fill marks an open order fully filled, removes it from the book, and
// delivers the terminal update on the order stream if one is open.
func (g *Gateway) Fill(orderID string) (core.Order, bool) {
	g.mu.Lock()
	o, ok := g.open[orderID]
	if ok {
		delete(g.open, orderID)
		o.Status = core.OrderStatusFilled
		o.Filled = o.Amount
	}
	stream := g.orderStream
	g.mu.Unlock()

	if ok && stream != nil {
		stream.Push(o)
	}
	return o, ok
}

func (g *Gateway) PushTicker(t core.BookTicker) {
	g.mu.Lock()
	stream := g.tickerStream
	g.mu.Unlock()
	if stream != nil {
		stream.Push(t)
	}
}

func (g *Gateway) PushOrderUpdate(o core.Order) {
	g.mu.Lock()
	stream := g.orderStream
	g.mu.Unlock()
	if stream != nil {
		stream.Push(o)
	}
}

// FailTickerStream makes the current ticker stream return err on the
// next Recv.
func (g *Gateway) FailTickerStream(err error) {
	g.mu.Lock()
	stream := g.tickerStream
	g.mu.Unlock()
	if stream != nil {
		stream.Fail(err)
	}
}

func (g *Gateway) FailOrderStream(err error) {
	g.mu.Lock()
	stream := g.orderStream
	g.mu.Unlock()
	if stream != nil {
		stream.Fail(err)
	}
}

// SetWatchError makes the next Watch call fail once.
func (g *Gateway) SetWatchError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watchErr = err
}

func (g *Gateway) SetCreateError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = err
}

func (g *Gateway) SetCancelError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelErr = err
}

func (g *Gateway) SetFetchError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchErr = err
}

func (g *Gateway) OpenOrders() []core.Order {
	out, _ := g.FetchOpenOrders(context.Background(), "")
	return out
}

func (g *Gateway) CreatedOrders() []core.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]core.Order, len(g.created))
	copy(out, g.created)
	return out
}

func (g *Gateway) CanceledIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.canceled))
	copy(out, g.canceled)
	return out
}

// HasTickerStream reports whether a ticker subscription is open, for
// test synchronization.
func (g *Gateway) HasTickerStream() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tickerStream != nil
}

func (g *Gateway) HasOrderStream() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orderStream != nil
}

func (g *Gateway) LoadMarketsCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loadCalls
}

// SetLoadMarketsError makes LoadMarkets fail until cleared.
func (g *Gateway) SetLoadMarketsError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loadErr = err
}

// Streams

type tickerStream struct {
	ch     chan core.BookTicker
	errCh  chan error
	done   chan struct{}
	closed sync.Once
}

func newTickerStream() *tickerStream {
	return &tickerStream{
		ch:    make(chan core.BookTicker, 64),
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}
}

func (s *tickerStream) Push(t core.BookTicker) {
	select {
	case s.ch <- t:
	case <-s.done:
	}
}

func (s *tickerStream) Fail(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *tickerStream) Recv(ctx context.Context) (core.BookTicker, error) {
	select {
	case <-ctx.Done():
		return core.BookTicker{}, ctx.Err()
	case err := <-s.errCh:
		return core.BookTicker{}, err
	case <-s.done:
		return core.BookTicker{}, ErrStreamClosed
	case t := <-s.ch:
		return t, nil
	}
}

func (s *tickerStream) Close() error {
	s.closed.Do(func() { close(s.done) })
	return nil
}

type orderStream struct {
	ch     chan core.Order
	errCh  chan error
	done   chan struct{}
	closed sync.Once
}

func newOrderStream() *orderStream {
	return &orderStream{
		ch:    make(chan core.Order, 64),
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}
}

func (s *orderStream) Push(o core.Order) {
	select {
	case s.ch <- o:
	case <-s.done:
	}
}

func (s *orderStream) Fail(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *orderStream) Recv(ctx context.Context) (core.Order, error) {
	select {
	case <-ctx.Done():
		return core.Order{}, ctx.Err()
	case err := <-s.errCh:
		return core.Order{}, err
	case <-s.done:
		return core.Order{}, ErrStreamClosed
	case o := <-s.ch:
		return o, nil
	}
}

func (s *orderStream) Close() error {
	s.closed.Do(func() { close(s.done) })
	return nil
}
