package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/gorilla/websocket"

	"grid_trader/internal/core"
)

const (
	futuresWsBase = "wss://fstream.binance.com/ws"

	// Binance invalidates an unrefreshed listenKey after 60 minutes.
	listenKeyKeepAlive = 30 * time.Minute
)

// bookTickerStream reads best bid/ask from a raw websocket. The
// go-binance book-ticker helper reconnects internally, which would
// hide failures from the watcher's backoff loop, so we dial directly.
type bookTickerStream struct {
	conn   *websocket.Conn
	closed sync.Once
}

type bookTickerMessage struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

func dialBookTicker(ctx context.Context, symbol string) (*bookTickerStream, error) {
	url := fmt.Sprintf("%s/%s@bookTicker", futuresWsBase, strings.ToLower(symbol))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial book ticker: %w", err)
	}
	return &bookTickerStream{conn: conn}, nil
}

func (s *bookTickerStream) Recv(ctx context.Context) (core.BookTicker, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}
	for {
		if err := ctx.Err(); err != nil {
			return core.BookTicker{}, err
		}
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return core.BookTicker{}, fmt.Errorf("book ticker read: %w", err)
		}

		var msg bookTickerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		bid, ask := parseDecimal(msg.Bid), parseDecimal(msg.Ask)
		if !bid.IsPositive() || !ask.IsPositive() {
			continue
		}
		return core.BookTicker{Symbol: msg.Symbol, Bid: bid, Ask: ask}, nil
	}
}

func (s *bookTickerStream) Close() error {
	var err error
	s.closed.Do(func() { err = s.conn.Close() })
	return err
}

// userDataStream bridges the go-binance user-data callbacks into a
// Recv-style stream and keeps the listenKey alive while open.
type userDataStream struct {
	symbol string
	ch     chan core.Order
	errCh  chan error
	stopC  chan struct{}
	wsStop chan struct{}
	closed sync.Once
	logger core.ILogger
}

func openUserDataStream(client *futures.Client, listenKey, symbol string, logger core.ILogger) (*userDataStream, error) {
	s := &userDataStream{
		symbol: symbol,
		ch:     make(chan core.Order, 256),
		errCh:  make(chan error, 1),
		stopC:  make(chan struct{}),
		logger: logger,
	}

	doneC, wsStop, err := futures.WsUserDataServe(listenKey, s.handleEvent, s.handleError)
	if err != nil {
		return nil, fmt.Errorf("user data stream: %w", err)
	}
	s.wsStop = wsStop

	// Connection loss without a transport error still has to wake the
	// reader.
	go func() {
		select {
		case <-doneC:
			s.fail(fmt.Errorf("user data stream disconnected"))
		case <-s.stopC:
		}
	}()

	go s.keepAlive(client, listenKey)
	return s, nil
}

func (s *userDataStream) keepAlive(client *futures.Client, listenKey string) {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopC:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
			err := client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx)
			cancel()
			if err != nil {
				s.logger.Warn("listenKey keepalive failed", "error", err.Error())
				s.fail(fmt.Errorf("listen key keepalive: %w", err))
				return
			}
		}
	}
}

func (s *userDataStream) handleEvent(event *futures.WsUserDataEvent) {
	if event.Event != futures.UserDataEventTypeOrderTradeUpdate {
		return
	}
	u := event.OrderTradeUpdate
	if u.Symbol != s.symbol {
		return
	}

	o := core.Order{
		ID:            fmt.Sprintf("%d", u.ID),
		ClientOrderID: u.ClientOrderID,
		Symbol:        u.Symbol,
		Side:          fromVenueSide(u.Side),
		PositionSide:  fromVenuePositionSide(u.PositionSide),
		Price:         parseDecimal(u.OriginalPrice),
		Amount:        parseDecimal(u.OriginalQty),
		Filled:        parseDecimal(u.AccumulatedFilledQty),
		Status:        fromVenueStatus(u.Status),
		UpdateTime:    u.TradeTime,
	}

	select {
	case s.ch <- o:
	case <-s.stopC:
	default:
		// A full buffer means the consumer stalled; dropping silently
		// would lose fills, so surface it as a stream failure.
		s.fail(fmt.Errorf("user data stream buffer overflow"))
	}
}

func (s *userDataStream) handleError(err error) {
	s.fail(fmt.Errorf("user data stream: %w", err))
}

func (s *userDataStream) fail(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *userDataStream) Recv(ctx context.Context) (core.Order, error) {
	select {
	case <-ctx.Done():
		return core.Order{}, ctx.Err()
	case err := <-s.errCh:
		return core.Order{}, err
	case <-s.stopC:
		return core.Order{}, fmt.Errorf("user data stream closed")
	case o := <-s.ch:
		return o, nil
	}
}

func (s *userDataStream) Close() error {
	s.closed.Do(func() {
		close(s.stopC)
		select {
		case s.wsStop <- struct{}{}:
		default:
		}
	})
	return nil
}
