package core

import (
	"github.com/shopspring/decimal"
)

// Side is the order side as the venue sees it.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide selects the hedge-mode position an order acts on.
// Empty means the venue is not in hedge mode.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// OrderStatus is the normalized order lifecycle status.
type OrderStatus string

const (
	OrderStatusOpen            OrderStatus = "open"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusClosed          OrderStatus = "closed"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Order is an order as observed from the gateway. The engine holds no
// persistent order store; open-order state is re-derived from the venue.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          Side
	PositionSide  PositionSide
	Price         decimal.Decimal
	Amount        decimal.Decimal
	Filled        decimal.Decimal
	Status        OrderStatus
	UpdateTime    int64
}

// IsTerminalFill reports whether this update is the sole counter-posting
// trigger: a filled/closed order with filled == amount > 0.
func (o *Order) IsTerminalFill() bool {
	if o.Status != OrderStatusFilled && o.Status != OrderStatusClosed {
		return false
	}
	return o.Amount.IsPositive() && o.Filled.Equal(o.Amount)
}

// BookTicker is a best bid/ask update.
type BookTicker struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
}

// Mid returns the mid-price (bid + ask) / 2.
func (t BookTicker) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

// CreateOrderRequest describes a limit order to be placed.
type CreateOrderRequest struct {
	Symbol        string
	Side          Side
	PositionSide  PositionSide
	Amount        decimal.Decimal
	Price         decimal.Decimal
	ClientOrderID string
}
