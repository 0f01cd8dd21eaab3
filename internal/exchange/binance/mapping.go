package binance

import (
	"strings"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"grid_trader/internal/core"
)

func toVenueSide(s core.Side) futures.SideType {
	if s == core.SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func fromVenueSide(s futures.SideType) core.Side {
	if s == futures.SideTypeSell {
		return core.SideSell
	}
	return core.SideBuy
}

func toVenuePositionSide(s core.PositionSide) futures.PositionSideType {
	switch s {
	case core.PositionSideLong:
		return futures.PositionSideTypeLong
	case core.PositionSideShort:
		return futures.PositionSideTypeShort
	default:
		return futures.PositionSideTypeBoth
	}
}

func fromVenuePositionSide(s futures.PositionSideType) core.PositionSide {
	switch s {
	case futures.PositionSideTypeLong:
		return core.PositionSideLong
	case futures.PositionSideTypeShort:
		return core.PositionSideShort
	default:
		// One-way mode reports BOTH; the engine treats it as untagged.
		return ""
	}
}

func fromVenueStatus(s futures.OrderStatusType) core.OrderStatus {
	switch s {
	case futures.OrderStatusTypeNew:
		return core.OrderStatusOpen
	case futures.OrderStatusTypePartiallyFilled:
		return core.OrderStatusPartiallyFilled
	case futures.OrderStatusTypeFilled:
		return core.OrderStatusFilled
	case futures.OrderStatusTypeCanceled:
		return core.OrderStatusCanceled
	case futures.OrderStatusTypeExpired:
		return core.OrderStatusExpired
	case futures.OrderStatusTypeRejected:
		return core.OrderStatusRejected
	default:
		// Pass unknown statuses through lowercased; they are never a
		// terminal-fill trigger.
		return core.OrderStatus(strings.ToLower(string(s)))
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
