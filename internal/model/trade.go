package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the taker side of an executed trade.
type TradeSide uint8

const (
	SideUnknown TradeSide = iota
	SideBuy
	SideSell
)

func (s TradeSide) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Trade is one executed trade as reported by the exchange. Immutable.
type Trade struct {
	Price       decimal.Decimal
	Size        decimal.Decimal
	Side        TradeSide
	Liquidation bool

	// Time is the exchange timestamp, ReceivedAt the local receipt time.
	Time       time.Time
	ReceivedAt time.Time
}
