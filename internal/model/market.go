package model

import "github.com/shopspring/decimal"

// MarketKind describes the instrument class of a market.
type MarketKind uint8

const (
	MarketUnknown MarketKind = iota
	MarketSpot
	MarketFutures
)

func (k MarketKind) String() string {
	switch k {
	case MarketSpot:
		return "spot"
	case MarketFutures:
		return "futures"
	default:
		return "unknown"
	}
}

// Market describes one tradable instrument. It is built once from exchange
// metadata and never mutated afterwards.
type Market struct {
	Name           string
	NativeSymbol   string
	SizeIncrement  decimal.Decimal
	PriceIncrement decimal.Decimal
	Kind           MarketKind

	// Base and Quote are set for spot markets only.
	Base  string
	Quote string
}
