package model

import "time"

// MarketEventKind tags the payload of a MarketEvent.
type MarketEventKind uint8

const (
	EventUnknown MarketEventKind = iota
	EventTrades
	EventOrderbookUpdate
)

func (k MarketEventKind) String() string {
	switch k {
	case EventTrades:
		return "trades"
	case EventOrderbookUpdate:
		return "orderbook_update"
	default:
		return "unknown"
	}
}

// MarketEvent is the unit written to a market data engine's ring. It is a
// value copied into each slot; the orderbook payload is a point-in-time
// clone, never the engine's live book.
type MarketEvent struct {
	Kind      MarketEventKind
	Symbol    string
	Timestamp time.Time

	Trades    []Trade    // set when Kind == EventTrades
	Orderbook *Orderbook // set when Kind == EventOrderbookUpdate
}

// TradesEvent builds a trade-batch event.
func TradesEvent(symbol string, trades []Trade) MarketEvent {
	return MarketEvent{
		Kind:      EventTrades,
		Symbol:    symbol,
		Timestamp: time.Now(),
		Trades:    trades,
	}
}

// OrderbookEvent builds an orderbook-update event from a cloned book.
func OrderbookEvent(symbol string, book *Orderbook) MarketEvent {
	return MarketEvent{
		Kind:      EventOrderbookUpdate,
		Symbol:    symbol,
		Timestamp: time.Now(),
		Orderbook: book,
	}
}
