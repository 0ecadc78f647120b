// Package marketdata defines the capability contract any exchange
// integration must satisfy, and the engine that drives one adapter.
package marketdata

import (
	"botnode/internal/model"
	"botnode/internal/obs"
)

// RestAdapter is the one-shot discovery and snapshot capability of an
// exchange integration.
type RestAdapter interface {
	// FetchMarkets enumerates tradable markets with their metadata.
	FetchMarkets() ([]model.Market, error)

	// FetchOrderbookSnapshot returns a point-in-time book for warm-up
	// or resync.
	FetchOrderbookSnapshot(symbol string) (*model.Orderbook, error)
}

// StreamAdapter is the streaming capability of an exchange integration.
type StreamAdapter interface {
	// WsURL is the streaming endpoint.
	WsURL() string

	// SubscribeMessages builds the outbound subscription frames for the
	// given native symbols. Exchanges may need one frame per stream
	// type per market.
	SubscribeMessages(symbols []string) [][]byte

	// ProcessMessage decodes one inbound frame and merges it into the
	// per-symbol book table, returning zero or one normalized event to
	// publish. It runs inline on the engine's receive path and must be
	// a pure function of (frame, table): no blocking, no I/O.
	ProcessMessage(raw []byte, books map[string]*model.Orderbook) (*model.MarketEvent, error)

	// Metrics exposes the adapter's throughput counters.
	Metrics() *obs.Throughput
}

// Adapter is a full exchange integration. Both capabilities are required.
type Adapter interface {
	Name() string
	RestAdapter
	StreamAdapter
}
