package marketdata

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"botnode/internal/model"
	"botnode/internal/obs"
	"botnode/pkg/exception"
	"botnode/pkg/ring"
	"botnode/pkg/shutdown"
)

const (
	defaultRetryDelay   = time.Second
	defaultPingInterval = 15 * time.Second
	defaultDialTimeout  = 10 * time.Second
	defaultRingSize     = 1024
)

// Config holds market data engine settings. Zero fields take defaults.
type Config struct {
	Adapter Adapter

	// Symbols restricts the subscription to these native symbols; empty
	// subscribes to every enabled market the exchange reports.
	Symbols []string

	RetryDelay   time.Duration
	PingInterval time.Duration
	DialTimeout  time.Duration
	RingSize     int
}

// Engine drives one exchange adapter: REST discovery and warm-up, then a
// streaming loop that feeds every inbound frame through the adapter and
// publishes the normalized events to its ring. The per-symbol book table
// is owned by this engine's single goroutine; no lock guards it.
type Engine struct {
	cfg     Config
	books   map[string]*model.Orderbook
	out     *ring.Ring[model.MarketEvent]
	metrics *obs.Throughput
}

// New builds a market data engine, applying defaults to cfg.
func New(cfg Config) *Engine {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = defaultRingSize
	}
	return &Engine{
		cfg:     cfg,
		books:   make(map[string]*model.Orderbook),
		out:     ring.New[model.MarketEvent](cfg.RingSize),
		metrics: cfg.Adapter.Metrics(),
	}
}

func (e *Engine) Name() string {
	return "market-data-" + e.cfg.Adapter.Name()
}

// DataRx returns a fresh reader over normalized market events.
func (e *Engine) DataRx() *ring.Receiver[model.MarketEvent] {
	return e.out.Subscribe()
}

// Metrics exposes the engine's throughput counters.
func (e *Engine) Metrics() *obs.Throughput {
	return e.metrics
}

// Start runs the engine until shutdown, retrying the stream loop after a
// fixed delay on any error.
func (e *Engine) Start(sd *shutdown.Shutdown) error {
	logs.Infof("%s engine starting", e.Name())

	for {
		err := e.streamLoop(sd)
		if err == nil {
			return nil
		}

		snap := e.metrics.Snapshot()
		logs.Errorf("%s engine error after %d msgs: %v", e.Name(), snap.Messages, err)

		select {
		case <-sd.Triggered():
			return nil
		case <-time.After(e.cfg.RetryDelay):
		}
	}
}

// selectSymbols picks the native symbols to subscribe from discovered
// markets, honoring the configured restriction.
func (e *Engine) selectSymbols(markets []model.Market) ([]string, error) {
	if len(e.cfg.Symbols) > 0 {
		known := make(map[string]bool, len(markets))
		for _, m := range markets {
			known[m.NativeSymbol] = true
		}
		symbols := make([]string, 0, len(e.cfg.Symbols))
		for _, s := range e.cfg.Symbols {
			if !known[s] {
				logs.Warnf("%s: configured market %s not listed by exchange", e.Name(), s)
				continue
			}
			symbols = append(symbols, s)
		}
		if len(symbols) == 0 {
			return nil, exception.ErrNoMarketsConfigured
		}
		return symbols, nil
	}

	symbols := make([]string, 0, len(markets))
	for _, m := range markets {
		symbols = append(symbols, m.NativeSymbol)
	}
	if len(symbols) == 0 {
		return nil, exception.ErrNoMarketsConfigured
	}
	return symbols, nil
}

// warmUp seeds the book table from REST snapshots. Best effort: the
// stream's own snapshot replaces the table entry anyway.
func (e *Engine) warmUp(symbols []string) {
	for _, s := range symbols {
		book, err := e.cfg.Adapter.FetchOrderbookSnapshot(s)
		if err != nil {
			logs.Warnf("%s: warm-up snapshot for %s: %v", e.Name(), s, err)
			continue
		}
		e.books[s] = book
	}
}

type frame struct {
	data []byte
	err  error
}

// streamLoop runs one connection attempt end to end: discovery,
// subscription, then the inbound multiplexer. A delay token is held so
// shutdown waits for the current iteration.
func (e *Engine) streamLoop(sd *shutdown.Shutdown) error {
	token, err := sd.DelayToken()
	if err != nil {
		return err
	}
	defer token.Release()

	markets, err := e.cfg.Adapter.FetchMarkets()
	if err != nil {
		return errors.Wrap(err, "fetch markets")
	}
	logs.Infof("%s: discovered %d markets", e.Name(), len(markets))

	symbols, err := e.selectSymbols(markets)
	if err != nil {
		return err
	}
	e.warmUp(symbols)

	dialer := websocket.Dialer{HandshakeTimeout: e.cfg.DialTimeout}
	conn, _, err := dialer.Dial(e.cfg.Adapter.WsURL(), nil)
	if err != nil {
		return errors.Wrap(err, "dial exchange stream")
	}
	defer conn.Close()

	for _, msg := range e.cfg.Adapter.SubscribeMessages(symbols) {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return errors.Wrap(err, "send subscription")
		}
	}

	done := make(chan struct{})
	defer close(done)

	frames := make(chan frame)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			select {
			case frames <- frame{data: data, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(e.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case in := <-frames:
			if in.err != nil {
				return errors.Wrap(in.err, "exchange stream")
			}
			e.metrics.MarkMessage()

			ev, err := e.cfg.Adapter.ProcessMessage(in.data, e.books)
			if err != nil {
				// A malformed data frame poisons the stream state;
				// drop the connection and resync from scratch.
				return errors.Wrap(err, "process stream message")
			}
			if ev != nil {
				e.out.Send(*ev)
				e.metrics.MarkEvent()
			}

		case <-ticker.C:
			deadline := time.Now().Add(e.cfg.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return errors.Wrap(err, "send ws ping")
			}

		case <-sd.Triggered():
			return nil
		}
	}
}
