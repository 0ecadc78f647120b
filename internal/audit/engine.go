// Package audit implements the engine that observes the other engines'
// data rings. It exists on the consumer side of the lossy broadcast
// contract: it must tolerate gaps and interleaving, never assume
// delivery.
package audit

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"botnode/internal/model"
	"botnode/pkg/ring"
	"botnode/pkg/shutdown"
)

const (
	defaultInterval = 10 * time.Second
	defaultRingSize = 64
)

// Report is a periodic summary of observed node activity.
type Report struct {
	Timestamp     time.Time
	Status        model.ConnectionStatus
	StatusChanges uint64
	TradeBatches  uint64
	Trades        uint64
	BookUpdates   uint64

	// Gaps counts market events lost to ring overwrites, as seen from
	// this engine's read cursors.
	Gaps uint64
}

// Config holds audit engine settings. Zero fields take defaults.
type Config struct {
	StatusRx *ring.Receiver[model.ConnectionStatus]
	MarketRx []*ring.Receiver[model.MarketEvent]

	Interval time.Duration
	RingSize int
}

// Engine aggregates counters from its receivers and publishes a Report
// on a fixed interval.
type Engine struct {
	cfg Config
	out *ring.Ring[Report]
}

// New builds an audit engine, applying defaults to cfg.
func New(cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = defaultRingSize
	}
	return &Engine{
		cfg: cfg,
		out: ring.New[Report](cfg.RingSize),
	}
}

func (e *Engine) Name() string { return "audit" }

// DataRx returns a fresh reader over periodic reports.
func (e *Engine) DataRx() *ring.Receiver[Report] {
	return e.out.Subscribe()
}

// Start runs the engine until shutdown.
func (e *Engine) Start(sd *shutdown.Shutdown) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sd.Triggered()
		cancel()
	}()

	statuses := make(chan model.ConnectionStatus)
	if e.cfg.StatusRx != nil {
		go pump(ctx, e.cfg.StatusRx, statuses)
	}

	events := make(chan model.MarketEvent)
	for _, rx := range e.cfg.MarketRx {
		go pump(ctx, rx, events)
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	var report Report
	for {
		select {
		case s := <-statuses:
			report.Status = s
			report.StatusChanges++

		case ev := <-events:
			switch ev.Kind {
			case model.EventTrades:
				report.TradeBatches++
				report.Trades += uint64(len(ev.Trades))
			case model.EventOrderbookUpdate:
				report.BookUpdates++
			}

		case <-ticker.C:
			report.Timestamp = time.Now()
			report.Gaps = e.gaps()
			e.out.Send(report)
			logs.Infof("audit: status=%s trades=%d books=%d gaps=%d",
				report.Status, report.Trades, report.BookUpdates, report.Gaps)

		case <-sd.Triggered():
			return nil
		}
	}
}

func (e *Engine) gaps() uint64 {
	var total uint64
	for _, rx := range e.cfg.MarketRx {
		total += rx.Skipped()
	}
	return total
}

// pump forwards one receiver into a merged channel until ctx is done.
func pump[T any](ctx context.Context, rx *ring.Receiver[T], out chan<- T) {
	for {
		v, err := rx.Recv(ctx)
		if err != nil {
			return
		}
		select {
		case out <- v:
		case <-ctx.Done():
			return
		}
	}
}
