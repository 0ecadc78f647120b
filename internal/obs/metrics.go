// Package obs collects lightweight in-process counters. There is no
// metrics backend here; the audit engine and the engine logs read
// snapshots of these counters.
package obs

import "sync/atomic"

// Throughput counts streaming activity for one market data engine.
type Throughput struct {
	messages      atomic.Uint64
	events        atomic.Uint64
	droppedTrades atomic.Uint64
}

// Snapshot is a point-in-time view of a Throughput.
type Snapshot struct {
	Messages      uint64
	Events        uint64
	DroppedTrades uint64
}

// NewThroughput allocates a counter set.
func NewThroughput() *Throughput {
	return &Throughput{}
}

// MarkMessage records one inbound frame.
func (t *Throughput) MarkMessage() {
	if t == nil {
		return
	}
	t.messages.Add(1)
}

// MarkEvent records one published market event.
func (t *Throughput) MarkEvent() {
	if t == nil {
		return
	}
	t.events.Add(1)
}

// MarkDroppedTrade records one trade record dropped during decode.
func (t *Throughput) MarkDroppedTrade() {
	if t == nil {
		return
	}
	t.droppedTrades.Add(1)
}

// Snapshot captures the current counter values.
func (t *Throughput) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	return Snapshot{
		Messages:      t.messages.Load(),
		Events:        t.events.Load(),
		DroppedTrades: t.droppedTrades.Load(),
	}
}
