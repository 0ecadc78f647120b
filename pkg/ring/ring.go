package ring

import (
	"context"
	"sync"
)

// Ring is a bounded, lossy broadcast channel. A single writer publishes
// with Send, which never blocks: when the buffer is full the oldest slot
// is overwritten. Every Receiver keeps its own cursor, so a slow consumer
// skips overwritten items instead of applying backpressure to the writer.
//
// Market data is perishable; losing a contiguous prefix of unread items is
// preferable to stalling the producer.
type Ring[T any] struct {
	mu     sync.Mutex
	slots  []T
	seq    uint64 // next sequence to write; slots hold [seq-cap, seq)
	notify chan struct{}
}

// New allocates a ring with the given slot capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		slots:  make([]T, capacity),
		notify: make(chan struct{}),
	}
}

// Send publishes v, overwriting the oldest slot when the ring is full.
// It never blocks and never fails.
func (r *Ring[T]) Send(v T) {
	r.mu.Lock()
	r.slots[r.seq%uint64(len(r.slots))] = v
	r.seq++
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
}

// Subscribe creates an independent receiver. A receiver created after
// items were published starts at the oldest item still buffered.
func (r *Ring[T]) Subscribe() *Receiver[T] {
	r.mu.Lock()
	cursor := r.oldestLocked()
	r.mu.Unlock()
	return &Receiver[T]{ring: r, cursor: cursor}
}

func (r *Ring[T]) oldestLocked() uint64 {
	n := uint64(len(r.slots))
	if r.seq > n {
		return r.seq - n
	}
	return 0
}

// Receiver is a single-consumer read cursor over a Ring.
type Receiver[T any] struct {
	ring    *Ring[T]
	cursor  uint64
	skipped uint64
}

// Recv returns the oldest item still buffered for this receiver, blocking
// until one exists or ctx is done. Items overwritten before they were read
// are skipped; receivers observe a gap, never a reorder or a duplicate.
func (rx *Receiver[T]) Recv(ctx context.Context) (T, error) {
	r := rx.ring
	for {
		r.mu.Lock()
		if rx.cursor < r.seq {
			if oldest := r.oldestLocked(); rx.cursor < oldest {
				rx.skipped += oldest - rx.cursor
				rx.cursor = oldest
			}
			v := r.slots[rx.cursor%uint64(len(r.slots))]
			rx.cursor++
			r.mu.Unlock()
			return v, nil
		}
		ready := r.notify
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-ready:
		}
	}
}

// Skipped reports how many items this receiver lost to overwrites.
func (rx *Receiver[T]) Skipped() uint64 {
	rx.ring.mu.Lock()
	defer rx.ring.mu.Unlock()
	return rx.skipped
}
