package shutdown

import (
	"context"
	"sync"

	"botnode/pkg/exception"
)

// Shutdown is the process-wide cooperative cancellation signal. It is
// created once at startup and the same handle is passed into every engine;
// copies share state.
//
// Trigger marks shutdown as requested. Completion additionally waits for
// every outstanding delay token to be released, so an in-flight exchange
// with a server can finish before sockets are torn down. Tokens extend the
// drain, they never block the trigger itself.
type Shutdown struct {
	inner *state
}

type state struct {
	mu        sync.Mutex
	triggered chan struct{}
	complete  chan struct{}
	tokens    int
	fired     bool
	done      bool
}

// New creates a shutdown controller in the not-triggered state.
func New() *Shutdown {
	return &Shutdown{inner: &state{
		triggered: make(chan struct{}),
		complete:  make(chan struct{}),
	}}
}

// Trigger marks shutdown as requested and wakes every waiter. Idempotent.
func (s *Shutdown) Trigger() {
	st := s.inner
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.fired {
		return
	}
	st.fired = true
	close(st.triggered)
	st.completeLocked()
}

// Triggered returns a channel closed once Trigger has been called.
func (s *Shutdown) Triggered() <-chan struct{} {
	return s.inner.triggered
}

// WaitTriggered blocks until shutdown is requested or ctx is done.
func (s *Shutdown) WaitTriggered(ctx context.Context) error {
	select {
	case <-s.inner.triggered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DelayToken returns a token that delays shutdown completion until
// released. It fails once the drain has already completed.
func (s *Shutdown) DelayToken() (*Token, error) {
	st := s.inner
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done {
		return nil, exception.ErrShutdownInProgress
	}
	st.tokens++
	return &Token{st: st}, nil
}

// WaitComplete blocks until shutdown has been triggered and every
// outstanding token has been released. The caller imposes any timeout
// through ctx.
func (s *Shutdown) WaitComplete(ctx context.Context) error {
	select {
	case <-s.inner.complete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// completeLocked closes the completion channel when triggered and drained.
func (st *state) completeLocked() {
	if st.fired && st.tokens == 0 && !st.done {
		st.done = true
		close(st.complete)
	}
}

// Token delays shutdown completion while outstanding.
type Token struct {
	st   *state
	once sync.Once
}

// Release drops the token. Safe to call more than once and from defer on
// every exit path.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.st.mu.Lock()
		t.st.tokens--
		t.st.completeLocked()
		t.st.mu.Unlock()
	})
}
