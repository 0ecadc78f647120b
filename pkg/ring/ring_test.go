package ring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecvInOrder(t *testing.T) {
	r := New[int](8)
	rx := r.Subscribe()

	for i := 0; i < 5; i++ {
		r.Send(i)
	}

	for i := 0; i < 5; i++ {
		v, err := rx.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.EqualValues(t, 0, rx.Skipped())
}

func TestOverwriteKeepsLastN(t *testing.T) {
	const capacity = 4
	const total = 100

	r := New[int](capacity)
	rx := r.Subscribe()

	for i := 0; i < total; i++ {
		r.Send(i)
	}

	// The reader never drained, so it must observe exactly the last
	// capacity items, in order, with no duplicates.
	for i := total - capacity; i < total; i++ {
		v, err := rx.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.EqualValues(t, total-capacity, rx.Skipped())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := rx.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLateSubscriberStartsAtOldestBuffered(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 10; i++ {
		r.Send(i)
	}

	rx := r.Subscribe()
	v, err := rx.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	assert.EqualValues(t, 0, rx.Skipped())
}

func TestIndependentReceivers(t *testing.T) {
	r := New[string](8)
	a := r.Subscribe()
	b := r.Subscribe()

	r.Send("x")
	r.Send("y")

	va, err := a.Recv(context.Background())
	require.NoError(t, err)
	vb, err := b.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", va)
	assert.Equal(t, "x", vb)
}

func TestRecvBlocksUntilSend(t *testing.T) {
	r := New[int](2)
	rx := r.Subscribe()

	got := make(chan int, 1)
	go func() {
		v, err := rx.Recv(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("recv returned before send")
	case <-time.After(20 * time.Millisecond):
	}

	r.Send(42)

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("recv did not wake up after send")
	}
}

func TestRecvCanceled(t *testing.T) {
	r := New[int](2)
	rx := r.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rx.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
