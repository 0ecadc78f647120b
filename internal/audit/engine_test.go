package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botnode/internal/model"
	"botnode/pkg/ring"
	"botnode/pkg/shutdown"
)

func TestReportCountsObservedEvents(t *testing.T) {
	statusRing := ring.New[model.ConnectionStatus](16)
	eventRing := ring.New[model.MarketEvent](16)

	e := New(Config{
		StatusRx: statusRing.Subscribe(),
		MarketRx: []*ring.Receiver[model.MarketEvent]{eventRing.Subscribe()},
		Interval: 30 * time.Millisecond,
	})
	rx := e.DataRx()
	sd := shutdown.New()

	go func() { _ = e.Start(sd) }()
	defer sd.Trigger()

	statusRing.Send(model.StatusConnecting)
	statusRing.Send(model.StatusOnline)
	eventRing.Send(model.TradesEvent("BTC-PERP", make([]model.Trade, 3)))
	eventRing.Send(model.OrderbookEvent("BTC-PERP", &model.Orderbook{}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var report Report
	for {
		var err error
		report, err = rx.Recv(ctx)
		require.NoError(t, err)
		if report.StatusChanges >= 2 && report.TradeBatches >= 1 && report.BookUpdates >= 1 {
			break
		}
	}

	assert.Equal(t, model.StatusOnline, report.Status)
	assert.EqualValues(t, 3, report.Trades)
	assert.False(t, report.Timestamp.IsZero())
}

func TestReportCountsRingGaps(t *testing.T) {
	eventRing := ring.New[model.MarketEvent](4)
	rx := eventRing.Subscribe()

	// Overrun the ring before the audit engine starts draining: the
	// receiver must observe a gap, not an error.
	for i := 0; i < 100; i++ {
		eventRing.Send(model.TradesEvent("BTC-PERP", nil))
	}

	e := New(Config{
		MarketRx: []*ring.Receiver[model.MarketEvent]{rx},
		Interval: 30 * time.Millisecond,
	})
	reports := e.DataRx()
	sd := shutdown.New()

	go func() { _ = e.Start(sd) }()
	defer sd.Trigger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		report, err := reports.Recv(ctx)
		require.NoError(t, err)
		if report.Gaps > 0 {
			assert.EqualValues(t, 96, report.Gaps)
			return
		}
	}
}

func TestEngineStopsOnShutdown(t *testing.T) {
	e := New(Config{Interval: time.Hour})
	sd := shutdown.New()

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(sd) }()

	sd.Trigger()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("audit engine did not stop")
	}
}
