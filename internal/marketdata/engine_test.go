package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"botnode/internal/model"
	"botnode/internal/obs"
	"botnode/pkg/exception"
	"botnode/pkg/shutdown"
)

// fakeAdapter decodes frames of the form {"symbol":"X","seq":1}; a frame
// with "bad":true fails decode.
type fakeAdapter struct {
	wsURL      string
	markets    []model.Market
	snapshot   *model.Orderbook
	throughput *obs.Throughput
}

func newFakeAdapter(wsURL string, symbols ...string) *fakeAdapter {
	markets := make([]model.Market, 0, len(symbols))
	for _, s := range symbols {
		markets = append(markets, model.Market{
			Name:         s,
			NativeSymbol: s,
			Kind:         model.MarketFutures,
		})
	}
	return &fakeAdapter{
		wsURL:      wsURL,
		markets:    markets,
		throughput: obs.NewThroughput(),
	}
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) FetchMarkets() ([]model.Market, error) {
	return a.markets, nil
}

func (a *fakeAdapter) FetchOrderbookSnapshot(symbol string) (*model.Orderbook, error) {
	if a.snapshot == nil {
		return nil, errors.New("snapshot unavailable")
	}
	return a.snapshot.Clone(), nil
}

func (a *fakeAdapter) WsURL() string { return a.wsURL }

func (a *fakeAdapter) SubscribeMessages(symbols []string) [][]byte {
	return [][]byte{[]byte(`{"op":"subscribe"}`)}
}

func (a *fakeAdapter) Metrics() *obs.Throughput { return a.throughput }

type fakeFrame struct {
	Symbol string `json:"symbol"`
	Seq    int    `json:"seq"`
	Bad    bool   `json:"bad"`
}

func (a *fakeAdapter) ProcessMessage(raw []byte, books map[string]*model.Orderbook) (*model.MarketEvent, error) {
	var f fakeFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if f.Bad {
		return nil, errors.New("malformed frame")
	}
	ev := model.TradesEvent(f.Symbol, nil)
	return &ev, nil
}

// wsServer upgrades every request and hands the script function one
// connection at a time.
func wsServer(t *testing.T, script func(conn *websocket.Conn, attempt int)) (url string, attempts *atomic.Int32, close func()) {
	t.Helper()
	var upgrader websocket.Upgrader
	var count atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		script(conn, int(count.Add(1)))
	}))
	return "ws" + strings.TrimPrefix(srv.URL, "http"), &count, srv.Close
}

func TestStreamPublishesEvents(t *testing.T) {
	url, _, stop := wsServer(t, func(conn *websocket.Conn, attempt int) {
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"BTC-PERP","seq":1}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"BTC-PERP","seq":2}`))
		time.Sleep(time.Second)
	})
	defer stop()

	adapter := newFakeAdapter(url, "BTC-PERP")
	e := New(Config{Adapter: adapter, RetryDelay: 20 * time.Millisecond})
	rx := e.DataRx()
	sd := shutdown.New()

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(sd) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		ev, err := rx.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.EventTrades, ev.Kind)
		assert.Equal(t, "BTC-PERP", ev.Symbol)
	}

	snap := adapter.Metrics().Snapshot()
	assert.GreaterOrEqual(t, snap.Messages, uint64(2))
	assert.GreaterOrEqual(t, snap.Events, uint64(2))

	sd.Trigger()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestBadFrameDropsConnectionAndRetries(t *testing.T) {
	url, attempts, stop := wsServer(t, func(conn *websocket.Conn, attempt int) {
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if attempt == 1 {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"bad":true}`))
			return
		}
		time.Sleep(time.Second)
	})
	defer stop()

	adapter := newFakeAdapter(url, "BTC-PERP")
	e := New(Config{Adapter: adapter, RetryDelay: 20 * time.Millisecond})
	sd := shutdown.New()

	go func() { _ = e.Start(sd) }()
	defer sd.Trigger()

	assert.Eventually(t, func() bool {
		return attempts.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSelectSymbolsHonorsConfiguredList(t *testing.T) {
	adapter := newFakeAdapter("", "BTC-PERP", "ETH-PERP")
	e := New(Config{Adapter: adapter, Symbols: []string{"ETH-PERP", "SOL-PERP"}})

	symbols, err := e.selectSymbols(adapter.markets)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH-PERP"}, symbols)
}

func TestSelectSymbolsDefaultsToAll(t *testing.T) {
	adapter := newFakeAdapter("", "BTC-PERP", "ETH-PERP")
	e := New(Config{Adapter: adapter})

	symbols, err := e.selectSymbols(adapter.markets)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-PERP", "ETH-PERP"}, symbols)
}

func TestSelectSymbolsEmpty(t *testing.T) {
	adapter := newFakeAdapter("")
	e := New(Config{Adapter: adapter})

	_, err := e.selectSymbols(nil)
	assert.ErrorIs(t, err, exception.ErrNoMarketsConfigured)

	e = New(Config{Adapter: adapter, Symbols: []string{"UNLISTED"}})
	_, err = e.selectSymbols(nil)
	assert.ErrorIs(t, err, exception.ErrNoMarketsConfigured)
}

func TestWarmUpSeedsBooksBestEffort(t *testing.T) {
	adapter := newFakeAdapter("", "BTC-PERP")
	adapter.snapshot = model.NewOrderbook(
		[]model.PriceLevel{{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)}},
		nil,
		time.Now(),
	)
	e := New(Config{Adapter: adapter})

	e.warmUp([]string{"BTC-PERP"})
	require.Contains(t, e.books, "BTC-PERP")

	// A failing snapshot leaves the table as-is instead of failing the
	// iteration.
	adapter.snapshot = nil
	e.warmUp([]string{"ETH-PERP"})
	assert.NotContains(t, e.books, "ETH-PERP")
}
