// Package ftx implements the market data adapter for the FTX exchange.
package ftx

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"botnode/internal/model"
	"botnode/internal/obs"
	"botnode/pkg/exception"
)

const (
	restBaseURL = "https://ftx.com"
	wsEndpoint  = "wss://ftx.com/ws"

	requestTimeout = 5 * time.Second
	snapshotDepth  = "100"
)

// Ftx is a full market data adapter: REST discovery/snapshot plus
// websocket stream decoding.
type Ftx struct {
	client     *fasthttp.Client
	restBase   string
	wsURL      string
	throughput *obs.Throughput
}

// New builds an adapter against the production endpoints.
func New() *Ftx {
	return &Ftx{
		client:     &fasthttp.Client{},
		restBase:   restBaseURL,
		wsURL:      wsEndpoint,
		throughput: obs.NewThroughput(),
	}
}

func (f *Ftx) Name() string { return "ftx" }

// WsURL returns the streaming endpoint.
func (f *Ftx) WsURL() string { return f.wsURL }

// Metrics exposes the adapter's throughput counters.
func (f *Ftx) Metrics() *obs.Throughput { return f.throughput }

// --- REST capability ---

type restResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

type marketInfo struct {
	Name           string          `json:"name"`
	BaseCurrency   string          `json:"baseCurrency"`
	QuoteCurrency  string          `json:"quoteCurrency"`
	Type           string          `json:"type"`
	Underlying     string          `json:"underlying"`
	Enabled        bool            `json:"enabled"`
	PriceIncrement decimal.Decimal `json:"priceIncrement"`
	SizeIncrement  decimal.Decimal `json:"sizeIncrement"`
}

// marketFrom translates one exchange metadata record into a Market.
func marketFrom(m marketInfo) (model.Market, error) {
	market := model.Market{
		Name:           m.Name,
		NativeSymbol:   m.Name,
		SizeIncrement:  m.SizeIncrement,
		PriceIncrement: m.PriceIncrement,
	}

	switch m.Type {
	case "spot":
		if m.BaseCurrency == "" {
			return model.Market{}, exception.ErrMarketMissingBase
		}
		if m.QuoteCurrency == "" {
			return model.Market{}, exception.ErrMarketMissingQuote
		}
		market.Kind = model.MarketSpot
		market.Base = m.BaseCurrency
		market.Quote = m.QuoteCurrency
	case "future":
		market.Kind = model.MarketFutures
	default:
		return model.Market{}, exception.UnknownVariantError{Variant: m.Type}
	}

	return market, nil
}

func (f *Ftx) getJSON(path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(f.restBase + path)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := f.client.DoTimeout(req, resp, requestTimeout); err != nil {
		return nil, errors.Wrap(err, "get "+path)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, errors.Errorf("get %s: status %d", path, resp.StatusCode())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func (f *Ftx) result(path string) (json.RawMessage, error) {
	body, err := f.getJSON(path)
	if err != nil {
		return nil, err
	}

	var root restResponse
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, errors.Wrap(err, "decode "+path)
	}
	if !root.Success {
		return nil, exception.ErrUnexpectedRestPayload
	}
	return root.Result, nil
}

// FetchMarkets enumerates tradable markets. Disabled markets and records
// that fail translation are dropped.
func (f *Ftx) FetchMarkets() ([]model.Market, error) {
	result, err := f.result("/api/markets")
	if err != nil {
		return nil, err
	}

	var infos []marketInfo
	if err := json.Unmarshal(result, &infos); err != nil {
		return nil, errors.Wrap(err, "decode market list")
	}

	markets := make([]model.Market, 0, len(infos))
	for _, info := range infos {
		if !info.Enabled {
			continue
		}
		market, err := marketFrom(info)
		if err != nil {
			logs.Warnf("ftx: skipping market %s: %v", info.Name, err)
			continue
		}
		markets = append(markets, market)
	}
	return markets, nil
}

type orderbookSnapshot struct {
	Bids []pricePair `json:"bids"`
	Asks []pricePair `json:"asks"`
}

// FetchOrderbookSnapshot returns a point-in-time book for one market.
func (f *Ftx) FetchOrderbookSnapshot(symbol string) (*model.Orderbook, error) {
	result, err := f.result("/api/markets/" + symbol + "/orderbook?depth=" + snapshotDepth)
	if err != nil {
		return nil, err
	}

	var snap orderbookSnapshot
	if err := json.Unmarshal(result, &snap); err != nil {
		return nil, errors.Wrap(err, "decode orderbook snapshot")
	}
	return model.NewOrderbook(levelsFrom(snap.Bids), levelsFrom(snap.Asks), time.Now()), nil
}

// --- streaming capability ---

type subscribeRequest struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
	Market  string `json:"market"`
}

// SubscribeMessages builds one orderbook and one trades subscription per
// market.
func (f *Ftx) SubscribeMessages(symbols []string) [][]byte {
	msgs := make([][]byte, 0, 2*len(symbols))
	for _, symbol := range symbols {
		for _, channel := range []string{"orderbook", "trades"} {
			msg, err := json.Marshal(subscribeRequest{
				Op:      "subscribe",
				Channel: channel,
				Market:  symbol,
			})
			if err != nil {
				continue
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// pricePair is one (price, size) pair on the wire.
type pricePair [2]decimal.Decimal

func levelsFrom(pairs []pricePair) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(pairs))
	for _, p := range pairs {
		levels = append(levels, model.PriceLevel{Price: p[0], Size: p[1]})
	}
	return levels
}

type wsMessage struct {
	Channel string          `json:"channel"`
	Market  string          `json:"market"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

type wsOrderbook struct {
	Time   float64     `json:"time"`
	Action string      `json:"action"`
	Bids   []pricePair `json:"bids"`
	Asks   []pricePair `json:"asks"`
}

type wsTrade struct {
	ID          int64           `json:"id"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
	Side        string          `json:"side"`
	Liquidation bool            `json:"liquidation"`
	Time        string          `json:"time"`
}

func timeFromSeconds(t float64) time.Time {
	sec := int64(t)
	nsec := int64((t - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// tradeFrom translates one wire trade record. A malformed timestamp
// fails the record, not the batch.
func tradeFrom(t wsTrade, receivedAt time.Time) (model.Trade, error) {
	ts, err := time.Parse(time.RFC3339Nano, t.Time)
	if err != nil {
		return model.Trade{}, errors.Wrap(err, "parse trade time")
	}

	side := model.SideUnknown
	switch t.Side {
	case "buy":
		side = model.SideBuy
	case "sell":
		side = model.SideSell
	}

	return model.Trade{
		Price:       t.Price,
		Size:        t.Size,
		Side:        side,
		Liquidation: t.Liquidation,
		Time:        ts,
		ReceivedAt:  receivedAt,
	}, nil
}

// ProcessMessage decodes one inbound frame, merging orderbook messages
// into the table and translating trade batches. Administrative frames
// produce no event. Runs inline on the receive path: in-memory only.
func (f *Ftx) ProcessMessage(raw []byte, books map[string]*model.Orderbook) (*model.MarketEvent, error) {
	// Cheap tag sniff before the structured decode; control frames
	// carry no data payload.
	switch gjson.GetBytes(raw, "type").String() {
	case "subscribed", "unsubscribed", "info", "pong":
		return nil, nil
	case "error":
		return nil, errors.Errorf("ftx stream error: %s", raw)
	}

	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(err, "decode stream message")
	}

	switch msg.Channel {
	case "trades":
		return f.processTrades(msg)
	case "orderbook":
		return f.processOrderbook(msg, books)
	default:
		return nil, exception.UnknownVariantError{Variant: msg.Channel}
	}
}

func (f *Ftx) processTrades(msg wsMessage) (*model.MarketEvent, error) {
	var records []wsTrade
	if err := json.Unmarshal(msg.Data, &records); err != nil {
		return nil, errors.Wrap(err, "decode trades")
	}

	receivedAt := time.Now()
	trades := make([]model.Trade, 0, len(records))
	for _, record := range records {
		trade, err := tradeFrom(record, receivedAt)
		if err != nil {
			f.throughput.MarkDroppedTrade()
			logs.Warnf("ftx: dropping trade %d on %s: %v", record.ID, msg.Market, err)
			continue
		}
		trades = append(trades, trade)
	}

	ev := model.TradesEvent(msg.Market, trades)
	return &ev, nil
}

func (f *Ftx) processOrderbook(msg wsMessage, books map[string]*model.Orderbook) (*model.MarketEvent, error) {
	var update wsOrderbook
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		return nil, errors.Wrap(err, "decode orderbook")
	}

	ts := timeFromSeconds(update.Time)

	var book *model.Orderbook
	switch update.Action {
	case "partial":
		// Authoritative full state: discard whatever we had.
		book = model.NewOrderbook(levelsFrom(update.Bids), levelsFrom(update.Asks), ts)
		books[msg.Market] = book
	case "update":
		existing, ok := books[msg.Market]
		if !ok {
			logs.Warnf("ftx: update for %s before snapshot", msg.Market)
			return nil, exception.ErrOrderbookNotWarmedUp
		}
		existing.Update(levelsFrom(update.Bids), levelsFrom(update.Asks), ts)
		book = existing
	default:
		return nil, exception.UnknownVariantError{Variant: update.Action}
	}

	ev := model.OrderbookEvent(msg.Market, book.Clone())
	return &ev, nil
}
