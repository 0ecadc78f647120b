package exception

import "errors"

// Market data errors
var (
	ErrMarketMissingBase     = errors.New("market data: missing base currency")
	ErrMarketMissingQuote    = errors.New("market data: missing quote currency")
	ErrOrderbookNotWarmedUp  = errors.New("market data: delta received before snapshot")
	ErrNoMarketsConfigured   = errors.New("market data: no markets configured")
	ErrUnexpectedRestPayload = errors.New("market data: unexpected rest payload")
)

// UnknownVariantError reports an unrecognized tag value in an exchange
// payload, e.g. an unsupported orderbook action or market type.
type UnknownVariantError struct {
	Variant string
}

func (e UnknownVariantError) Error() string {
	return "market data: unknown variant: " + e.Variant
}
