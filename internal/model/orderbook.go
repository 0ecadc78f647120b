package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is one (price, remaining size) pair of an orderbook side.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// PriceLevels is one side of an orderbook, kept sorted by construction:
// bids descending, asks ascending. Zero-size levels are absent, never
// stored as zero.
type PriceLevels struct {
	levels     []PriceLevel
	descending bool
}

// BidsFrom builds a descending bid side from unordered pairs, dropping
// zero-size entries.
func BidsFrom(pairs []PriceLevel) PriceLevels {
	return levelsFrom(pairs, true)
}

// AsksFrom builds an ascending ask side from unordered pairs, dropping
// zero-size entries.
func AsksFrom(pairs []PriceLevel) PriceLevels {
	return levelsFrom(pairs, false)
}

func levelsFrom(pairs []PriceLevel, descending bool) PriceLevels {
	levels := make([]PriceLevel, 0, len(pairs))
	for _, p := range pairs {
		if p.Size.IsZero() {
			continue
		}
		levels = append(levels, p)
	}
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.GreaterThan(levels[j].Price)
		}
		return levels[i].Price.LessThan(levels[j].Price)
	})
	return PriceLevels{levels: levels, descending: descending}
}

func (pl *PriceLevels) search(price decimal.Decimal) int {
	return sort.Search(len(pl.levels), func(i int) bool {
		c := pl.levels[i].Price.Cmp(price)
		if pl.descending {
			return c <= 0
		}
		return c >= 0
	})
}

// Upsert inserts or replaces the level at price. Size zero removes the
// level if present. Ordering is preserved.
func (pl *PriceLevels) Upsert(price, size decimal.Decimal) {
	i := pl.search(price)
	found := i < len(pl.levels) && pl.levels[i].Price.Equal(price)
	switch {
	case size.IsZero():
		if found {
			pl.levels = append(pl.levels[:i], pl.levels[i+1:]...)
		}
	case found:
		pl.levels[i].Size = size
	default:
		pl.levels = append(pl.levels, PriceLevel{})
		copy(pl.levels[i+1:], pl.levels[i:])
		pl.levels[i] = PriceLevel{Price: price, Size: size}
	}
}

// Len returns the number of levels on this side.
func (pl PriceLevels) Len() int {
	return len(pl.levels)
}

// Levels returns the sorted levels. The slice must not be mutated.
func (pl PriceLevels) Levels() []PriceLevel {
	return pl.levels
}

// Best returns the top of this side, if any.
func (pl PriceLevels) Best() (PriceLevel, bool) {
	if len(pl.levels) == 0 {
		return PriceLevel{}, false
	}
	return pl.levels[0], true
}

// Clone returns a deep copy.
func (pl PriceLevels) Clone() PriceLevels {
	levels := make([]PriceLevel, len(pl.levels))
	copy(levels, pl.levels)
	return PriceLevels{levels: levels, descending: pl.descending}
}

// Orderbook is the reconstructed bid/ask state of one market. The owning
// market data engine mutates it in place; published copies are immutable.
type Orderbook struct {
	Bids PriceLevels
	Asks PriceLevels
	Time time.Time
}

// NewOrderbook builds a book from unordered bid/ask pairs.
func NewOrderbook(bids, asks []PriceLevel, ts time.Time) *Orderbook {
	return &Orderbook{
		Bids: BidsFrom(bids),
		Asks: AsksFrom(asks),
		Time: ts,
	}
}

// Update applies delta pairs to both sides and advances the timestamp.
func (o *Orderbook) Update(bids, asks []PriceLevel, ts time.Time) {
	for _, b := range bids {
		o.Bids.Upsert(b.Price, b.Size)
	}
	for _, a := range asks {
		o.Asks.Upsert(a.Price, a.Size)
	}
	o.Time = ts
}

// Clone returns a deep copy safe to hand to other engines.
func (o *Orderbook) Clone() *Orderbook {
	return &Orderbook{
		Bids: o.Bids.Clone(),
		Asks: o.Asks.Clone(),
		Time: o.Time,
	}
}
