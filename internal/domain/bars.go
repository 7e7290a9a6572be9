package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is one daily close for a symbol.
type PriceBar struct {
	Timestamp time.Time
	Close     decimal.Decimal
}

// DividendEvent is a cash dividend announcement for a symbol.
type DividendEvent struct {
	ExDate         time.Time
	PayDate        time.Time
	AmountPerShare decimal.Decimal
}

// SortBarsAscending orders bars oldest first, in place. Consumers re-sort as
// needed and must not assume any input order.
func SortBarsAscending(bars []PriceBar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
}

// SortBarsDescending orders bars newest first, in place.
func SortBarsDescending(bars []PriceBar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.After(bars[j].Timestamp)
	})
}

// Quote is a transient snapshot price for a symbol, fetched fresh per run.
type Quote struct {
	Symbol   string
	Bid      decimal.Decimal
	Ask      decimal.Decimal
	Last     decimal.Decimal
	Realtime bool
}
