package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors callers branch on.
var (
	// ErrNoPortfolio indicates no portfolio record exists for an account.
	ErrNoPortfolio = errors.New("no portfolio found")
	// ErrEmptyHistory indicates a required symbol has no price bars.
	ErrEmptyHistory = errors.New("empty price history")
)

// roundTripDateLayout is the calendar-date key for the round-trip ledger.
const roundTripDateLayout = "2006-01-02"

// Portfolio is the persisted trading state of one brokerage account.
// Positions never contain zero-quantity entries; absence means zero holding.
type Portfolio struct {
	AccountID  string
	Cash       decimal.Decimal
	Positions  map[string]decimal.Decimal
	RoundTrips map[string]int // calendar date (2006-01-02) → day trades that date
}

// NewPortfolio creates an empty portfolio for an account.
func NewPortfolio(accountID string) *Portfolio {
	return &Portfolio{
		AccountID:  accountID,
		Cash:       decimal.Zero,
		Positions:  make(map[string]decimal.Decimal),
		RoundTrips: make(map[string]int),
	}
}

// Clone returns a deep copy. Workers mutate clones, never shared state.
func (p *Portfolio) Clone() *Portfolio {
	cp := &Portfolio{
		AccountID:  p.AccountID,
		Cash:       p.Cash,
		Positions:  make(map[string]decimal.Decimal, len(p.Positions)),
		RoundTrips: make(map[string]int, len(p.RoundTrips)),
	}
	for sym, qty := range p.Positions {
		cp.Positions[sym] = qty
	}
	for date, n := range p.RoundTrips {
		cp.RoundTrips[date] = n
	}
	return cp
}

// Quantity returns the held share count for a symbol, zero if absent.
func (p *Portfolio) Quantity(symbol string) decimal.Decimal {
	if qty, ok := p.Positions[symbol]; ok {
		return qty
	}
	return decimal.Zero
}

// AdjustPosition adds delta shares to a symbol, dropping the entry if the
// result is exactly zero so the zero-means-absent invariant holds.
func (p *Portfolio) AdjustPosition(symbol string, delta decimal.Decimal) {
	qty := p.Quantity(symbol).Add(delta)
	if qty.IsZero() {
		delete(p.Positions, symbol)
		return
	}
	p.Positions[symbol] = qty
}

// SetRoundTrips overwrites the round-trip count for the given date.
// Same-day refreshes replace, never accumulate.
func (p *Portfolio) SetRoundTrips(date time.Time, count int) {
	p.RoundTrips[date.Format(roundTripDateLayout)] = count
}

// RoundTripsInWindow sums round trips over the last n business days ending
// at (and including) today. Weekends are skipped, not counted against n.
func (p *Portfolio) RoundTripsInWindow(today time.Time, businessDays int) int {
	total := 0
	day := today
	for counted := 0; counted < businessDays; {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			total += p.RoundTrips[day.Format(roundTripDateLayout)]
			counted++
		}
		day = day.AddDate(0, 0, -1)
	}
	return total
}

// Symbols returns the symbols with non-zero holdings.
func (p *Portfolio) Symbols() []string {
	syms := make([]string, 0, len(p.Positions))
	for sym := range p.Positions {
		syms = append(syms, sym)
	}
	return syms
}
