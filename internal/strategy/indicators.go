package strategy

// indicators.go — pure calculations over daily bars. Every function re-sorts
// its input; callers must not rely on bar order being preserved.

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
)

var one = decimal.NewFromInt(1)

// CumulativeReturn computes the fractional return over the last lookbackDays
// trading days, simulating reinvestment of any dividend whose ex-date falls
// inside the window. The lookback is clamped to the earliest available bar
// when history is short.
func CumulativeReturn(bars []domain.PriceBar, dividends []domain.DividendEvent, lookbackDays int) (decimal.Decimal, error) {
	if len(bars) == 0 {
		return decimal.Zero, domain.ErrEmptyHistory
	}

	domain.SortBarsAscending(bars)

	idx := len(bars) - lookbackDays
	if idx < 0 {
		idx = 0
	}
	lookbackBar := bars[idx]
	latestBar := bars[len(bars)-1]

	// Start with one share at the lookback date; each dividend inside the
	// window buys fractional shares at the pay-date close.
	shares := one
	for _, div := range dividends {
		if !div.ExDate.After(lookbackBar.Timestamp) || div.ExDate.After(latestBar.Timestamp) {
			continue
		}
		payPrice, ok := closeOnOrAfter(bars, div.PayDate)
		if !ok || payPrice.IsZero() {
			continue
		}
		shares = shares.Add(div.AmountPerShare.Mul(shares).Div(payPrice))
	}

	if lookbackBar.Close.IsZero() {
		return decimal.Zero, fmt.Errorf("strategy.CumulativeReturn: zero close at lookback bar %s", lookbackBar.Timestamp.Format("2006-01-02"))
	}
	return shares.Mul(latestBar.Close).Sub(lookbackBar.Close).Div(lookbackBar.Close), nil
}

// closeOnOrAfter returns the close of the first bar on or after the given
// date. Pay dates land on trading days; the on-or-after scan covers the odd
// holiday settlement.
func closeOnOrAfter(bars []domain.PriceBar, date time.Time) (decimal.Decimal, bool) {
	for _, bar := range bars {
		if !bar.Timestamp.Before(date) {
			return bar.Close, true
		}
	}
	return decimal.Zero, false
}

// RelativeStrengthIndex computes the classic RSI over the last windowDays
// close-to-close deltas. A window with no losses reads 100, no gains reads 0.
func RelativeStrengthIndex(bars []domain.PriceBar, windowDays int) (decimal.Decimal, error) {
	if len(bars) < windowDays+1 {
		return decimal.Zero, fmt.Errorf("strategy.RelativeStrengthIndex: need %d bars, have %d: %w", windowDays+1, len(bars), domain.ErrEmptyHistory)
	}

	domain.SortBarsAscending(bars)

	gains := decimal.Zero
	losses := decimal.Zero
	for i := len(bars) - windowDays; i < len(bars); i++ {
		delta := bars[i].Close.Sub(bars[i-1].Close)
		if delta.IsNegative() {
			losses = losses.Add(delta.Neg())
		} else {
			gains = gains.Add(delta)
		}
	}

	window := decimal.NewFromInt(int64(windowDays))
	avgGain := gains.Div(window)
	avgLoss := losses.Div(window)

	if avgLoss.IsZero() {
		// Relative strength is infinite.
		return decimal.NewFromInt(100), nil
	}

	hundred := decimal.NewFromInt(100)
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(one.Add(rs))), nil
}

// MovingAverage returns the mean close over the most recent days bars.
func MovingAverage(bars []domain.PriceBar, days int) (decimal.Decimal, error) {
	if len(bars) < days || days <= 0 {
		return decimal.Zero, fmt.Errorf("strategy.MovingAverage: need %d bars, have %d: %w", days, len(bars), domain.ErrEmptyHistory)
	}

	domain.SortBarsDescending(bars)

	total := decimal.Zero
	for i := 0; i < days; i++ {
		total = total.Add(bars[i].Close)
	}
	return total.Div(decimal.NewFromInt(int64(days))), nil
}
