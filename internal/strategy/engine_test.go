package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdamico/rebalancer/internal/domain"
)

// fakeMarketData serves canned bars and dividends per symbol.
type fakeMarketData struct {
	bars      map[string][]domain.PriceBar
	dividends map[string][]domain.DividendEvent
}

func (f *fakeMarketData) GetPriceHistory(_ context.Context, symbol string) ([]domain.PriceBar, error) {
	return f.bars[symbol], nil
}

func (f *fakeMarketData) GetDividends(_ context.Context, symbol string) ([]domain.DividendEvent, error) {
	return f.dividends[symbol], nil
}

// trendBars builds a long enough series for every window the tree uses.
func trendBars(start, step float64) []domain.PriceBar {
	closes := make([]float64, 70)
	for i := range closes {
		closes[i] = start + step*float64(i)
	}
	return dailyBars(closes...)
}

func flatBars(level float64) []domain.PriceBar {
	return trendBars(level, 0)
}

func TestSelectRegime_RiskOn(t *testing.T) {
	data := &fakeMarketData{bars: map[string][]domain.PriceBar{
		"AGG":  trendBars(100, 1),  // beats the cash proxy
		"BIL":  flatBars(100),
		"TLT":  flatBars(100),
		"SOXL": trendBars(200, -1), // RSI 0
		"TQQQ": trendBars(100, 1),  // RSI 100
		"UPRO": trendBars(200, -1), // RSI 0
		"TECL": trendBars(100, 1),  // RSI 100
		"QID":  flatBars(50),
		"TBF":  flatBars(50),
	}}

	regime, candidates, err := New(data, data).SelectRegime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RegimeRiskOn, regime)
	assert.Equal(t, []string{"SOXL", "UPRO"}, candidates, "two lowest-RSI growth symbols")
}

func TestSelectRegime_RiskOffRisingRates(t *testing.T) {
	data := &fakeMarketData{bars: map[string][]domain.PriceBar{
		"AGG":  trendBars(200, -1), // loses to the cash proxy
		"BIL":  flatBars(100),
		"TLT":  trendBars(200, -1), // falling long bond → rising rates
		"SOXL": flatBars(50),
		"TQQQ": flatBars(50),
		"UPRO": flatBars(50),
		"TECL": flatBars(50),
		"QID":  trendBars(200, -1), // RSI 0, the lower of the pair
		"TBF":  trendBars(100, 1),  // RSI 100
	}}

	regime, candidates, err := New(data, data).SelectRegime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RegimeRiskOffRising, regime)
	assert.Equal(t, []string{"UUP", "QID"}, candidates)
}

func TestSelectRegime_RiskOffFallingRates(t *testing.T) {
	data := &fakeMarketData{bars: map[string][]domain.PriceBar{
		"AGG":  trendBars(200, -1),
		"BIL":  flatBars(100),
		"TLT":  trendBars(100, 1), // rising long bond → falling rates
		"SOXL": flatBars(50),
		"TQQQ": flatBars(50),
		"UPRO": flatBars(50),
		"TECL": flatBars(50),
		"QID":  flatBars(50),
		"TBF":  flatBars(50),
	}}

	regime, candidates, err := New(data, data).SelectRegime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RegimeRiskOffFalling, regime)
	assert.Equal(t, []string{"UGL", "TMF", "BTAL", "XLP"}, candidates)
}

func TestSelectRegime_MissingHistoryFatal(t *testing.T) {
	data := &fakeMarketData{bars: map[string][]domain.PriceBar{}}

	_, _, err := New(data, data).SelectRegime(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmptyHistory)
}
