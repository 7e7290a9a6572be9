package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
	"github.com/jdamico/rebalancer/internal/ports"
)

// Regime is the discrete risk posture driving symbol selection.
type Regime string

const (
	RegimeRiskOn         Regime = "risk_on"
	RegimeRiskOffRising  Regime = "risk_off_rising_rates"
	RegimeRiskOffFalling Regime = "risk_off_falling_rates"
)

// Fixed regime universe. The decision tree is deterministic given the day's
// bar and dividend data.
const (
	bondProxy = "AGG"
	cashProxy = "BIL"
	longBond  = "TLT"
)

var (
	growthBasket    = []string{"SOXL", "TQQQ", "UPRO", "TECL"}
	inverseDuration = "UUP"
	inverseRates    = []string{"QID", "TBF"}
	defensiveBasket = []string{"UGL", "TMF", "BTAL", "XLP"}
)

// Engine turns historical bars and dividend events into a regime choice and
// a ranked candidate symbol list.
type Engine struct {
	history   ports.HistoryGateway
	dividends ports.DividendGateway
}

// New creates a signal engine over the given market-data gateways.
func New(history ports.HistoryGateway, dividends ports.DividendGateway) *Engine {
	return &Engine{history: history, dividends: dividends}
}

// universe is every symbol the decision tree may inspect.
func universe() []string {
	syms := []string{bondProxy, cashProxy, longBond}
	syms = append(syms, growthBasket...)
	syms = append(syms, inverseRates...)
	return syms
}

// SelectRegime evaluates the three-way decision tree and returns the regime
// plus the candidate symbols to hold, ranked where the branch calls for it.
func (e *Engine) SelectRegime(ctx context.Context) (Regime, []string, error) {
	bars := make(map[string][]domain.PriceBar, len(universe()))
	for _, symbol := range universe() {
		history, err := e.history.GetPriceHistory(ctx, symbol)
		if err != nil {
			return "", nil, fmt.Errorf("strategy.SelectRegime: history for %s: %w", symbol, err)
		}
		if len(history) == 0 {
			return "", nil, fmt.Errorf("strategy.SelectRegime: %s: %w", symbol, domain.ErrEmptyHistory)
		}
		bars[symbol] = history
	}

	// Dividends only matter for the cumulative-return comparisons; the
	// gateway paces these calls against the provider's rate limit.
	divs := make(map[string][]domain.DividendEvent, 3)
	for _, symbol := range []string{bondProxy, cashProxy, longBond} {
		events, err := e.dividends.GetDividends(ctx, symbol)
		if err != nil {
			return "", nil, fmt.Errorf("strategy.SelectRegime: dividends for %s: %w", symbol, err)
		}
		divs[symbol] = events
	}

	bondReturn, err := CumulativeReturn(bars[bondProxy], divs[bondProxy], 60)
	if err != nil {
		return "", nil, fmt.Errorf("strategy.SelectRegime: %s return: %w", bondProxy, err)
	}
	cashReturn60, err := CumulativeReturn(bars[cashProxy], divs[cashProxy], 60)
	if err != nil {
		return "", nil, fmt.Errorf("strategy.SelectRegime: %s return: %w", cashProxy, err)
	}

	if bondReturn.GreaterThan(cashReturn60) {
		picks, err := e.rankByRSI(bars, growthBasket, 10, 2)
		if err != nil {
			return "", nil, err
		}
		slog.Info("strategy selected: risk on", "candidates", picks)
		return RegimeRiskOn, picks, nil
	}

	longBondReturn, err := CumulativeReturn(bars[longBond], divs[longBond], 20)
	if err != nil {
		return "", nil, fmt.Errorf("strategy.SelectRegime: %s return: %w", longBond, err)
	}
	cashReturn20, err := CumulativeReturn(bars[cashProxy], divs[cashProxy], 20)
	if err != nil {
		return "", nil, fmt.Errorf("strategy.SelectRegime: %s return: %w", cashProxy, err)
	}

	if longBondReturn.LessThan(cashReturn20) {
		picks, err := e.rankByRSI(bars, inverseRates, 20, 1)
		if err != nil {
			return "", nil, err
		}
		candidates := append([]string{inverseDuration}, picks...)
		slog.Info("strategy selected: risk off, rising rates", "candidates", candidates)
		return RegimeRiskOffRising, candidates, nil
	}

	slog.Info("strategy selected: risk off, falling rates", "candidates", defensiveBasket)
	return RegimeRiskOffFalling, append([]string(nil), defensiveBasket...), nil
}

// rankByRSI orders symbols by RSI ascending (most oversold first) and
// returns the lowest take.
func (e *Engine) rankByRSI(bars map[string][]domain.PriceBar, symbols []string, window, take int) ([]string, error) {
	type ranked struct {
		symbol string
		rsi    decimal.Decimal
	}
	strengths := make([]ranked, 0, len(symbols))
	for _, symbol := range symbols {
		rsi, err := RelativeStrengthIndex(bars[symbol], window)
		if err != nil {
			return nil, fmt.Errorf("strategy.rankByRSI: %s: %w", symbol, err)
		}
		strengths = append(strengths, ranked{symbol: symbol, rsi: rsi})
	}

	sort.SliceStable(strengths, func(i, j int) bool {
		return strengths[i].rsi.LessThan(strengths[j].rsi)
	})

	picks := make([]string, 0, take)
	for i := 0; i < take && i < len(strengths); i++ {
		picks = append(picks, strengths[i].symbol)
	}
	return picks, nil
}
