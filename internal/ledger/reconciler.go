package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
	"github.com/jdamico/rebalancer/internal/execution"
	"github.com/jdamico/rebalancer/internal/ports"
)

const (
	defaultDayTradeLimit = 3
	defaultLookbackDays  = 4
)

// Config tunes post-fill bookkeeping and protective stops.
type Config struct {
	TrailPercent       decimal.Decimal // trailing-stop trail, in percent
	DayTradeLimit      int             // regulatory day-trade cap per rolling window
	LookbackDays       int             // rolling window, business days incl. today
	PlaceTrailingStops bool
}

// Reconciler applies confirmed fills to a portfolio snapshot and manages
// the same-day round-trip ledger. It is the only component that writes
// into a Portfolio.
type Reconciler struct {
	broker ports.AccountGateway
	cfg    Config
}

// New creates a reconciler. Zero limits fall back to the regulatory
// defaults (3 day trades over 4 business days).
func New(broker ports.AccountGateway, cfg Config) *Reconciler {
	if cfg.DayTradeLimit <= 0 {
		cfg.DayTradeLimit = defaultDayTradeLimit
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = defaultLookbackDays
	}
	return &Reconciler{broker: broker, cfg: cfg}
}

// Apply folds each confirmed order into the portfolio: filled buys add
// shares and spend cash, filled sells remove shares and raise cash. A
// non-FILLED terminal order contributes nothing and is logged as a failed
// trade. Returns the symbols that gained shares, for stop placement.
func (r *Reconciler) Apply(portfolio *domain.Portfolio, confirmations []execution.Confirmation) []string {
	netCash := decimal.Zero
	bought := make(map[string]struct{})

	for _, confirmation := range confirmations {
		order := confirmation.Order
		if order.Status != domain.StatusFilled {
			slog.Error("trade failed",
				"account", portfolio.AccountID,
				"symbol", confirmation.Symbol,
				"order_id", order.OrderID,
				"status", order.Status,
			)
			continue
		}

		value := order.ExecutedValue()
		switch order.Side {
		case domain.SideSell:
			portfolio.AdjustPosition(confirmation.Symbol, order.FilledQuantity.Neg())
			netCash = netCash.Add(value)
		default:
			portfolio.AdjustPosition(confirmation.Symbol, order.FilledQuantity)
			netCash = netCash.Sub(value)
			if order.FilledQuantity.IsPositive() {
				bought[confirmation.Symbol] = struct{}{}
			}
		}
	}

	portfolio.Cash = portfolio.Cash.Add(netCash)

	newlyLong := make([]string, 0, len(bought))
	for symbol := range bought {
		newlyLong = append(newlyLong, symbol)
	}
	sort.Strings(newlyLong)
	return newlyLong
}

// RecordRoundTrips overwrites today's round-trip count with the broker's
// figure. Re-running the refresh on the same day replaces, never adds.
func (r *Reconciler) RecordRoundTrips(portfolio *domain.Portfolio, count int, today time.Time) {
	portfolio.SetRoundTrips(today, count)
}

// TradesLeft is the remaining day-trade budget: the limit minus round trips
// over the rolling business-day window ending today.
func (r *Reconciler) TradesLeft(portfolio *domain.Portfolio, today time.Time) int {
	return r.cfg.DayTradeLimit - portfolio.RoundTripsInWindow(today, r.cfg.LookbackDays)
}

// PlaceProtectiveStops puts trailing-stop sells under newly long positions,
// one day-trade budget unit per stop, stopping when the budget runs out.
// Returns how many stops were placed.
func (r *Reconciler) PlaceProtectiveStops(ctx context.Context, portfolio *domain.Portfolio, newlyLong []string, today time.Time) (int, error) {
	if !r.cfg.PlaceTrailingStops {
		return 0, nil
	}

	tradesLeft := r.TradesLeft(portfolio, today)
	placed := 0
	for _, symbol := range newlyLong {
		if tradesLeft <= 0 {
			slog.Info("day-trade budget exhausted, skipping remaining stops",
				"account", portfolio.AccountID,
				"remaining_symbols", len(newlyLong)-placed,
			)
			break
		}
		quantity := portfolio.Quantity(symbol)
		if !quantity.IsPositive() {
			continue
		}

		orderID, err := r.broker.PlaceTrailingStopOrder(ctx, portfolio.AccountID, symbol, quantity, r.cfg.TrailPercent, domain.SideSell)
		if err != nil {
			return placed, fmt.Errorf("ledger.PlaceProtectiveStops: %s: %w", symbol, err)
		}
		slog.Info("trailing stop placed",
			"account", portfolio.AccountID,
			"symbol", symbol,
			"quantity", quantity,
			"trail_percent", r.cfg.TrailPercent,
			"order_id", orderID,
		)
		tradesLeft--
		placed++
	}
	return placed, nil
}
