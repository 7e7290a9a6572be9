package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
)

// portfolioValue marks the portfolio to market: cash plus bid value of
// every held position, from quotes fetched fresh for this run.
func (o *Orchestrator) portfolioValue(ctx context.Context, portfolio *domain.Portfolio) (decimal.Decimal, error) {
	symbols := portfolio.Symbols()
	quotes, err := o.quotes.GetCurrentQuotes(ctx, symbols)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quotes for holdings: %w", err)
	}

	total := portfolio.Cash
	for symbol, quantity := range portfolio.Positions {
		quote, ok := quotes[symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("valuation: %s not in fetched quotes", symbol)
		}
		if !quote.Realtime {
			slog.Warn("not a realtime quote", "symbol", symbol)
		}
		total = total.Add(quote.Bid.Mul(quantity))
	}
	return total, nil
}

// CancelAllOutstanding is the maintenance run clearing stale orders for
// every stored account.
func (o *Orchestrator) CancelAllOutstanding(ctx context.Context) error {
	portfolios, err := o.store.GetAllPortfolios(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator.CancelAllOutstanding: load portfolios: %w", err)
	}

	var failures []error
	for _, portfolio := range portfolios {
		if err := o.cancelOutstanding(ctx, portfolio.AccountID); err != nil {
			failures = append(failures, fmt.Errorf("account %s: %w", portfolio.AccountID, err))
		}
	}
	return joinFailures("orchestrator.CancelAllOutstanding", failures)
}

// RefreshRoundTrips is the maintenance run writing today's broker-reported
// round-trip count into every stored portfolio.
func (o *Orchestrator) RefreshRoundTrips(ctx context.Context) error {
	portfolios, err := o.store.GetAllPortfolios(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator.RefreshRoundTrips: load portfolios: %w", err)
	}

	now := time.Now().UTC()
	var failures []error
	for _, portfolio := range portfolios {
		snapshot, err := o.broker.GetAccount(ctx, portfolio.AccountID)
		if err != nil {
			failures = append(failures, fmt.Errorf("account %s: snapshot: %w", portfolio.AccountID, err))
			continue
		}
		updated := portfolio.Clone()
		o.reconciler.RecordRoundTrips(updated, snapshot.RoundTrips, now)
		if err := o.store.StorePortfolio(ctx, updated); err != nil {
			failures = append(failures, fmt.Errorf("account %s: persist: %w", portfolio.AccountID, err))
			continue
		}
		slog.Info("round trips refreshed",
			"account", portfolio.AccountID,
			"count", snapshot.RoundTrips,
		)
	}
	return joinFailures("orchestrator.RefreshRoundTrips", failures)
}
