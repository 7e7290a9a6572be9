package orchestrator

// orchestrator.go — fans one rebalance pipeline out per account. Accounts
// share nothing mutable: each worker owns its portfolio clone, quotes, and
// orders, so one hung or failing account never stalls its siblings.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alitto/pond"
	"github.com/google/uuid"

	"github.com/jdamico/rebalancer/internal/allocation"
	"github.com/jdamico/rebalancer/internal/domain"
	"github.com/jdamico/rebalancer/internal/execution"
	"github.com/jdamico/rebalancer/internal/ledger"
	"github.com/jdamico/rebalancer/internal/ports"
)

const (
	defaultWorkers      = 4
	defaultCancelWindow = 48 * time.Hour
)

// Config tunes the fan-out and the shared pipeline switches.
type Config struct {
	Workers              int
	SkipWhenSymbolsMatch bool
	CancelWindow         time.Duration // how far back to look for cancelable orders
}

// Outcome is the result of one account's pipeline.
type Outcome struct {
	AccountID string
	RunID     string
	Portfolio *domain.Portfolio
	Err       error
}

// Orchestrator wires the per-account pipeline and runs it for every stored
// portfolio.
type Orchestrator struct {
	store      ports.PortfolioStore
	quotes     ports.QuoteGateway
	broker     ports.AccountGateway
	allocator  *allocation.Allocator
	executor   *execution.Executor
	reconciler *ledger.Reconciler
	cfg        Config
}

// New creates an orchestrator over the given collaborators.
func New(
	store ports.PortfolioStore,
	quotes ports.QuoteGateway,
	broker ports.AccountGateway,
	allocator *allocation.Allocator,
	executor *execution.Executor,
	reconciler *ledger.Reconciler,
	cfg Config,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = defaultCancelWindow
	}
	return &Orchestrator{
		store:      store,
		quotes:     quotes,
		broker:     broker,
		allocator:  allocator,
		executor:   executor,
		reconciler: reconciler,
		cfg:        cfg,
	}
}

// RunAll rebalances every stored account concurrently toward the candidate
// symbols. Side effects on accounts that succeed stay committed even when a
// sibling fails; any failure makes the aggregate error non-nil.
func (o *Orchestrator) RunAll(ctx context.Context, candidates []string) ([]Outcome, error) {
	portfolios, err := o.store.GetAllPortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator.RunAll: load portfolios: %w", err)
	}
	if len(portfolios) == 0 {
		return nil, errors.New("orchestrator.RunAll: no portfolios stored")
	}

	runID := uuid.New().String()
	slog.Info("rebalance run starting",
		"run_id", runID,
		"accounts", len(portfolios),
		"candidates", candidates,
	)

	pool := pond.New(o.cfg.Workers, len(portfolios), pond.MinWorkers(1))
	results := make(chan Outcome, len(portfolios))

	for _, portfolio := range portfolios {
		portfolio := portfolio
		pool.Submit(func() {
			outcome := Outcome{AccountID: portfolio.AccountID, RunID: runID}
			outcome.Portfolio, outcome.Err = o.rebalanceAccount(ctx, portfolio, candidates)
			results <- outcome
		})
	}
	pool.StopAndWait()
	close(results)

	outcomes := make([]Outcome, 0, len(portfolios))
	var failures []error
	for outcome := range results {
		outcomes = append(outcomes, outcome)
		if outcome.Err != nil {
			slog.Error("account rebalance failed",
				"run_id", runID,
				"account", outcome.AccountID,
				"err", outcome.Err,
			)
			failures = append(failures, fmt.Errorf("account %s: %w", outcome.AccountID, outcome.Err))
		}
	}

	if len(failures) > 0 {
		return outcomes, fmt.Errorf("orchestrator.RunAll: %d of %d accounts failed: %w",
			len(failures), len(portfolios), errors.Join(failures...))
	}

	slog.Info("rebalance run complete", "run_id", runID, "accounts", len(outcomes))
	return outcomes, nil
}

// rebalanceAccount runs the full pipeline for one account: value the
// portfolio, clear stale orders, allocate, diff, execute, reconcile,
// persist. The input portfolio is never mutated; the returned clone is the
// persisted state.
func (o *Orchestrator) rebalanceAccount(ctx context.Context, stored *domain.Portfolio, candidates []string) (*domain.Portfolio, error) {
	portfolio := stored.Clone()

	slog.Info("rebalancing account",
		"account", portfolio.AccountID,
		"cash", portfolio.Cash,
		"positions", len(portfolio.Positions),
	)

	budget, err := o.portfolioValue(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	slog.Info("portfolio value", "account", portfolio.AccountID, "value", budget)

	if err := o.cancelOutstanding(ctx, portfolio.AccountID); err != nil {
		return nil, err
	}

	quotes, err := o.quotes.GetCurrentQuotes(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("quotes for candidates: %w", err)
	}

	desired, err := o.allocator.DetermineDesiredPositions(candidates, quotes, budget)
	if err != nil {
		return nil, err
	}
	desired = allocation.PruneZero(desired)

	sell, buy := allocation.DeterminePositionChanges(portfolio.Positions, desired, o.cfg.SkipWhenSymbolsMatch)
	slog.Info("position changes",
		"account", portfolio.AccountID,
		"sells", len(sell),
		"buys", len(buy),
	)

	confirmations, err := o.executor.ExecuteChanges(ctx, portfolio.AccountID, sell, buy)
	if err != nil {
		return nil, err
	}

	newlyLong := o.reconciler.Apply(portfolio, confirmations)

	now := time.Now().UTC()
	snapshot, err := o.broker.GetAccount(ctx, portfolio.AccountID)
	if err != nil {
		return nil, fmt.Errorf("account snapshot: %w", err)
	}
	o.reconciler.RecordRoundTrips(portfolio, snapshot.RoundTrips, now)

	if _, err := o.reconciler.PlaceProtectiveStops(ctx, portfolio, newlyLong, now); err != nil {
		return nil, err
	}

	if err := o.store.StorePortfolio(ctx, portfolio); err != nil {
		return nil, fmt.Errorf("persist portfolio: %w", err)
	}

	slog.Info("account rebalanced",
		"account", portfolio.AccountID,
		"cash", portfolio.Cash,
		"positions", len(portfolio.Positions),
	)
	return portfolio, nil
}

// joinFailures folds per-account errors into one aggregate, nil when empty.
func joinFailures(op string, failures []error) error {
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %d accounts failed: %w", op, len(failures), errors.Join(failures...))
}

// cancelOutstanding cancels every cancelable order entered inside the
// cancel window. Cancellation is attempted once per order.
func (o *Orchestrator) cancelOutstanding(ctx context.Context, accountID string) error {
	now := time.Now().UTC()
	orders, err := o.broker.GetOrders(ctx, accountID, now.Add(-o.cfg.CancelWindow), now)
	if err != nil {
		return fmt.Errorf("list outstanding orders: %w", err)
	}

	for _, order := range orders {
		if !order.Cancelable {
			slog.Info("order not cancelable", "account", accountID, "order_id", order.OrderID)
			continue
		}
		if err := o.broker.CancelOrder(ctx, accountID, order.OrderID); err != nil {
			return fmt.Errorf("cancel order %s: %w", order.OrderID, err)
		}
		slog.Info("order canceled", "account", accountID, "order_id", order.OrderID)
	}
	return nil
}
