package execution

// executor.go — order submission and fill confirmation. Within one account,
// every sell is confirmed terminal before the first buy goes out, so freed
// cash and day-trade budget are real before they get spent.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
	"github.com/jdamico/rebalancer/internal/ports"
)

// ErrFillTimeout indicates an order did not reach a terminal state within
// the configured fill timeout.
var ErrFillTimeout = errors.New("fill confirmation timed out")

const (
	defaultPollInterval = time.Second
	defaultFillTimeout  = 5 * time.Minute
)

// Config tunes the fill-confirmation poll.
type Config struct {
	PollInterval time.Duration
	FillTimeout  time.Duration
}

// Confirmation pairs a submitted symbol with its terminal order record.
type Confirmation struct {
	Symbol string
	Order  domain.OrderRecord
}

// Executor drives each order from submission to a terminal state.
type Executor struct {
	broker ports.AccountGateway
	cfg    Config
}

// New creates an executor. Zero config fields fall back to a 1s poll and a
// 5m fill deadline.
func New(broker ports.AccountGateway, cfg Config) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = defaultFillTimeout
	}
	return &Executor{broker: broker, cfg: cfg}
}

// placedOrder tracks one submitted order awaiting confirmation.
type placedOrder struct {
	symbol  string
	orderID string
}

// ExecuteChanges submits market orders for the sell map, confirms them all,
// then does the same for the buy map. A placement failure aborts the
// account's pipeline; a non-FILLED terminal order does not.
func (e *Executor) ExecuteChanges(ctx context.Context, accountID string, sell, buy map[string]decimal.Decimal) ([]Confirmation, error) {
	sellOrders, err := e.submitAll(ctx, accountID, sell, domain.SideSell)
	if err != nil {
		return nil, err
	}
	confirmations, err := e.confirmAll(ctx, accountID, sellOrders)
	if err != nil {
		return confirmations, err
	}

	buyOrders, err := e.submitAll(ctx, accountID, buy, domain.SideBuy)
	if err != nil {
		return confirmations, err
	}
	buyConfirmations, err := e.confirmAll(ctx, accountID, buyOrders)
	confirmations = append(confirmations, buyConfirmations...)
	return confirmations, err
}

// submitAll places one market order per instruction. Zero quantities never
// reach the broker.
func (e *Executor) submitAll(ctx context.Context, accountID string, positions map[string]decimal.Decimal, side domain.OrderSide) ([]placedOrder, error) {
	orders := make([]placedOrder, 0, len(positions))
	for symbol, quantity := range positions {
		if quantity.IsZero() {
			continue
		}
		orderID, err := e.broker.PlaceMarketOrder(ctx, accountID, symbol, quantity, side)
		if err != nil {
			return nil, fmt.Errorf("execution.submitAll: place %s %s x%s: %w", side, symbol, quantity, err)
		}
		slog.Info("order submitted",
			"account", accountID,
			"symbol", symbol,
			"side", side,
			"quantity", quantity,
			"order_id", orderID,
		)
		orders = append(orders, placedOrder{symbol: symbol, orderID: orderID})
	}
	return orders, nil
}

// confirmAll blocks until every order in the batch is terminal or a poll
// fails.
func (e *Executor) confirmAll(ctx context.Context, accountID string, orders []placedOrder) ([]Confirmation, error) {
	confirmations := make([]Confirmation, 0, len(orders))
	for _, order := range orders {
		record, err := e.AwaitFill(ctx, accountID, order.orderID)
		if err != nil {
			return confirmations, fmt.Errorf("execution.confirmAll: %s order %s: %w", order.symbol, order.orderID, err)
		}
		confirmations = append(confirmations, Confirmation{Symbol: order.symbol, Order: record})
	}
	return confirmations, nil
}

// AwaitFill polls order status on the configured interval until the order
// is terminal, the fill deadline lapses, or the context is canceled.
func (e *Executor) AwaitFill(ctx context.Context, accountID, orderID string) (domain.OrderRecord, error) {
	pollCtx, cancel := context.WithTimeout(ctx, e.cfg.FillTimeout)
	defer cancel()

	maxPolls := int(e.cfg.FillTimeout / e.cfg.PollInterval)
	policy := retrypolicy.NewBuilder[domain.OrderRecord]().
		HandleIf(func(record domain.OrderRecord, err error) bool {
			// Keep polling while the broker answers with a non-terminal state.
			return err == nil && !record.Status.Terminal()
		}).
		WithDelay(e.cfg.PollInterval).
		WithMaxRetries(maxPolls).
		ReturnLastFailure().
		Build()

	record, err := failsafe.With[domain.OrderRecord](policy).
		GetWithExecution(func(_ failsafe.Execution[domain.OrderRecord]) (domain.OrderRecord, error) {
			slog.Debug("checking order", "account", accountID, "order_id", orderID)
			return e.broker.GetOrder(pollCtx, accountID, orderID)
		})
	if err != nil {
		if ctx.Err() != nil {
			return record, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || pollCtx.Err() != nil {
			return record, ErrFillTimeout
		}
		return record, fmt.Errorf("execution.AwaitFill: poll order %s: %w", orderID, err)
	}
	if !record.Status.Terminal() {
		return record, ErrFillTimeout
	}

	slog.Info("order terminal",
		"account", accountID,
		"order_id", orderID,
		"status", record.Status,
		"filled_quantity", record.FilledQuantity,
	)
	return record, nil
}
