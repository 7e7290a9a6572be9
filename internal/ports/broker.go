package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
)

// AccountGateway places and tracks orders against the brokerage.
type AccountGateway interface {
	// GetAccount returns the broker's live snapshot of an account.
	GetAccount(ctx context.Context, accountID string) (domain.AccountSnapshot, error)

	// GetOrders returns orders entered in the given time window.
	GetOrders(ctx context.Context, accountID string, from, to time.Time) ([]domain.OrderRecord, error)

	// GetOrder returns the current state of a single order.
	GetOrder(ctx context.Context, accountID, orderID string) (domain.OrderRecord, error)

	// CancelOrder cancels a working order. Attempted once, never retried.
	CancelOrder(ctx context.Context, accountID, orderID string) error

	// PlaceMarketOrder submits a whole-share market order and returns the
	// broker-assigned order ID.
	PlaceMarketOrder(ctx context.Context, accountID, symbol string, quantity decimal.Decimal, side domain.OrderSide) (string, error)

	// PlaceTrailingStopOrder submits a trailing-stop order with the trail
	// expressed in percent.
	PlaceTrailingStopOrder(ctx context.Context, accountID, symbol string, quantity decimal.Decimal, trailPercent decimal.Decimal, side domain.OrderSide) (string, error)
}
