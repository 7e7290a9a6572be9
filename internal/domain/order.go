package domain

import "github.com/shopspring/decimal"

// OrderSide is the broker-side instruction on an order leg.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus is the broker-reported lifecycle state of an order.
type OrderStatus string

const (
	StatusWorking  OrderStatus = "WORKING"
	StatusFilled   OrderStatus = "FILLED"
	StatusRejected OrderStatus = "REJECTED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusReplaced OrderStatus = "REPLACED"
)

// Terminal reports whether the order will not transition further.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusCanceled, StatusExpired, StatusReplaced:
		return true
	}
	return false
}

// ExecutionLeg is one partial execution of an order.
type ExecutionLeg struct {
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// OrderRecord is the broker's view of an order, round-tripped on every poll.
type OrderRecord struct {
	OrderID        string
	Symbol         string
	Side           OrderSide
	Status         OrderStatus
	FilledQuantity decimal.Decimal
	Legs           []ExecutionLeg
	Cancelable     bool
}

// ExecutedValue sums quantity×price over all execution legs: the realized
// notional of the order so far.
func (o OrderRecord) ExecutedValue() decimal.Decimal {
	value := decimal.Zero
	for _, leg := range o.Legs {
		value = value.Add(leg.Quantity.Mul(leg.Price))
	}
	return value
}

// AccountSnapshot is the broker's live view of an account, used to seed the
// rebalance budget and refresh the day-trade ledger.
type AccountSnapshot struct {
	AccountID  string
	Cash       decimal.Decimal
	Positions  map[string]decimal.Decimal
	RoundTrips int // day trades executed today, per the broker
}
