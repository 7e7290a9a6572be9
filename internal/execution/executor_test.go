package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdamico/rebalancer/internal/domain"
)

// fakeBroker records placements and serves scripted order states. Each
// GetOrder call pops the next state for that order; the last state repeats.
type fakeBroker struct {
	placed     []string // "SELL AAA x10" in submission order
	placeErr   error
	nextID     int
	polls      map[string]int
	states     map[string][]domain.OrderStatus
	fillAmount decimal.Decimal
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		polls:  make(map[string]int),
		states: make(map[string][]domain.OrderStatus),
	}
}

func (f *fakeBroker) GetAccount(context.Context, string) (domain.AccountSnapshot, error) {
	return domain.AccountSnapshot{}, errors.New("not implemented")
}

func (f *fakeBroker) GetOrders(context.Context, string, time.Time, time.Time) ([]domain.OrderRecord, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBroker) CancelOrder(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (f *fakeBroker) PlaceTrailingStopOrder(context.Context, string, string, decimal.Decimal, decimal.Decimal, domain.OrderSide) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeBroker) PlaceMarketOrder(_ context.Context, _ string, symbol string, quantity decimal.Decimal, side domain.OrderSide) (string, error) {
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed = append(f.placed, fmt.Sprintf("%s %s x%s", side, symbol, quantity))
	f.nextID++
	orderID := fmt.Sprintf("ord-%d", f.nextID)
	if _, scripted := f.states[symbol]; scripted {
		f.states[orderID] = f.states[symbol]
	} else {
		f.states[orderID] = []domain.OrderStatus{domain.StatusFilled}
	}
	return orderID, nil
}

func (f *fakeBroker) GetOrder(ctx context.Context, _ string, orderID string) (domain.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderRecord{}, err
	}
	script, ok := f.states[orderID]
	if !ok {
		return domain.OrderRecord{}, fmt.Errorf("unknown order %s", orderID)
	}
	idx := f.polls[orderID]
	if idx >= len(script) {
		idx = len(script) - 1
	}
	f.polls[orderID]++
	return domain.OrderRecord{
		OrderID:        orderID,
		Status:         script[idx],
		FilledQuantity: f.fillAmount,
	}, nil
}

func fastConfig() Config {
	return Config{PollInterval: time.Millisecond, FillTimeout: 50 * time.Millisecond}
}

func TestExecuteChanges_SellsConfirmedBeforeBuys(t *testing.T) {
	broker := newFakeBroker()
	broker.states["AAA"] = []domain.OrderStatus{domain.StatusWorking, domain.StatusFilled}

	sell := map[string]decimal.Decimal{"AAA": decimal.NewFromInt(10)}
	buy := map[string]decimal.Decimal{"BBB": decimal.NewFromInt(5)}

	confirmations, err := New(broker, fastConfig()).ExecuteChanges(context.Background(), "acct", sell, buy)
	require.NoError(t, err)

	require.Equal(t, []string{"SELL AAA x10", "BUY BBB x5"}, broker.placed)
	require.Len(t, confirmations, 2)
	assert.Equal(t, "AAA", confirmations[0].Symbol)
	assert.Equal(t, domain.StatusFilled, confirmations[0].Order.Status)
	assert.Equal(t, "BBB", confirmations[1].Symbol)
	assert.GreaterOrEqual(t, broker.polls["ord-1"], 2, "the working sell needed a second poll")
}

func TestExecuteChanges_ZeroQuantitySkipped(t *testing.T) {
	broker := newFakeBroker()

	buy := map[string]decimal.Decimal{
		"AAA": decimal.NewFromInt(3),
		"BBB": decimal.Zero,
	}

	_, err := New(broker, fastConfig()).ExecuteChanges(context.Background(), "acct", nil, buy)
	require.NoError(t, err)
	assert.Equal(t, []string{"BUY AAA x3"}, broker.placed)
}

func TestExecuteChanges_PlacementFailureFatal(t *testing.T) {
	broker := newFakeBroker()
	broker.placeErr = errors.New("boom")

	sell := map[string]decimal.Decimal{"AAA": decimal.NewFromInt(1)}

	_, err := New(broker, fastConfig()).ExecuteChanges(context.Background(), "acct", sell, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestExecuteChanges_RejectedStillConfirms(t *testing.T) {
	broker := newFakeBroker()
	broker.states["AAA"] = []domain.OrderStatus{domain.StatusRejected}

	sell := map[string]decimal.Decimal{"AAA": decimal.NewFromInt(2)}

	confirmations, err := New(broker, fastConfig()).ExecuteChanges(context.Background(), "acct", sell, nil)
	require.NoError(t, err)
	require.Len(t, confirmations, 1)
	assert.Equal(t, domain.StatusRejected, confirmations[0].Order.Status)
}

func TestAwaitFill_TimesOut(t *testing.T) {
	broker := newFakeBroker()
	broker.states["ord-stuck"] = []domain.OrderStatus{domain.StatusWorking}

	executor := New(broker, Config{PollInterval: time.Millisecond, FillTimeout: 10 * time.Millisecond})
	_, err := executor.AwaitFill(context.Background(), "acct", "ord-stuck")
	assert.ErrorIs(t, err, ErrFillTimeout)
}

func TestAwaitFill_ContextCanceled(t *testing.T) {
	broker := newFakeBroker()
	broker.states["ord-stuck"] = []domain.OrderStatus{domain.StatusWorking}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := New(broker, Config{PollInterval: time.Millisecond, FillTimeout: time.Minute})
	_, err := executor.AwaitFill(ctx, "acct", "ord-stuck")
	assert.ErrorIs(t, err, context.Canceled)
}
