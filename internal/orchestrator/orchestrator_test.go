package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdamico/rebalancer/internal/allocation"
	"github.com/jdamico/rebalancer/internal/domain"
	"github.com/jdamico/rebalancer/internal/execution"
	"github.com/jdamico/rebalancer/internal/ledger"
)

// memStore is an in-memory PortfolioStore safe for concurrent workers.
type memStore struct {
	mu         sync.Mutex
	portfolios map[string]*domain.Portfolio
	stored     []string
}

func newMemStore(portfolios ...*domain.Portfolio) *memStore {
	store := &memStore{portfolios: make(map[string]*domain.Portfolio)}
	for _, portfolio := range portfolios {
		store.portfolios[portfolio.AccountID] = portfolio
	}
	return store
}

func (s *memStore) GetPortfolio(_ context.Context, accountID string) (*domain.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	portfolio, ok := s.portfolios[accountID]
	if !ok {
		return nil, domain.ErrNoPortfolio
	}
	return portfolio.Clone(), nil
}

func (s *memStore) GetAllPortfolios(_ context.Context) ([]*domain.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Portfolio, 0, len(s.portfolios))
	for _, portfolio := range s.portfolios {
		out = append(out, portfolio.Clone())
	}
	return out, nil
}

func (s *memStore) StorePortfolio(_ context.Context, portfolio *domain.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolios[portfolio.AccountID] = portfolio.Clone()
	s.stored = append(s.stored, portfolio.AccountID)
	return nil
}

func (s *memStore) Close() error { return nil }

// stubGateway serves one fixed ask and fills every market order at it. It
// doubles as quote and account gateway the way the brokerage client does.
type stubGateway struct {
	mu           sync.Mutex
	ask          decimal.Decimal
	failAccounts map[string]bool
	nextID       int
	orders       map[string]domain.OrderRecord
	roundTrips   int
}

func newStubGateway(ask int64) *stubGateway {
	return &stubGateway{
		ask:          decimal.NewFromInt(ask),
		failAccounts: make(map[string]bool),
		orders:       make(map[string]domain.OrderRecord),
	}
}

func (g *stubGateway) GetCurrentQuotes(_ context.Context, symbols []string) (map[string]domain.Quote, error) {
	quotes := make(map[string]domain.Quote, len(symbols))
	for _, symbol := range symbols {
		quotes[symbol] = domain.Quote{Bid: g.ask, Ask: g.ask, Last: g.ask, Realtime: true}
	}
	return quotes, nil
}

func (g *stubGateway) GetAccount(_ context.Context, accountID string) (domain.AccountSnapshot, error) {
	return domain.AccountSnapshot{AccountID: accountID, RoundTrips: g.roundTrips}, nil
}

func (g *stubGateway) GetOrders(context.Context, string, time.Time, time.Time) ([]domain.OrderRecord, error) {
	return nil, nil
}

func (g *stubGateway) GetOrder(_ context.Context, _ string, orderID string) (domain.OrderRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[orderID]
	if !ok {
		return domain.OrderRecord{}, fmt.Errorf("unknown order %s", orderID)
	}
	return order, nil
}

func (g *stubGateway) CancelOrder(context.Context, string, string) error { return nil }

func (g *stubGateway) PlaceMarketOrder(_ context.Context, accountID, symbol string, quantity decimal.Decimal, side domain.OrderSide) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAccounts[accountID] {
		return "", errors.New("order rejected by broker")
	}
	g.nextID++
	orderID := fmt.Sprintf("ord-%d", g.nextID)
	g.orders[orderID] = domain.OrderRecord{
		OrderID:        orderID,
		Symbol:         symbol,
		Side:           side,
		Status:         domain.StatusFilled,
		FilledQuantity: quantity,
		Legs:           []domain.ExecutionLeg{{Quantity: quantity, Price: g.ask}},
	}
	return orderID, nil
}

func (g *stubGateway) PlaceTrailingStopOrder(context.Context, string, string, decimal.Decimal, decimal.Decimal, domain.OrderSide) (string, error) {
	return "stop-1", nil
}

func cashPortfolio(accountID string, cash int64) *domain.Portfolio {
	portfolio := domain.NewPortfolio(accountID)
	portfolio.Cash = decimal.NewFromInt(cash)
	return portfolio
}

func newTestOrchestrator(store *memStore, gateway *stubGateway) *Orchestrator {
	executor := execution.New(gateway, execution.Config{
		PollInterval: time.Millisecond,
		FillTimeout:  time.Second,
	})
	reconciler := ledger.New(gateway, ledger.Config{})
	return New(store, gateway, gateway, allocation.NewAllocator(0), executor, reconciler, Config{Workers: 2})
}

func TestRunAll_RebalancesEveryAccount(t *testing.T) {
	store := newMemStore(cashPortfolio("aaa", 100), cashPortfolio("bbb", 250))
	gateway := newStubGateway(10)
	gateway.roundTrips = 1

	outcomes, err := newTestOrchestrator(store, gateway).RunAll(context.Background(), []string{"XXX"})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	now := time.Now().UTC()
	for _, outcome := range outcomes {
		require.NoError(t, outcome.Err)
		assert.NotEmpty(t, outcome.RunID)
	}

	aaa, err := store.GetPortfolio(context.Background(), "aaa")
	require.NoError(t, err)
	assert.True(t, aaa.Quantity("XXX").Equal(decimal.NewFromInt(10)), "100 buys ten shares at 10")
	assert.True(t, aaa.Cash.IsZero())
	assert.Equal(t, 1, aaa.RoundTrips[now.Format("2006-01-02")], "broker round trips recorded")

	bbb, err := store.GetPortfolio(context.Background(), "bbb")
	require.NoError(t, err)
	assert.True(t, bbb.Quantity("XXX").Equal(decimal.NewFromInt(25)))
	assert.True(t, bbb.Cash.IsZero())
}

func TestRunAll_FailureIsolated(t *testing.T) {
	store := newMemStore(cashPortfolio("good", 100), cashPortfolio("bad", 100))
	gateway := newStubGateway(10)
	gateway.failAccounts["bad"] = true

	outcomes, err := newTestOrchestrator(store, gateway).RunAll(context.Background(), []string{"XXX"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 accounts failed")
	assert.Contains(t, err.Error(), "account bad")
	require.Len(t, outcomes, 2)

	// The healthy sibling's result stays committed.
	good, getErr := store.GetPortfolio(context.Background(), "good")
	require.NoError(t, getErr)
	assert.True(t, good.Quantity("XXX").Equal(decimal.NewFromInt(10)))
	assert.NotContains(t, store.stored, "bad", "failed accounts are never persisted")
}

func TestRunAll_NoPortfolios(t *testing.T) {
	store := newMemStore()
	gateway := newStubGateway(10)

	_, err := newTestOrchestrator(store, gateway).RunAll(context.Background(), []string{"XXX"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no portfolios")
}

func TestRefreshRoundTrips_PersistsBrokerCount(t *testing.T) {
	store := newMemStore(cashPortfolio("aaa", 100))
	gateway := newStubGateway(10)
	gateway.roundTrips = 2

	require.NoError(t, newTestOrchestrator(store, gateway).RefreshRoundTrips(context.Background()))

	aaa, err := store.GetPortfolio(context.Background(), "aaa")
	require.NoError(t, err)
	assert.Equal(t, 2, aaa.RoundTrips[time.Now().UTC().Format("2006-01-02")])
}
