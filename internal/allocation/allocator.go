package allocation

// allocator.go — converts a candidate symbol list and a cash budget into
// integer share targets. Even split first, then a bounded backtracking
// search spends the residual down as far as whole shares allow.

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
)

// DefaultMaxResidualBranches caps the residual search. The search is
// exponential in symbol count on pathological inputs (many cheap symbols,
// large residual); on cap hit the best allocation found so far wins.
const DefaultMaxResidualBranches = 20000

// Allocator computes target positions under a spend-as-much-as-possible
// without-overspending constraint.
type Allocator struct {
	maxBranches int
}

// NewAllocator creates an allocator with the given residual-search branch
// cap. Zero or negative means DefaultMaxResidualBranches.
func NewAllocator(maxBranches int) *Allocator {
	if maxBranches <= 0 {
		maxBranches = DefaultMaxResidualBranches
	}
	return &Allocator{maxBranches: maxBranches}
}

// DetermineDesiredPositions splits budget evenly across symbols, buys whole
// shares at ask, then allocates the leftover by backtracking search. The
// returned map may contain zero-quantity entries; callers prune before
// diffing. sum(quantity×ask) never exceeds budget.
func (a *Allocator) DetermineDesiredPositions(symbols []string, quotes map[string]domain.Quote, budget decimal.Decimal) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	asks := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		ask, err := askPrice(quotes, symbol)
		if err != nil {
			return nil, fmt.Errorf("allocation.DetermineDesiredPositions: %w", err)
		}
		asks[symbol] = ask
	}

	perSymbol := budget.Div(decimal.NewFromInt(int64(len(symbols))))

	desired := make(map[string]decimal.Decimal, len(symbols))
	spent := decimal.Zero
	for _, symbol := range symbols {
		quantity := perSymbol.Div(asks[symbol]).Floor()
		desired[symbol] = quantity
		spent = spent.Add(asks[symbol].Mul(quantity))
	}

	slog.Debug("initial allocation", "positions", formatPositions(desired), "spent", spent)

	residual := budget.Sub(spent)
	desired, leftover := a.allocateResidual(symbols, asks, desired, residual)

	slog.Debug("residual allocated", "positions", formatPositions(desired), "leftover", leftover)

	return desired, nil
}

// searchNode is one immutable allocation snapshot in the residual search.
type searchNode struct {
	positions map[string]decimal.Decimal
	remaining decimal.Decimal
}

// allocateResidual explores adding single shares while a symbol's ask still
// fits the remaining cash, keeping the branch with minimal leftover. An
// explicit LIFO stack over copy-on-write snapshots replaces the source's
// unbounded recursion; exploration stops at the branch cap.
func (a *Allocator) allocateResidual(symbols []string, asks, initial map[string]decimal.Decimal, residual decimal.Decimal) (map[string]decimal.Decimal, decimal.Decimal) {
	best := searchNode{positions: initial, remaining: residual}
	stack := []searchNode{best}

	branches := 0
	for len(stack) > 0 && branches < a.maxBranches {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, symbol := range symbols {
			ask := asks[symbol]
			if ask.GreaterThan(node.remaining) {
				continue
			}
			branches++

			next := searchNode{
				positions: clonePositions(node.positions),
				remaining: node.remaining.Sub(ask),
			}
			next.positions[symbol] = next.positions[symbol].Add(decimal.NewFromInt(1))

			if next.remaining.LessThan(best.remaining) {
				best = next
			}
			stack = append(stack, next)

			if branches >= a.maxBranches {
				slog.Warn("residual search branch cap reached", "branches", branches)
				break
			}
		}
	}

	return best.positions, best.remaining
}

// PruneZero drops zero-quantity entries; target maps must be pruned before
// they reach the diff step.
func PruneZero(positions map[string]decimal.Decimal) map[string]decimal.Decimal {
	pruned := make(map[string]decimal.Decimal, len(positions))
	for symbol, quantity := range positions {
		if quantity.IsZero() {
			continue
		}
		pruned[symbol] = quantity
	}
	return pruned
}

// askPrice extracts the ask for a symbol, warning on stale quotes the way
// the bid/ask lookups always have.
func askPrice(quotes map[string]domain.Quote, symbol string) (decimal.Decimal, error) {
	quote, ok := quotes[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s not in fetched quotes", symbol)
	}
	if !quote.Realtime {
		slog.Warn("not a realtime quote", "symbol", symbol)
	}
	if !quote.Ask.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive ask for %s", symbol)
	}
	return quote.Ask, nil
}

func clonePositions(positions map[string]decimal.Decimal) map[string]decimal.Decimal {
	cp := make(map[string]decimal.Decimal, len(positions))
	for symbol, quantity := range positions {
		cp[symbol] = quantity
	}
	return cp
}

func formatPositions(positions map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(positions))
	for symbol, quantity := range positions {
		out[symbol] = quantity.String()
	}
	return out
}
