package allocation

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// DeterminePositionChanges compares current holdings against a desired
// target and returns disjoint sell/buy maps, neither ever holding a zero
// quantity.
//
// When skipWhenSymbolsMatch is set and the non-zero current symbol set
// equals the desired symbol set, both maps come back empty without
// comparing quantities. Matching symbols in mismatched sizes therefore
// skip rebalancing entirely; that shortcut is the documented historical
// behavior and is kept behind the flag rather than silently fixed.
func DeterminePositionChanges(current, desired map[string]decimal.Decimal, skipWhenSymbolsMatch bool) (sell, buy map[string]decimal.Decimal) {
	sell = make(map[string]decimal.Decimal)
	buy = make(map[string]decimal.Decimal)

	if skipWhenSymbolsMatch && symbolSetsEqual(current, desired) {
		slog.Debug("position symbols already match desired set, skipping diff")
		return sell, buy
	}

	union := make(map[string]struct{}, len(current)+len(desired))
	for symbol := range current {
		union[symbol] = struct{}{}
	}
	for symbol := range desired {
		union[symbol] = struct{}{}
	}

	for symbol := range union {
		currentQty, held := current[symbol]
		desiredQty, wanted := desired[symbol]

		switch {
		case !wanted:
			if !currentQty.IsZero() {
				sell[symbol] = currentQty
			}
		case !held:
			if !desiredQty.IsZero() {
				buy[symbol] = desiredQty
			}
		default:
			delta := desiredQty.Sub(currentQty)
			if delta.IsPositive() {
				buy[symbol] = delta
			} else if delta.IsNegative() {
				sell[symbol] = delta.Neg()
			}
		}
	}

	return sell, buy
}

// symbolSetsEqual reports whether the non-zero current symbols are exactly
// the desired symbols. Quantities are deliberately not compared.
func symbolSetsEqual(current, desired map[string]decimal.Decimal) bool {
	held := 0
	for symbol, quantity := range current {
		if quantity.IsZero() {
			continue
		}
		held++
		if _, ok := desired[symbol]; !ok {
			return false
		}
	}
	return held == len(desired)
}
