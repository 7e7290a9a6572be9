package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestDeterminePositionChanges_Disjoint(t *testing.T) {
	current := map[string]decimal.Decimal{
		"AAA": qty(10), // sell entirely
		"BBB": qty(5),  // top up
		"CCC": qty(8),  // trim
	}
	desired := map[string]decimal.Decimal{
		"BBB": qty(9),
		"CCC": qty(3),
		"DDD": qty(4), // new entry
	}

	sell, buy := DeterminePositionChanges(current, desired, false)

	assert.True(t, sell["AAA"].Equal(qty(10)))
	assert.True(t, sell["CCC"].Equal(qty(5)))
	assert.True(t, buy["BBB"].Equal(qty(4)))
	assert.True(t, buy["DDD"].Equal(qty(4)))
	assert.Len(t, sell, 2)
	assert.Len(t, buy, 2)
	for symbol := range sell {
		_, also := buy[symbol]
		assert.False(t, also, "%s in both sell and buy", symbol)
	}
}

func TestDeterminePositionChanges_EqualQuantitiesNoOp(t *testing.T) {
	current := map[string]decimal.Decimal{"AAA": qty(7)}
	desired := map[string]decimal.Decimal{"AAA": qty(7)}

	sell, buy := DeterminePositionChanges(current, desired, false)

	assert.Empty(t, sell)
	assert.Empty(t, buy)
}

func TestDeterminePositionChanges_ShortcutSkipsQuantityMismatch(t *testing.T) {
	current := map[string]decimal.Decimal{"AAA": qty(3), "BBB": qty(1)}
	desired := map[string]decimal.Decimal{"AAA": qty(9), "BBB": qty(2)}

	sell, buy := DeterminePositionChanges(current, desired, true)
	assert.Empty(t, sell, "matching symbol sets short-circuit the diff")
	assert.Empty(t, buy)

	sell, buy = DeterminePositionChanges(current, desired, false)
	assert.Empty(t, sell)
	assert.True(t, buy["AAA"].Equal(qty(6)))
	assert.True(t, buy["BBB"].Equal(qty(1)))
}

func TestDeterminePositionChanges_ZeroCurrentIgnoredByShortcut(t *testing.T) {
	// A zero-quantity holdover must not break the symbol-set comparison.
	current := map[string]decimal.Decimal{"AAA": qty(3), "GONE": decimal.Zero}
	desired := map[string]decimal.Decimal{"AAA": qty(3)}

	sell, buy := DeterminePositionChanges(current, desired, true)

	assert.Empty(t, sell)
	assert.Empty(t, buy)
}

func TestDeterminePositionChanges_NoZeroEntries(t *testing.T) {
	current := map[string]decimal.Decimal{"AAA": decimal.Zero}
	desired := map[string]decimal.Decimal{"BBB": decimal.Zero}

	sell, buy := DeterminePositionChanges(current, desired, false)

	assert.Empty(t, sell)
	assert.Empty(t, buy)
}
