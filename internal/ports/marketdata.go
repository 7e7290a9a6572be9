package ports

import (
	"context"

	"github.com/jdamico/rebalancer/internal/domain"
)

// QuoteGateway supplies spot quotes for a symbol set.
type QuoteGateway interface {
	// GetCurrentQuotes returns fresh quotes keyed by symbol.
	// An empty symbol list returns an empty map without a remote call.
	GetCurrentQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}

// HistoryGateway supplies historical daily bars for a symbol.
type HistoryGateway interface {
	// GetPriceHistory returns roughly one trading year of daily bars.
	// Order is unspecified; consumers sort as needed.
	GetPriceHistory(ctx context.Context, symbol string) ([]domain.PriceBar, error)
}

// DividendGateway supplies dividend events for a symbol. The provider is
// rate limited; implementations pace calls at 200ms or slower.
type DividendGateway interface {
	GetDividends(ctx context.Context, symbol string) ([]domain.DividendEvent, error)
}
