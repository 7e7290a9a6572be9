package schwab

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jdamico/rebalancer/internal/domain"
)

// GetPriceHistory returns one trading year of daily bars for a symbol.
func (c *Client) GetPriceHistory(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("periodType", "year")
	params.Set("period", "1")
	params.Set("frequencyType", "daily")

	var list candleList
	endpoint := fmt.Sprintf("%s/marketdata/v1/pricehistory?%s", c.baseURL, params.Encode())
	if err := c.get(ctx, c.marketLimiter, endpoint, &list); err != nil {
		return nil, fmt.Errorf("schwab.GetPriceHistory: %s: %w", symbol, err)
	}
	return toDomainBars(list), nil
}

// GetCurrentQuotes returns fresh quotes for the symbol set. An empty input
// returns an empty map without touching the API.
func (c *Client) GetCurrentQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}

	endpoint := fmt.Sprintf("%s/marketdata/v1/quotes?symbols=%s&fields=quote&indicative=false",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	var entries map[string]quoteEntry
	if err := c.get(ctx, c.marketLimiter, endpoint, &entries); err != nil {
		return nil, fmt.Errorf("schwab.GetCurrentQuotes: %w", err)
	}

	quotes := make(map[string]domain.Quote, len(entries))
	for symbol, entry := range entries {
		quotes[symbol] = toDomainQuote(symbol, entry)
	}
	return quotes, nil
}

// GetDividends returns the dividend events for a symbol. Calls are paced at
// one per 200ms to respect the provider's rate limit.
func (c *Client) GetDividends(ctx context.Context, symbol string) ([]domain.DividendEvent, error) {
	var list dividendList
	endpoint := fmt.Sprintf("%s/marketdata/v1/dividends?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	if err := c.get(ctx, c.dividendLimiter, endpoint, &list); err != nil {
		return nil, fmt.Errorf("schwab.GetDividends: %s: %w", symbol, err)
	}

	events, err := toDomainDividends(list)
	if err != nil {
		return nil, fmt.Errorf("schwab.GetDividends: %s: %w", symbol, err)
	}
	return events, nil
}
