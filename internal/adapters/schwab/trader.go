package schwab

// trader.go — account and order endpoints. Order IDs come back in the
// Location header of the placement response, not the body.

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jdamico/rebalancer/internal/domain"
)

// GetAccount returns the broker's live snapshot of an account, positions
// included.
func (c *Client) GetAccount(ctx context.Context, accountID string) (domain.AccountSnapshot, error) {
	endpoint := fmt.Sprintf("%s/trader/v1/accounts/%s?fields=positions", c.baseURL, accountID)

	var resp accountResponse
	if err := c.get(ctx, c.traderLimiter, endpoint, &resp); err != nil {
		return domain.AccountSnapshot{}, fmt.Errorf("schwab.GetAccount: %w", err)
	}
	return toDomainSnapshot(accountID, resp), nil
}

// GetOrders returns orders entered inside the window.
func (c *Client) GetOrders(ctx context.Context, accountID string, from, to time.Time) ([]domain.OrderRecord, error) {
	endpoint := fmt.Sprintf("%s/trader/v1/accounts/%s/orders?fromEnteredTime=%s&toEnteredTime=%s",
		c.baseURL, accountID, url.QueryEscape(timeFormat(from)), url.QueryEscape(timeFormat(to)))

	var resp []orderResponse
	if err := c.get(ctx, c.traderLimiter, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("schwab.GetOrders: %w", err)
	}

	orders := make([]domain.OrderRecord, 0, len(resp))
	for _, order := range resp {
		orders = append(orders, toDomainOrder(order))
	}
	return orders, nil
}

// GetOrder returns the current state of one order.
func (c *Client) GetOrder(ctx context.Context, accountID, orderID string) (domain.OrderRecord, error) {
	endpoint := fmt.Sprintf("%s/trader/v1/accounts/%s/orders/%s", c.baseURL, accountID, orderID)

	var resp orderResponse
	if err := c.get(ctx, c.traderLimiter, endpoint, &resp); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("schwab.GetOrder: %w", err)
	}
	return toDomainOrder(resp), nil
}

// CancelOrder cancels a working order. Attempted once, never retried.
func (c *Client) CancelOrder(ctx context.Context, accountID, orderID string) error {
	endpoint := fmt.Sprintf("%s/trader/v1/accounts/%s/orders/%s", c.baseURL, accountID, orderID)

	resp, err := c.doOnce(ctx, c.traderLimiter, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("schwab.CancelOrder: %w", err)
	}
	resp.Body.Close()
	return nil
}

// PlaceMarketOrder submits a whole-share DAY market order and returns the
// broker-assigned order ID.
func (c *Client) PlaceMarketOrder(ctx context.Context, accountID, symbol string, quantity decimal.Decimal, side domain.OrderSide) (string, error) {
	payload := orderPayload{
		Session:              "NORMAL",
		Duration:             "DAY",
		OrderType:            "MARKET",
		ComplexOrderStrategy: "NONE",
		Quantity:             quantity,
		OrderLegCollection: []orderPayloadLeg{{
			OrderLegType:   "EQUITY",
			LegID:          1,
			Instrument:     orderInstrument{AssetType: "EQUITY", Symbol: symbol},
			Instruction:    string(side),
			PositionEffect: "CLOSING",
			Quantity:       quantity,
		}},
		OrderStrategyType: "SINGLE",
		TaxLotMethod:      "LOSS_HARVESTER",
	}

	return c.placeOrder(ctx, accountID, payload)
}

// PlaceTrailingStopOrder submits a trailing-stop order with the trail in
// percent off the bid.
func (c *Client) PlaceTrailingStopOrder(ctx context.Context, accountID, symbol string, quantity decimal.Decimal, trailPercent decimal.Decimal, side domain.OrderSide) (string, error) {
	payload := orderPayload{
		Session:              "NORMAL",
		Duration:             "DAY",
		OrderType:            "TRAILING_STOP",
		ComplexOrderStrategy: "NONE",
		Quantity:             quantity,
		StopPriceLinkBasis:   "BID",
		StopPriceLinkType:    "PERCENT",
		StopPriceOffset:      trailPercent,
		OrderLegCollection: []orderPayloadLeg{{
			OrderLegType:   "EQUITY",
			LegID:          1,
			Instrument:     orderInstrument{AssetType: "EQUITY", Symbol: symbol},
			Instruction:    string(side),
			PositionEffect: "CLOSING",
			Quantity:       quantity,
		}},
		OrderStrategyType: "SINGLE",
	}

	return c.placeOrder(ctx, accountID, payload)
}

// placeOrder posts the payload and parses the order ID out of the Location
// header.
func (c *Client) placeOrder(ctx context.Context, accountID string, payload orderPayload) (string, error) {
	endpoint := fmt.Sprintf("%s/trader/v1/accounts/%s/orders", c.baseURL, accountID)

	resp, err := c.post(ctx, c.traderLimiter, endpoint, payload)
	if err != nil {
		return "", fmt.Errorf("schwab.placeOrder: %w", err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("schwab.placeOrder: no Location header in response")
	}
	parts := strings.Split(location, "/")
	return parts[len(parts)-1], nil
}
