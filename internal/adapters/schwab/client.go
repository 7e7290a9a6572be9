package schwab

// client.go — Schwab REST client shared by the trader and market-data
// surfaces. Every call is paced by a per-surface rate limiter and wrapped
// in a retry policy for transient failures (network, 5xx, 429).

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/time/rate"

	"github.com/jdamico/rebalancer/internal/ports"
)

const (
	defaultBaseURL = "https://api.schwabapi.com"

	// Trader endpoints are documented at 120 req/min; run at half.
	traderRatePerSec = 1
	// Market-data quotes/history share a 120 req/min budget.
	marketRatePerSec = 1
	// The dividend provider requires ≥200ms between calls.
	dividendInterval = 200 * time.Millisecond

	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

// Client is the authenticated Schwab API client. It implements
// ports.QuoteGateway, ports.HistoryGateway, ports.DividendGateway, and
// ports.AccountGateway.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  *tokenCache

	pipeline failsafe.Executor[*http.Response]

	traderLimiter   *rate.Limiter
	marketLimiter   *rate.Limiter
	dividendLimiter *rate.Limiter
}

// NewClient creates a client over the given secret store. An empty baseURL
// uses production.
func NewClient(baseURL string, secrets ports.SecretStore) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	retryPolicy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				// The abandoned attempt's body would otherwise pin a connection.
				resp.Body.Close()
				return true
			}
			return false
		}).
		WithBackoff(retryBaseDelay, retryMaxDelay).
		WithMaxRetries(maxRetries).
		Build()

	return &Client{
		http:            &http.Client{Timeout: 15 * time.Second},
		baseURL:         baseURL,
		tokens:          newTokenCache(secrets),
		pipeline:        failsafe.With[*http.Response](retryPolicy),
		traderLimiter:   rate.NewLimiter(traderRatePerSec, 2),
		marketLimiter:   rate.NewLimiter(marketRatePerSec, 2),
		dividendLimiter: rate.NewLimiter(rate.Every(dividendInterval), 1),
	}
}

// get performs an authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	resp, err := c.do(ctx, limiter, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("schwab: decode %s: %w", url, err)
	}
	return nil
}

// post performs an authenticated JSON POST in a single attempt and returns
// the raw response; callers needing headers (order Location) own closing the
// body. Order placement is not idempotent, so posts never retry.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("schwab: marshal body: %w", err)
	}
	return c.doOnce(ctx, limiter, http.MethodPost, url, payload)
}

// do issues an authenticated request through the limiter and the retry
// pipeline, turning any non-2xx status into an error. Only idempotent reads
// go through here; writes use doOnce.
func (c *Client) do(ctx context.Context, limiter *rate.Limiter, method, url string, body []byte) (*http.Response, error) {
	token, err := c.prepare(ctx, limiter)
	if err != nil {
		return nil, err
	}

	resp, err := c.pipeline.GetWithExecution(func(_ failsafe.Execution[*http.Response]) (*http.Response, error) {
		return c.send(ctx, method, url, token, body)
	})
	if err != nil {
		return nil, fmt.Errorf("schwab: %s %s: %w", method, url, err)
	}
	return checkStatus(method, url, resp)
}

// doOnce issues a single authenticated attempt with no retry. A flaky status
// after the broker accepted an order must not place it again.
func (c *Client) doOnce(ctx context.Context, limiter *rate.Limiter, method, url string, body []byte) (*http.Response, error) {
	token, err := c.prepare(ctx, limiter)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, url, token, body)
	if err != nil {
		return nil, fmt.Errorf("schwab: %s %s: %w", method, url, err)
	}
	return checkStatus(method, url, resp)
}

// prepare waits out the limiter and resolves the access token.
func (c *Client) prepare(ctx context.Context, limiter *rate.Limiter) (string, error) {
	if err := limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("schwab: rate limiter: %w", err)
	}
	return c.tokens.token(ctx, c.http, c.baseURL)
}

// send builds and issues one authenticated request.
func (c *Client) send(ctx context.Context, method, url, token string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func checkStatus(method, url string, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("schwab: %s %s: status %d: %s", method, url, resp.StatusCode, detail)
	}
	return resp, nil
}

// timeFormat renders a timestamp the way the order endpoints expect:
// RFC3339 truncated to milliseconds with a literal Z.
func timeFormat(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
