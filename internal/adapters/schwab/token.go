package schwab

// token.go — OAuth2 token cache. The access token, refresh token, and
// expiry live on one object guarded by a single-writer lock; the rotated
// refresh token is written back to the secret store on every refresh.

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jdamico/rebalancer/internal/ports"
)

const (
	secretAppKey       = "/algotrading/schwab/appkey"
	secretAppSecret    = "/algotrading/schwab/appsecret"
	secretRefreshToken = "/algotrading/schwab/refreshtoken"

	// Refresh a minute before the broker-reported expiry.
	expirySlack = 60 * time.Second
)

// tokenCache holds the current access/refresh token pair and its expiry.
type tokenCache struct {
	secrets ports.SecretStore

	mu           sync.Mutex
	appKey       string
	appSecret    string
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newTokenCache(secrets ports.SecretStore) *tokenCache {
	return &tokenCache{secrets: secrets}
}

// tokenResponse is the oauth token endpoint's reply.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// token returns a valid access token, refreshing under the lock when
// expired. Concurrent account workers share one refresh.
func (t *tokenCache) token(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.accessToken != "" && time.Now().Before(t.expiresAt) {
		return t.accessToken, nil
	}

	if err := t.loadCredentials(ctx); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", t.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("schwab: token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(t.appKey + ":" + t.appSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("schwab: token refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("schwab: token refresh: status %d", resp.StatusCode)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", fmt.Errorf("schwab: decode token response: %w", err)
	}

	t.accessToken = tokens.AccessToken
	t.refreshToken = tokens.RefreshToken
	t.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - expirySlack)

	// The broker rotates the refresh token; persist it or the next process
	// start cannot authenticate.
	if err := t.secrets.PutSecret(ctx, secretRefreshToken, tokens.RefreshToken); err != nil {
		return "", fmt.Errorf("schwab: persist rotated refresh token: %w", err)
	}

	return t.accessToken, nil
}

// loadCredentials pulls the app key/secret and the stored refresh token on
// first use; they are cached for the process lifetime.
func (t *tokenCache) loadCredentials(ctx context.Context) error {
	if t.appKey == "" {
		key, err := t.secrets.GetSecret(ctx, secretAppKey)
		if err != nil {
			return fmt.Errorf("schwab: load app key: %w", err)
		}
		t.appKey = key
	}
	if t.appSecret == "" {
		secret, err := t.secrets.GetSecret(ctx, secretAppSecret)
		if err != nil {
			return fmt.Errorf("schwab: load app secret: %w", err)
		}
		t.appSecret = secret
	}
	if t.refreshToken == "" {
		token, err := t.secrets.GetSecret(ctx, secretRefreshToken)
		if err != nil {
			return fmt.Errorf("schwab: load refresh token: %w", err)
		}
		t.refreshToken = token
	}
	return nil
}
