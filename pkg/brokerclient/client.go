// Package brokerclient is the brokerage REST client: access-token grant,
// minute chart history, market orders, volume-surge ranking, and the balance
// snapshot. All calls share one rate limiter so the
// configured inter-call spacing holds across the whole process.
package brokerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/orb-momentum-bot/pkg/xerrors"
	"golang.org/x/time/rate"
)

// callSpacing is the minimum gap between broker RPCs. The provider throttles
// at roughly one call per second; 1.1s keeps a margin.
const callSpacing = 1100 * time.Millisecond

// Client talks to the brokerage REST API. Construct with New.
type Client struct {
	baseURL   string
	appKey    string
	appSecret string
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	tokens    *tokenManager
}

// New creates a Client for the given environment. tokenCachePath is where the
// access token and its expiry are persisted across restarts; pass "" to keep
// the token in memory only.
func New(baseURL, appKey, appSecret, tokenCachePath string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = 15 * time.Second

	c := &Client{
		baseURL:   baseURL,
		appKey:    appKey,
		appSecret: appSecret,
		http:      rc,
		limiter:   rate.NewLimiter(rate.Every(callSpacing), 1),
	}
	c.tokens = newTokenManager(c, tokenCachePath)
	return c
}

// post issues one rate-limited POST to path with the JSON body, decoding the
// response into out. apiID is sent as the per-endpoint header the broker uses
// to route requests. authed controls whether the bearer token is attached
// (the token grant itself must not be).
func (c *Client) post(ctx context.Context, path, apiID string, body, out any, authed bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	if apiID != "" {
		req.Header.Set("api-id", apiID)
	}
	if authed {
		token, err := c.tokens.get(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", path, xerrors.TransportError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w: %v", path, xerrors.TransportError, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, xerrors.AuthError)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", path, xerrors.RateLimitError)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: status %d: %w", path, resp.StatusCode, xerrors.RetryableRpcError)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: status %d (%s): %w", path, resp.StatusCode, truncate(raw, 200), xerrors.BrokerBusinessError)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode response: %w: %v", path, xerrors.DataQualityError, err)
		}
	}
	return nil
}

// checkReturnCode validates the broker's in-body return code; 0 (or "0" or
// "0000") means accepted, anything else is a business rejection.
func checkReturnCode(path string, code any, msg string) error {
	if isAcceptedReturnCode(code) {
		return nil
	}
	return fmt.Errorf("%s: return_code %v (%s): %w", path, code, msg, xerrors.BrokerBusinessError)
}

func isAcceptedReturnCode(v any) bool {
	switch n := v.(type) {
	case nil:
		return false
	case float64:
		return n == 0
	case int:
		return n == 0
	case string:
		return n == "0" || n == "0000"
	default:
		return false
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
