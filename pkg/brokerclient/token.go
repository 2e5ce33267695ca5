package brokerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/orb-momentum-bot/pkg/xerrors"
	"github.com/relvacode/iso8601"
)

// tokenRefreshMargin is how long before expiry a cached token is considered
// stale and proactively refreshed.
const tokenRefreshMargin = 60 * time.Second

// cachedToken is the on-disk shape of the persisted access token.
type cachedToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"` // ISO-8601
}

type tokenManager struct {
	client    *Client
	cachePath string

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenManager(c *Client, cachePath string) *tokenManager {
	tm := &tokenManager{client: c, cachePath: cachePath}
	tm.loadCache()
	return tm
}

// get returns a valid access token, granting a fresh one when the cached
// token is missing or within the refresh margin of its expiry.
func (tm *tokenManager) get(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != "" && time.Until(tm.expires) > tokenRefreshMargin {
		return tm.token, nil
	}
	if err := tm.grantLocked(ctx); err != nil {
		return "", err
	}
	return tm.token, nil
}

// grantLocked performs the client-credentials token grant. Callers hold tm.mu.
func (tm *tokenManager) grantLocked(ctx context.Context) error {
	body := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     tm.client.appKey,
		"secretkey":  tm.client.appSecret,
	}
	var resp struct {
		ReturnCode any    `json:"return_code"`
		ReturnMsg  string `json:"return_msg"`
		Token      string `json:"token"`
		ExpiresDt  string `json:"expires_dt"`
	}
	if err := tm.client.post(ctx, "/oauth2/token", "", body, &resp, false); err != nil {
		return fmt.Errorf("token grant: %w", err)
	}
	if err := checkReturnCode("/oauth2/token", resp.ReturnCode, resp.ReturnMsg); err != nil {
		return fmt.Errorf("token grant rejected: %w: %v", xerrors.AuthError, err)
	}
	if resp.Token == "" {
		return fmt.Errorf("token grant returned empty token: %w", xerrors.AuthError)
	}

	expires, err := iso8601.ParseString(resp.ExpiresDt)
	if err != nil {
		// Some environments return a bare "YYYYMMDDHHMMSS"; fall back to that
		// before giving up on a parseable expiry.
		expires, err = time.ParseInLocation("20060102150405", resp.ExpiresDt, time.Local)
		if err != nil {
			return fmt.Errorf("token grant: bad expiry %q: %w", resp.ExpiresDt, xerrors.DataQualityError)
		}
	}

	tm.token = resp.Token
	tm.expires = expires
	tm.saveCache()
	return nil
}

func (tm *tokenManager) loadCache() {
	if tm.cachePath == "" {
		return
	}
	raw, err := os.ReadFile(tm.cachePath)
	if err != nil {
		return
	}
	var ct cachedToken
	if err := json.Unmarshal(raw, &ct); err != nil {
		return
	}
	expires, err := iso8601.ParseString(ct.ExpiresAt)
	if err != nil || time.Until(expires) <= tokenRefreshMargin {
		return
	}
	tm.token = ct.Token
	tm.expires = expires
}

func (tm *tokenManager) saveCache() {
	if tm.cachePath == "" {
		return
	}
	raw, err := json.Marshal(cachedToken{
		Token:     tm.token,
		ExpiresAt: tm.expires.Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	_ = os.WriteFile(tm.cachePath, raw, 0o600)
}

// AccessToken exposes the current token for the websocket transport's LOGIN
// frame, granting one first if needed.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.tokens.get(ctx)
}
