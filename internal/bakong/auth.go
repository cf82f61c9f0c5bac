package bakong

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"obs/reversal-watcher/internal/logging"

	"github.com/golang-jwt/jwt/v5"
)

// refreshBuffer is how long before expiry a cached token is considered
// stale and refreshed.
const refreshBuffer = time.Minute

// TokenCache caches the JWT issued by the Bakong authentication API.
// It is an explicit, injectable object owned by the dependency graph:
// single writer under the mutex, expiry-aware refresh, invalidated by the
// caller on 401.
type TokenCache struct {
	authURL  string
	username string
	password string

	httpClient *http.Client
	log        logging.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time

	now func() time.Time
}

// NewTokenCache creates a token cache against the given authentication
// endpoint.
func NewTokenCache(authURL, username, password string, timeout time.Duration, log logging.Logger) *TokenCache {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TokenCache{
		authURL:    authURL,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		now:        time.Now,
	}
}

// GetToken returns a valid JWT, reusing the cached one while it has more
// than refreshBuffer of lifetime left and logging in otherwise. Tokens
// without a readable expiry are refreshed on every call.
func (t *TokenCache) GetToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && !t.expiry.IsZero() && t.now().Before(t.expiry.Add(-refreshBuffer)) {
		return t.token, nil
	}

	t.log.Info("Obtaining new JWT token")
	token, expiry, err := t.login(ctx)
	if err != nil {
		return "", err
	}
	t.token = token
	t.expiry = expiry
	return token, nil
}

// Invalidate drops the cached token. Call on 401 responses; the next
// GetToken logs in again.
func (t *TokenCache) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.expiry = time.Time{}
	t.log.Info("Token invalidated, will refresh on next request")
}

func (t *TokenCache) login(ctx context.Context) (string, time.Time, error) {
	payload, err := json.Marshal(map[string]string{
		"username": t.username,
		"password": t.password,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.authURL,
		bytes.NewReader(payload))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("authentication request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read authentication response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", time.Time{}, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var decoded struct {
		Data struct {
			IDToken string `json:"id_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to decode authentication response: %w", err)
	}
	if decoded.Data.IDToken == "" {
		return "", time.Time{}, fmt.Errorf("no id_token in authentication response")
	}

	expiry := t.tokenExpiry(decoded.Data.IDToken)
	if expiry.IsZero() {
		t.log.Info("JWT token obtained (no readable expiry)")
	} else {
		t.log.Info("JWT token obtained",
			logging.Field{Key: "expires", Value: expiry.Format(time.RFC3339)})
	}
	return decoded.Data.IDToken, expiry, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// token is opaque credential material here, not something we authorize by.
func (t *TokenCache) tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
