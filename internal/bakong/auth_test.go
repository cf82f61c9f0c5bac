package bakong

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"obs/reversal-watcher/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeJWT builds an unsigned JWT with the given expiry. The cache never
// verifies signatures, it only reads the exp claim.
func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]interface{}{"exp": exp.Unix()})
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(claims)
	return header + "." + payload + ".signature"
}

func authServer(t *testing.T, logins *atomic.Int32, token func() string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "user", creds["username"])
		assert.Equal(t, "pass", creds["password"])

		fmt.Fprintf(w, `{"data":{"id_token":%q}}`, token())
	}))
}

func TestGetToken_CachesUntilNearExpiry(t *testing.T) {
	var logins atomic.Int32
	token := makeJWT(t, time.Now().Add(time.Hour))
	srv := authServer(t, &logins, func() string { return token })
	defer srv.Close()

	cache := NewTokenCache(srv.URL, "user", "pass", 0, &logging.MockLogger{})

	first, err := cache.GetToken(context.Background())
	require.NoError(t, err)
	second, err := cache.GetToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, token, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), logins.Load(), "cached token is reused")
}

func TestGetToken_RefreshesInsideBuffer(t *testing.T) {
	var logins atomic.Int32
	// Expiry within the refresh buffer, so every call logs in again.
	token := makeJWT(t, time.Now().Add(30*time.Second))
	srv := authServer(t, &logins, func() string { return token })
	defer srv.Close()

	cache := NewTokenCache(srv.URL, "user", "pass", 0, &logging.MockLogger{})

	_, err := cache.GetToken(context.Background())
	require.NoError(t, err)
	_, err = cache.GetToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), logins.Load())
}

func TestGetToken_InvalidateForcesRefresh(t *testing.T) {
	var logins atomic.Int32
	token := makeJWT(t, time.Now().Add(time.Hour))
	srv := authServer(t, &logins, func() string { return token })
	defer srv.Close()

	cache := NewTokenCache(srv.URL, "user", "pass", 0, &logging.MockLogger{})

	_, err := cache.GetToken(context.Background())
	require.NoError(t, err)
	cache.Invalidate()
	_, err = cache.GetToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), logins.Load())
}

func TestGetToken_UnreadableExpiryRefreshesEveryCall(t *testing.T) {
	var logins atomic.Int32
	srv := authServer(t, &logins, func() string { return "opaque-token" })
	defer srv.Close()

	cache := NewTokenCache(srv.URL, "user", "pass", 0, &logging.MockLogger{})

	_, err := cache.GetToken(context.Background())
	require.NoError(t, err)
	_, err = cache.GetToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), logins.Load())
}

func TestGetToken_LoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad credentials"))
	}))
	defer srv.Close()

	cache := NewTokenCache(srv.URL, "user", "pass", 0, &logging.MockLogger{})

	_, err := cache.GetToken(context.Background())
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestGetToken_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	cache := NewTokenCache(srv.URL, "user", "pass", 0, &logging.MockLogger{})

	_, err := cache.GetToken(context.Background())
	assert.ErrorContains(t, err, "no id_token")
}
