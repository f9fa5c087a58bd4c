package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/osdugate/errors"
)

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "osdugate",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func tokenServer(t *testing.T, requests *atomic.Int32, respond func() (string, int64)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))

		token, expiresIn := respond()
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
}

func TestStaticSource(t *testing.T) {
	tok, err := StaticSource("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticSource("").Token(context.Background())
	assert.ErrorIs(t, err, errors.ErrTokenUnavailable)
}

func TestTokenCachedUntilRefreshWindow(t *testing.T) {
	var requests atomic.Int32
	jwtToken := signedJWT(t, time.Now().Add(time.Hour))
	srv := tokenServer(t, &requests, func() (string, int64) { return jwtToken, 3600 })
	defer srv.Close()

	src, err := NewCognitoSource(srv.URL, "client-id", "client-secret")
	require.NoError(t, err)

	ctx := context.Background()
	tok1, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, jwtToken, tok1)

	tok2, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int32(1), requests.Load(), "second call should hit the cache")
}

func TestTokenRefreshedInsideWindow(t *testing.T) {
	var requests atomic.Int32
	srv := tokenServer(t, &requests, func() (string, int64) {
		return signedJWT(t, time.Now().Add(time.Hour)), 3600
	})
	defer srv.Close()

	src, err := NewCognitoSource(srv.URL, "client-id", "client-secret",
		WithRefreshAhead(time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = src.Token(ctx)
	require.NoError(t, err)

	// Move the clock to 30s before expiry, inside the refresh window
	src.mu.Lock()
	expires := src.expires
	src.mu.Unlock()
	src.now = func() time.Time { return expires.Add(-30 * time.Second) }

	_, err = src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestOpaqueTokenFallsBackToExpiresIn(t *testing.T) {
	var requests atomic.Int32
	srv := tokenServer(t, &requests, func() (string, int64) { return "opaque-token", 1800 })
	defer srv.Close()

	src, err := NewCognitoSource(srv.URL, "client-id", "client-secret")
	require.NoError(t, err)

	issued := time.Now()
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", tok)

	src.mu.RLock()
	expires := src.expires
	src.mu.RUnlock()
	assert.WithinDuration(t, issued.Add(30*time.Minute), expires, 5*time.Second)
}

func TestTokenEndpointErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"server error", http.StatusInternalServerError, true},
		{"throttled", http.StatusTooManyRequests, true},
		{"bad credentials", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			src, err := NewCognitoSource(srv.URL, "client-id", "client-secret")
			require.NoError(t, err)

			_, err = src.Token(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.transient, errors.IsTransient(err))
		})
	}
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		<-release
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	src, err := NewCognitoSource(srv.URL, "client-id", "client-secret")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := src.Token(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}

	// Let the callers pile up on the in-flight refresh
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())
	for _, tok := range results {
		assert.Equal(t, "tok", tok)
	}
}

func TestNewCognitoSourceValidation(t *testing.T) {
	_, err := NewCognitoSource("", "id", "secret")
	assert.True(t, errors.IsInvalid(err))

	_, err = NewCognitoSource("https://auth.example.com/token", "", "")
	assert.True(t, errors.IsInvalid(err))
}

func TestTokenExpiry(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	jwtToken := signedJWT(t, exp)
	assert.Equal(t, exp.Unix(), tokenExpiry(jwtToken, 60, issued).Unix())

	// Opaque tokens use expires_in
	assert.Equal(t, issued.Add(90*time.Second), tokenExpiry("opaque", 90, issued))

	// Neither available falls back to a short default
	assert.Equal(t, issued.Add(5*time.Minute), tokenExpiry("opaque", 0, issued))
}
