// Package auth obtains and caches bearer tokens for OSDU service calls
// using the OAuth2 client-credentials flow against a Cognito token endpoint.
//
// Tokens are cached until a refresh-ahead window before expiry. Expiry is
// read from the JWT exp claim when the token is a JWT; opaque tokens fall
// back to the expires_in field of the token response. Concurrent callers
// share a single refresh.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/metric"
)

// Source supplies bearer tokens for upstream calls
type Source interface {
	Token(ctx context.Context) (string, error)
}

// StaticSource returns a fixed token. Used for local development against
// deployments that accept long-lived tokens.
type StaticSource string

// Token implements Source
func (s StaticSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.ErrTokenUnavailable
	}
	return string(s), nil
}

// CognitoSource implements the client-credentials flow with caching
type CognitoSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	refreshAhead time.Duration

	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metric.Metrics
	now        func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	token   string
	expires time.Time
}

// Option configures a CognitoSource
type Option func(*CognitoSource)

// WithHTTPClient overrides the HTTP client used for token requests
func WithHTTPClient(client *http.Client) Option {
	return func(s *CognitoSource) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *CognitoSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables token refresh counters
func WithMetrics(m *metric.Metrics) Option {
	return func(s *CognitoSource) {
		s.metrics = m
	}
}

// WithRefreshAhead sets how long before expiry a cached token is considered
// stale. Defaults to 60s.
func WithRefreshAhead(d time.Duration) Option {
	return func(s *CognitoSource) {
		if d > 0 {
			s.refreshAhead = d
		}
	}
}

// WithScope sets the OAuth2 scope requested
func WithScope(scope string) Option {
	return func(s *CognitoSource) {
		s.scope = scope
	}
}

// NewCognitoSource creates a token source for the given token endpoint
func NewCognitoSource(tokenURL, clientID, clientSecret string, opts ...Option) (*CognitoSource, error) {
	if tokenURL == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("token URL is required"),
			"CognitoSource", "NewCognitoSource", "validate")
	}
	if clientID == "" || clientSecret == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("client credentials are required"),
			"CognitoSource", "NewCognitoSource", "validate")
	}

	s := &CognitoSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshAhead: 60 * time.Second,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       slog.Default().With("component", "auth"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token returns a cached token, refreshing when it is within the
// refresh-ahead window of expiry.
func (s *CognitoSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token, expires := s.token, s.expires
	s.mu.RUnlock()

	if token != "" && s.now().Before(expires.Add(-s.refreshAhead)) {
		return token, nil
	}

	// Single key: there is only one credential per source
	result, err, _ := s.group.Do("refresh", func() (any, error) {
		// Another caller may have refreshed while we waited
		s.mu.RLock()
		token, expires := s.token, s.expires
		s.mu.RUnlock()
		if token != "" && s.now().Before(expires.Add(-s.refreshAhead)) {
			return token, nil
		}

		return s.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// tokenResponse is the standard OAuth2 token endpoint payload
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *CognitoSource) refresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	if s.scope != "" {
		form.Set("scope", s.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.WrapInvalid(err, "CognitoSource", "refresh", "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.recordFailure()
		return "", errors.WrapTransient(err, "CognitoSource", "refresh", "token request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		s.recordFailure()
		return "", errors.WrapTransient(err, "CognitoSource", "refresh", "read response")
	}

	if resp.StatusCode != http.StatusOK {
		s.recordFailure()
		err := fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", errors.WrapTransient(err, "CognitoSource", "refresh", "token request")
		}
		return "", errors.WrapFatal(err, "CognitoSource", "refresh", "token request")
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		s.recordFailure()
		return "", errors.WrapInvalid(err, "CognitoSource", "refresh", "decode response")
	}
	if tr.AccessToken == "" {
		s.recordFailure()
		return "", errors.WrapFatal(errors.ErrTokenUnavailable,
			"CognitoSource", "refresh", "empty access token")
	}

	expires := tokenExpiry(tr.AccessToken, tr.ExpiresIn, s.now())

	s.mu.Lock()
	s.token = tr.AccessToken
	s.expires = expires
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordTokenRefresh()
	}
	s.logger.Debug("token refreshed", "expires", expires)

	return tr.AccessToken, nil
}

func (s *CognitoSource) recordFailure() {
	if s.metrics != nil {
		s.metrics.RecordTokenFailure()
	}
}

// tokenExpiry determines when a token expires. The exp claim wins when the
// token is a parseable JWT; otherwise expires_in is applied to the issue
// time, with a last-resort default of 5 minutes.
func tokenExpiry(token string, expiresIn int64, issued time.Time) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	if expiresIn > 0 {
		return issued.Add(time.Duration(expiresIn) * time.Second)
	}
	return issued.Add(5 * time.Minute)
}
