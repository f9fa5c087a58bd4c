// Package osdu is the GraphQL transport and service orchestration layer for
// OSDU backend services (schema, legal, entitlements, search, storage).
//
// Every call POSTs a JSON body carrying a GraphQL document and variables,
// with Authorization and data-partition-id headers. Transient upstream
// failures are retried with exponential backoff; operations carry ordered
// fallback shapes that are tried in turn when a deployment rejects a query
// shape. Outbound traffic is rate limited per service.
package osdu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/metric"
	"github.com/c360/osdugate/osdu/auth"
	"github.com/c360/osdugate/osdu/introspect"
	"github.com/c360/osdugate/pkg/retry"
)

// maxResponseSize bounds upstream response bodies (schemas can be large)
const maxResponseSize = 8 << 20

type serviceEntry struct {
	endpoint string
	timeout  time.Duration
	limiter  *rate.Limiter
}

// Client talks GraphQL to the configured OSDU services
type Client struct {
	services          map[string]*serviceEntry
	tokens            auth.Source
	defaultPartition  string
	allowedPartitions []string
	schemas           *introspect.Manager
	httpClient        *http.Client
	logger            *slog.Logger
	metrics           *metric.Metrics
	retryConfig       retry.Config
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for upstream calls
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables upstream request metrics
func WithMetrics(m *metric.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRetryConfig overrides the per-request retry policy
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// NewClient builds a client from service configuration
func NewClient(cfg *config.Config, tokens auth.Source, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("config is required"),
			"Client", "NewClient", "validate")
	}
	if tokens == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("token source is required"),
			"Client", "NewClient", "validate")
	}

	services := make(map[string]*serviceEntry, len(cfg.Services))
	for name, svc := range cfg.Services {
		entry := &serviceEntry{
			endpoint: svc.Endpoint,
			timeout:  svc.Timeout.Std(),
		}
		if svc.RateLimit > 0 {
			burst := svc.Burst
			if burst < 1 {
				burst = 1
			}
			entry.limiter = rate.NewLimiter(rate.Limit(svc.RateLimit), burst)
		}
		services[name] = entry
	}

	c := &Client{
		services:          services,
		tokens:            tokens,
		defaultPartition:  cfg.Partition.Default,
		allowedPartitions: cfg.Partition.Allowed,
		httpClient:        &http.Client{Timeout: 30 * time.Second},
		logger:            slog.Default().With("component", "osdu"),
		retryConfig:       retry.Upstream(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UseIntrospection wires schema discovery into the fallback chain: when
// every template shape of an operation fails validation, one final shape
// is derived from the fields the discovered schema actually exposes. Set
// after construction because the manager discovers through this client.
func (c *Client) UseIntrospection(m *introspect.Manager) {
	c.schemas = m
}

// partitionAllowed checks a partition against the configured allow list.
// An empty list accepts any partition.
func (c *Client) partitionAllowed(partition string) bool {
	if len(c.allowedPartitions) == 0 {
		return true
	}
	for _, p := range c.allowedPartitions {
		if p == partition {
			return true
		}
	}
	return false
}

// Services lists the configured service names
func (c *Client) Services() []string {
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	return names
}

// Endpoint returns the configured endpoint for a service
func (c *Client) Endpoint(service string) (string, error) {
	entry, ok := c.services[service]
	if !ok {
		return "", errors.ErrServiceNotFound
	}
	return entry.endpoint, nil
}

// graphqlRequest is the wire format of a GraphQL POST body
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Execute runs one GraphQL document against a service, retrying transient
// failures. The returned payload is the envelope's data object. An empty
// partition falls back to the configured default.
func (c *Client) Execute(ctx context.Context, service, partition, doc string,
	variables map[string]any) (json.RawMessage, error) {

	entry, ok := c.services[service]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrServiceNotFound,
			"Client", "Execute", service)
	}

	if partition == "" {
		partition = c.defaultPartition
	}
	if partition == "" {
		return nil, errors.WrapInvalid(errors.ErrPartitionRequired,
			"Client", "Execute", service)
	}
	if !c.partitionAllowed(partition) {
		return nil, errors.WrapInvalid(errors.ErrPartitionNotAllowed,
			"Client", "Execute", partition)
	}

	if entry.limiter != nil {
		if err := entry.limiter.Wait(ctx); err != nil {
			return nil, errors.WrapTransient(err, "Client", "Execute", "rate limit wait")
		}
	}

	body, err := json.Marshal(graphqlRequest{Query: doc, Variables: variables})
	if err != nil {
		return nil, errors.WrapInvalid(err, "Client", "Execute", "encode request")
	}

	start := time.Now()
	attempt := 0

	data, err := retry.DoWithResult(ctx, c.retryConfig, func() (json.RawMessage, error) {
		attempt++
		if attempt > 1 && c.metrics != nil {
			c.metrics.RecordRetry(service)
		}
		return c.post(ctx, entry, partition, body)
	})

	if c.metrics != nil {
		status := "ok"
		if err != nil {
			status = errors.Classify(err).String()
		}
		c.metrics.RecordUpstreamRequest(service, "execute", status)
		c.metrics.RecordUpstreamDuration(service, "execute", time.Since(start))
	}

	return data, err
}

// post performs one HTTP round trip and normalizes the response envelope
func (c *Client) post(ctx context.Context, entry *serviceEntry, partition string,
	body []byte) (json.RawMessage, error) {

	if entry.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.timeout)
		defer cancel()
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		// Token failures are not the upstream's fault; retrying the
		// request retries the token fetch too.
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, entry.endpoint,
		bytes.NewReader(body))
	if err != nil {
		return nil, retry.NonRetryable(
			errors.WrapInvalid(err, "Client", "post", "build request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("data-partition-id", partition)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "post", "upstream request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "post", "read response")
	}

	if err := classifyHTTPStatus(resp.StatusCode); err != nil {
		if !errors.IsTransient(err) {
			return nil, retry.NonRetryable(err)
		}
		return nil, err
	}

	data, err := normalizeEnvelope(respBody)
	if err != nil {
		if !errors.IsTransient(err) {
			return nil, retry.NonRetryable(err)
		}
		return nil, err
	}
	return data, nil
}
