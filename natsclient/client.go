// Package natsclient manages the NATS connection backing the shared
// introspection cache. The gateway stays up when NATS is unreachable and
// falls back to its in-process caches, so connection handling here favors
// fast failure over aggressive retry.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/osdugate/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by JetStream operations before Connect succeeds.
var ErrNotConnected = stderrors.New("not connected to NATS")

// Client manages a NATS connection and its JetStream context
type Client struct {
	urls     string
	status   atomic.Value // stores ConnectionStatus
	failures atomic.Int32
	logger   *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream

	// Connection options
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	// Authentication - cleared on close
	username string
	password string
	token    string

	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient creates a new NATS client. urls is a comma-separated server list
// as accepted by nats.Connect.
func NewClient(urls string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		urls:          urls,
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  10 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)

	return c, nil
}

// URLs returns the configured NATS server list
func (c *Client) URLs() string {
	return c.urls
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// IsHealthy returns true if the connection is established
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Failures returns the number of failed connection attempts
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// buildConnectionOptions builds NATS connection options from client configuration
func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			if err != nil {
				c.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.setStatus(StatusConnected)
			c.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusDisconnected)
		}),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}

	return opts
}

// Connect establishes the connection and initializes JetStream
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS", "urls", c.urls)

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.urls, c.buildConnectionOptions()...)
		if err != nil {
			connectDone <- err
			return
		}

		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			connectDone <- err
			return
		}

		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()

		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			c.failures.Add(1)
			c.setStatus(StatusDisconnected)
			return errors.WrapTransient(err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.failures.Add(1)
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	c.setStatus(StatusConnected)
	c.logger.Info("connected to NATS", "urls", c.urls)

	return nil
}

// JetStream returns the JetStream context
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// CreateKeyValueBucket creates a KV bucket or binds to it when it already
// exists. Concurrent creation from multiple gateway replicas is expected.
func (c *Client) CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		return bucket, nil
	}

	bucket, err = js.CreateKeyValue(ctx, cfg)
	if err != nil {
		// Another replica may have created the bucket between the lookup
		// and the create.
		if stderrors.Is(err, jetstream.ErrBucketExists) {
			bucket, err = js.KeyValue(ctx, cfg.Bucket)
			if err != nil {
				return nil, errors.Wrap(err, "Client", "CreateKeyValueBucket", "bind existing bucket")
			}
			return bucket, nil
		}
		return nil, errors.Wrap(err, "Client", "CreateKeyValueBucket", "create bucket")
	}

	return bucket, nil
}

// GetKeyValueBucket binds to an existing KV bucket
func (c *Client) GetKeyValueBucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, errors.WrapInvalid(err, "Client", "GetKeyValueBucket", name)
		}
		return nil, errors.Wrap(err, "Client", "GetKeyValueBucket", name)
	}
	return bucket, nil
}

// Close drains and closes the connection
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var drainErr error
	if c.conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drainDone := make(chan error, 1)
		go func() {
			drainDone <- c.conn.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				drainErr = fmt.Errorf("drain connection: %w", err)
			}
		case <-time.After(drainTimeout):
			drainErr = fmt.Errorf("drain timeout after %v", drainTimeout)
		case <-ctx.Done():
			drainErr = fmt.Errorf("drain cancelled: %w", ctx.Err())
		}

		c.conn.Close()
		c.conn = nil
		c.js = nil
	}

	// Clear credentials from memory
	c.username = ""
	c.password = ""
	c.token = ""

	c.setStatus(StatusDisconnected)

	if drainErr != nil {
		return errors.WrapTransient(drainErr, "Client", "Close", "drain")
	}
	return nil
}
