package introspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/natsclient"
	"github.com/c360/osdugate/pkg/cache"
)

// Executor issues one GraphQL document against a service. *osdu.Client
// satisfies this.
type Executor interface {
	Execute(ctx context.Context, service, partition, doc string,
		variables map[string]any) (json.RawMessage, error)
}

// Manager caches walked schemas per (service, partition). Lookups go local
// cache, then shared KV when configured, then the service itself.
// Concurrent misses for the same key share one introspection call.
type Manager struct {
	executor Executor
	local    cache.Cache[*Schema]
	shared   *natsclient.KVStore
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithSharedKV adds a NATS KV layer so gateway replicas discover a schema
// once between them.
func WithSharedKV(kv *natsclient.KVStore) ManagerOption {
	return func(m *Manager) {
		m.shared = kv
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a schema manager with the given TTL
func NewManager(ctx context.Context, executor Executor, ttl time.Duration,
	opts ...ManagerOption) (*Manager, error) {

	if executor == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Manager", "NewManager", "executor is required")
	}
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Manager", "NewManager", "ttl must be positive")
	}

	local, err := cache.NewTTL[*Schema](ctx, ttl, ttl/2)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		executor: executor,
		local:    local,
		ttl:      ttl,
		logger:   slog.Default().With("component", "introspect"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func cacheKey(service, partition string) string {
	return service + "/" + partition
}

// Schema returns the walked schema for a service and partition, fetching
// and caching it on miss.
func (m *Manager) Schema(ctx context.Context, service, partition string) (*Schema, error) {
	key := cacheKey(service, partition)

	if schema, ok := m.local.Get(key); ok {
		return schema, nil
	}

	result, err, _ := m.group.Do(key, func() (any, error) {
		if schema, ok := m.local.Get(key); ok {
			return schema, nil
		}

		if schema := m.fromShared(ctx, key); schema != nil {
			m.store(key, schema, false)
			return schema, nil
		}

		schema, err := m.discover(ctx, service, partition)
		if err != nil {
			return nil, err
		}
		m.store(key, schema, true)
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Schema), nil
}

// Invalidate drops the local cache entry for a service and partition
func (m *Manager) Invalidate(service, partition string) {
	m.local.Delete(cacheKey(service, partition))
}

// Warm discovers schemas for all listed services in parallel. Individual
// failures are logged, not fatal: a service that is down at startup is
// discovered on first use instead.
func (m *Manager) Warm(ctx context.Context, services []string, partition string) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, service := range services {
		g.Go(func() error {
			if _, err := m.Schema(ctx, service, partition); err != nil {
				m.logger.Warn("schema warmup failed",
					"service", service, "partition", partition, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// discover issues the introspection query and walks the result
func (m *Manager) discover(ctx context.Context, service, partition string) (*Schema, error) {
	data, err := m.executor.Execute(ctx, service, partition, introspectionQuery, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "discover", service)
	}

	schema, err := parseSchema(service, partition, data, m.now())
	if err != nil {
		return nil, err
	}

	m.logger.Info("schema discovered",
		"service", service, "partition", partition,
		"queryFields", len(schema.QueryFields), "types", len(schema.Types))

	return schema, nil
}

// fromShared tries the KV layer; stale or undecodable entries are ignored
func (m *Manager) fromShared(ctx context.Context, key string) *Schema {
	if m.shared == nil {
		return nil
	}

	entry, err := m.shared.Get(ctx, key)
	if err != nil {
		if !natsclient.IsKVNotFoundError(err) {
			m.logger.Warn("shared introspection cache read failed", "key", key, "error", err)
		}
		return nil
	}

	var schema Schema
	if err := json.Unmarshal(entry.Value, &schema); err != nil {
		m.logger.Warn("shared introspection cache entry undecodable", "key", key, "error", err)
		return nil
	}
	if schema.Stale(m.ttl, m.now()) {
		return nil
	}
	return &schema
}

// store writes a schema to the local cache and, when it was freshly
// discovered, to the shared KV layer. KV writes are best effort.
func (m *Manager) store(key string, schema *Schema, publish bool) {
	if _, err := m.local.Set(key, schema); err != nil {
		m.logger.Warn("introspection cache set failed", "key", key, "error", err)
	}

	if !publish || m.shared == nil {
		return
	}

	value, err := json.Marshal(schema)
	if err != nil {
		m.logger.Warn("shared introspection cache encode failed", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.shared.Put(ctx, key, value); err != nil {
		m.logger.Warn("shared introspection cache write failed", "key", key, "error", err)
	}
}
