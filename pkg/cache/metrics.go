package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/osdugate/metric"
)

// cacheMetrics holds Prometheus metrics for cache operations.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

// newCacheMetrics creates and registers cache metrics with the provided registry.
func newCacheMetrics(registry *metric.Registry, prefix string) (*cacheMetrics, error) {
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   "osdugate",
			Subsystem:   "cache",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        help,
		}
	}

	m := &cacheMetrics{
		hits:      prometheus.NewCounter(opts("hits_total", "Total number of cache hits")),
		misses:    prometheus.NewCounter(opts("misses_total", "Total number of cache misses")),
		sets:      prometheus.NewCounter(opts("sets_total", "Total number of cache set operations")),
		deletes:   prometheus.NewCounter(opts("deletes_total", "Total number of cache delete operations")),
		evictions: prometheus.NewCounter(opts("evictions_total", "Total number of cache evictions")),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "osdugate",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of entries in cache",
		}),
	}

	if err := registry.RegisterCounter(prefix, "cache_hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_sets", m.sets); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_deletes", m.deletes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_evictions", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "cache_size", m.size); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *cacheMetrics) recordHit()      { m.hits.Inc() }
func (m *cacheMetrics) recordMiss()     { m.misses.Inc() }
func (m *cacheMetrics) recordSet()      { m.sets.Inc() }
func (m *cacheMetrics) recordDelete()   { m.deletes.Inc() }
func (m *cacheMetrics) recordEviction() { m.evictions.Inc() }

func (m *cacheMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}
