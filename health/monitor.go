package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Checker probes a single subsystem. Implementations should respect the
// context deadline and return nil when the subsystem is usable.
type Checker func(ctx context.Context) error

// Monitor tracks health of gateway subsystems in a thread-safe manner.
// Subsystems either push statuses with Update or register a Checker that
// RunChecks probes on demand.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	checkers map[string]Checker
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		checkers: make(map[string]Checker),
	}
}

// Update updates the health status for a named subsystem
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Ensure the status has the correct component name and timestamp
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.statuses[name] = status
}

// UpdateHealthy is a convenience method to update a subsystem as healthy
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy is a convenience method to update a subsystem as unhealthy
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded is a convenience method to update a subsystem as degraded
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Register adds a named checker that RunChecks will probe. Registering a
// checker under an existing name replaces the previous one.
func (m *Monitor) Register(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkers[name] = check
}

// RunChecks probes every registered checker and records the result. The
// returned statuses are sorted by component name for stable output.
func (m *Monitor) RunChecks(ctx context.Context) []Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	checks := make([]Checker, 0, len(m.checkers))
	for name, check := range m.checkers {
		names = append(names, name)
		checks = append(checks, check)
	}
	m.mu.RUnlock()

	results := make([]Status, len(names))
	for i, check := range checks {
		results[i] = FromError(names[i], check(ctx))
	}
	for i, name := range names {
		m.Update(name, results[i])
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Component < results[j].Component
	})
	return results
}

// Get retrieves the health status for a named subsystem
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[name]
	return status, exists
}

// GetAll returns a copy of all current health statuses
func (m *Monitor) GetAll() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Status, len(m.statuses))
	for name, status := range m.statuses {
		result[name] = status
	}
	return result
}

// Remove removes a subsystem from monitoring
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
	delete(m.checkers, name)
}

// AggregateHealth returns an aggregated health status for the whole gateway
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subStatuses := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subStatuses = append(subStatuses, status)
	}

	return Aggregate(systemName, subStatuses)
}

// ListComponents returns a list of all subsystem names being monitored
func (m *Monitor) ListComponents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.statuses))
	for name := range m.statuses {
		names = append(names, name)
	}
	return names
}

// Count returns the number of subsystems being monitored
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses)
}
