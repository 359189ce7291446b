// Package health tracks the health of the query server's subsystems (the
// transports, the metrics endpoint, the engine) and serves the aggregate
// over HTTP.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// State is a coarse health classification.
type State string

// Health states
const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

// Status represents the health of one subsystem or of the whole system.
type Status struct {
	Component   string    `json:"component"`
	State       State     `json:"state"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"subStatuses,omitempty"`
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.State == StateHealthy }

// Healthy builds a healthy status.
func Healthy(component, message string) Status {
	return Status{Component: component, State: StateHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded builds a degraded status.
func Degraded(component, message string) Status {
	return Status{Component: component, State: StateDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy builds an unhealthy status.
func Unhealthy(component, message string) Status {
	return Status{Component: component, State: StateUnhealthy, Message: message, Timestamp: time.Now()}
}

// Aggregate folds sub-statuses into a system status: unhealthy wins over
// degraded, degraded over healthy. No subsystems at all counts as healthy.
func Aggregate(systemName string, subStatuses []Status) Status {
	state := StateHealthy
	for _, sub := range subStatuses {
		switch sub.State {
		case StateUnhealthy:
			state = StateUnhealthy
		case StateDegraded:
			if state == StateHealthy {
				state = StateDegraded
			}
		}
	}
	return Status{
		Component:   systemName,
		State:       state,
		Timestamp:   time.Now(),
		SubStatuses: subStatuses,
	}
}

// Monitor tracks the health of named subsystems. Safe for concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a Monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records a subsystem's status.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// UpdateHealthy marks a subsystem healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, Healthy(name, message))
}

// UpdateUnhealthy marks a subsystem unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, Unhealthy(name, message))
}

// UpdateDegraded marks a subsystem degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, Degraded(name, message))
}

// Get returns a subsystem's status.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, exists := m.statuses[name]
	return status, exists
}

// Remove stops tracking a subsystem.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
}

// AggregateHealth returns the aggregated system status, subsystems sorted
// by name.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.statuses))
	for name := range m.statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	subStatuses := make([]Status, 0, len(names))
	for _, name := range names {
		subStatuses = append(subStatuses, m.statuses[name])
	}
	return Aggregate(systemName, subStatuses)
}

// Handler serves the aggregated system health as JSON. Unhealthy systems
// answer 503 so load balancers can react on status alone.
func (m *Monitor) Handler(systemName string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := m.AggregateHealth(systemName)

		code := http.StatusOK
		if status.State == StateUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
