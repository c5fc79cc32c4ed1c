// Package health runs named subsystem probes for liveness and readiness
// endpoints.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the outcome of one subsystem probe.
type Status struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Checker probes one subsystem. It should respect ctx deadlines.
type Checker func(ctx context.Context) Status

// Registry holds named probes and runs them on demand.
type Registry struct {
	mu     sync.RWMutex
	probes map[string]Checker
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Checker)}
}

// Register adds a probe under name. Registering the same name twice
// replaces the earlier probe.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.probes[name]; !exists {
		r.order = append(r.order, name)
	}
	r.probes[name] = check
}

// CheckAll runs every probe concurrently and reports the aggregate plus the
// individual results in registration order.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	probes := make(map[string]Checker, len(r.probes))
	for name, check := range r.probes {
		probes[name] = check
	}
	r.mu.RUnlock()

	statuses = make([]Status, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string, check Checker) {
			defer wg.Done()
			start := time.Now()
			st := check(ctx)
			st.Name = name
			st.LatencyMS = time.Since(start).Milliseconds()
			statuses[i] = st
		}(i, name, probes[name])
	}
	wg.Wait()

	healthy = true
	for _, st := range statuses {
		if !st.Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}
