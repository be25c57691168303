package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// checkTimeout bounds each dependency probe so one hung backend cannot
// stall the health endpoint.
const checkTimeout = 2 * time.Second

// CheckFunc probes one dependency and returns nil when it is reachable
type CheckFunc func(ctx context.Context) error

// HealthStatus is the aggregate health report served on /health
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker aggregates named dependency probes for the worker process:
// the database pool, the evidence bucket, the job topic.
type HealthChecker struct {
	mu     sync.Mutex
	checks map[string]CheckFunc
}

// NewHealthChecker creates an empty health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]CheckFunc)}
}

// AddCheck registers a named dependency probe
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// Check runs every registered probe and aggregates the outcome. Any failing
// probe makes the whole report unhealthy.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.Lock()
	checks := make(map[string]CheckFunc, len(h.checks))
	names := make([]string, 0, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
		names = append(names, name)
	}
	h.mu.Unlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	overall := "healthy"
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		if err := checks[name](checkCtx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			overall = "unhealthy"
		} else {
			results[name] = "healthy"
		}
		cancel()
	}

	return HealthStatus{
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// HealthHandler returns the HTTP handler serving the aggregate report
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(status)
	}
}
