package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

const (
	serviceName    = "noura"
	serviceVersion = "1.0.0"
)

// HealthStatus represents the readiness of the assistant's remote dependencies
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// HealthCheckFunc probes one dependency
type HealthCheckFunc func(ctx context.Context) (bool, error)

// CheckDependencies runs every check under one deadline and aggregates the result.
// A nil check is reported as "disabled" and does not affect readiness.
func CheckDependencies(ctx context.Context, checks map[string]HealthCheckFunc) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	dependencies := make(map[string]DependencyStatus, len(checks))
	allHealthy := true

	for _, name := range names {
		check := checks[name]
		if check == nil {
			dependencies[name] = DependencyStatus{Status: "disabled"}
			continue
		}

		start := time.Now()
		healthy, err := check(ctx)
		latency := time.Since(start).Milliseconds()

		status := "healthy"
		message := ""
		if err != nil || !healthy {
			status = "unhealthy"
			allHealthy = false
			if err != nil {
				message = err.Error()
			}
		}

		dependencies[name] = DependencyStatus{
			Status:    status,
			Message:   message,
			LatencyMs: latency,
		}
	}

	result := HealthStatus{
		Status:       "ready",
		Service:      serviceName,
		Version:      serviceVersion,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Dependencies: dependencies,
	}
	if !allHealthy {
		result.Status = "not_ready"
	}
	return result
}

// ReadinessHandler serves CheckDependencies as JSON on the local metrics listener
func ReadinessHandler(checks map[string]HealthCheckFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := CheckDependencies(r.Context(), checks)

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(status)
	}
}
