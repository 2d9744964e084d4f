// Package health reports whether the service and its dependencies respond.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const (
	slowThreshold = 200 * time.Millisecond
	deadThreshold = 5 * time.Second
)

// Pinger is anything that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Component is a dependency the checker probes. A failing critical component
// makes the service unhealthy; a failing non-critical one only degrades it.
type Component struct {
	Name     string
	Pinger   Pinger
	Critical bool
}

type Checker struct {
	Components  []Component
	Environment string
	Logger      *slog.Logger

	startedAt time.Time
}

func NewChecker(environment string, logger *slog.Logger, components ...Component) *Checker {
	return &Checker{
		Components:  components,
		Environment: environment,
		Logger:      logger,
		startedAt:   time.Now(),
	}
}

type HealthStatus struct {
	Status     string                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	Details    *HealthDetails             `json:"details,omitempty"`
}

type ComponentHealth struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
	Critical    bool   `json:"critical"`
}

type HealthDetails struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	Environment   string `json:"environment,omitempty"`
}

// CheckHealth probes every component.
func (h *Checker) CheckHealth(ctx context.Context) HealthStatus {
	components := h.probe(ctx, h.Components)

	return HealthStatus{
		Status:     determineOverallStatus(components),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
		Details: &HealthDetails{
			UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
			Environment:   h.Environment,
		},
	}
}

// CheckLiveness only verifies the process answers.
func (h *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	now := time.Now()

	return HealthStatus{
		Status:    StatusHealthy,
		Timestamp: now.UTC().Format(time.RFC3339),
		Components: map[string]ComponentHealth{
			"process": {
				Status:      StatusHealthy,
				Message:     "service is responsive",
				LatencyMs:   time.Since(now).Milliseconds(),
				LastChecked: now.UTC().Format(time.RFC3339),
				Critical:    true,
			},
		},
	}
}

// CheckReadiness probes the critical components only.
func (h *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	var critical []Component
	for _, component := range h.Components {
		if component.Critical {
			critical = append(critical, component)
		}
	}

	components := h.probe(ctx, critical)

	status := StatusHealthy
	for _, component := range components {
		if component.Status == StatusUnhealthy {
			status = StatusUnhealthy
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}
}

func (h *Checker) probe(ctx context.Context, components []Component) map[string]ComponentHealth {
	results := make(map[string]ComponentHealth, len(components))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, component := range components {
		wg.Add(1)
		go func(component Component) {
			defer wg.Done()
			result := h.check(ctx, component)

			mu.Lock()
			results[component.Name] = result
			mu.Unlock()
		}(component)
	}
	wg.Wait()

	return results
}

func (h *Checker) check(ctx context.Context, component Component) ComponentHealth {
	start := time.Now()

	failed := StatusDegraded
	if component.Critical {
		failed = StatusUnhealthy
	}

	if component.Pinger == nil {
		return ComponentHealth{
			Status:      failed,
			Message:     component.Name + " not configured",
			LastChecked: start.UTC().Format(time.RFC3339),
			Critical:    component.Critical,
		}
	}

	err := component.Pinger.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		h.Logger.ErrorContext(ctx, "Health check failed", "component", component.Name, "error", err, "latency", latency)
		return ComponentHealth{
			Status:      failed,
			Message:     component.Name + " unreachable: " + err.Error(),
			LatencyMs:   latency.Milliseconds(),
			LastChecked: time.Now().UTC().Format(time.RFC3339),
			Critical:    component.Critical,
		}
	}

	status := StatusHealthy
	message := component.Name + " reachable"

	if latency > deadThreshold {
		status = failed
		message = component.Name + " response time too slow"
	} else if latency > slowThreshold {
		status = StatusDegraded
		message = component.Name + " response time elevated"
	}

	return ComponentHealth{
		Status:      status,
		Message:     message,
		LatencyMs:   latency.Milliseconds(),
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Critical:    component.Critical,
	}
}

func determineOverallStatus(components map[string]ComponentHealth) string {
	hasUnhealthy := false
	hasDegraded := false

	for _, component := range components {
		if component.Critical && component.Status == StatusUnhealthy {
			hasUnhealthy = true
		}
		if component.Status == StatusDegraded {
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
