package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/freekieb7/go-duedate/internal/health"
	"github.com/freekieb7/go-duedate/internal/web/response"
)

const (
	healthTimeout    = 10 * time.Second
	livenessTimeout  = 3 * time.Second
	readinessTimeout = 5 * time.Second
	startupTimeout   = 30 * time.Second
)

type HealthHandler struct {
	Checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) HealthHandler {
	return HealthHandler{
		Checker: checker,
	}
}

// RegisterRoutes sets up the probe endpoints used by container orchestrators.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /health/live", h.HandleLiveness)
	mux.HandleFunc("GET /health/ready", h.HandleReadiness)
	mux.HandleFunc("GET /health/startup", h.HandleStartup)
}

// HandleHealth reports every component, including the non-critical Moodle probe.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	writeHealth(w, h.Checker.CheckHealth(ctx))
}

// HandleLiveness only proves the process answers requests.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), livenessTimeout)
	defer cancel()

	writeHealth(w, h.Checker.CheckLiveness(ctx))
}

// HandleReadiness checks the components the service cannot serve without.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	writeHealth(w, h.Checker.CheckReadiness(ctx))
}

// HandleStartup is the readiness check with room for a slow first connection.
func (h *HealthHandler) HandleStartup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), startupTimeout)
	defer cancel()

	writeHealth(w, h.Checker.CheckReadiness(ctx))
}

func writeHealth(w http.ResponseWriter, status health.HealthStatus) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	code := http.StatusOK
	if status.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	response.JSONResponse(w, code, status)
}
