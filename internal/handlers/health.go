package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/carelink/pkg/http"
)

const (
	healthCheckTimeout = 3 * time.Second
	serviceVersion     = "1.0.0"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Health  string            `json:"health"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthHandler runs the named dependency checks.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		checks: make(map[string]HealthCheck),
		logger: logger,
	}
}

// Register adds a named check. Call before serving.
func (h *HealthHandler) Register(name string, check HealthCheck) {
	h.checks[name] = check
}

// Health answers 200 when every check passes and 503 otherwise
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Health: "OK", Version: serviceVersion}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
			resp.Checks[name] = "down"
			resp.Health = "DEGRADED"
			continue
		}
		resp.Checks[name] = "up"
	}

	if resp.Health != "OK" {
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, pkghttp.SuccessResponse{
			Success: false,
			Message: "Health check failed",
			Data:    resp,
		})
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Health check successful", resp)
}
