package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint. Registered connectivity
// probes are reported per component; the endpoint itself always answers 200
// so load balancers distinguish "degraded" from "down".
type HealthHandler struct {
	logger *slog.Logger
	checks map[string]func(context.Context) error
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		checks: make(map[string]func(context.Context) error),
	}
}

// WithCheck registers a connectivity probe reported under the given name.
func (h *HealthHandler) WithCheck(name string, check func(context.Context) error) *HealthHandler {
	h.checks[name] = check
	return h
}

// HealthCheck responds with the service status and per-component
// connectivity.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = "unavailable"
			status = "degraded"
			h.logger.WarnContext(ctx, "health probe failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
		} else {
			components[name] = "ok"
		}
	}

	resp := map[string]any{
		"status":    status,
		"service":   "arbdesk",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(components) > 0 {
		resp["components"] = components
	}
	writeJSON(w, http.StatusOK, resp)
}
