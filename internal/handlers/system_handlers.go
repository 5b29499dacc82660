package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// HealthChecker is implemented by optional backing stores
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SystemHandler serves health and documentation endpoints
type SystemHandler struct {
	responder
	checkers map[string]HealthChecker
}

// NewSystemHandler creates a system handler probing the given dependencies
func NewSystemHandler(checkers map[string]HealthChecker, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SystemHandler {
	return &SystemHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		checkers:  checkers,
	}
}

// HealthCheck handles GET /health
func (h *SystemHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	code := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checkers[name].HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{"status": status})
	h.sendJSON(w, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	}, code)
}

// RegisterRoutes registers health and docs routes
func (h *SystemHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
}
