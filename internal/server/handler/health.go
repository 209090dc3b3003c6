package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness check.
type HealthHandler struct {
	price PriceView
}

// NewHealthHandler creates a HealthHandler. price may be nil.
func NewHealthHandler(price PriceView) *HealthHandler {
	return &HealthHandler{price: price}
}

// HealthCheck always answers 200; "degraded" means the price stream is down.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if h.price != nil && !h.price.Connected() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
