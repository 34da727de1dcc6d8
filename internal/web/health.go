package web

import (
	"encoding/json"
	"net/http"
	"time"

	"upmon/internal/storage"
)

var startTime = time.Now()

const version = "0.1.0"

// HealthHandler serves the /healthz endpoint.
type HealthHandler struct {
	store storage.Store
}

func NewHealthHandler(store storage.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountActiveMonitors(r.Context())
	status := "ok"
	if err != nil {
		status = "degraded"
	}
	resp := map[string]interface{}{
		"status":         status,
		"version":        version,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"monitor_count":  count,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
