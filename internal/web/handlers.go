package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"upmon/internal/storage"
)

// Handlers serves the read-only JSON endpoints. Monitor and user
// management belongs to the external CRUD layer, not here.
type Handlers struct {
	store storage.Store
}

func NewHandlers(store storage.Store) *Handlers {
	return &Handlers{store: store}
}

// MonitorDetail returns a single monitor's current state.
func (h *Handlers) MonitorDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.store.GetMonitor(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "get monitor")
		return
	}
	writeJSON(w, m)
}

// MonitorStats returns aggregate failure counts for a monitor.
func (h *Handlers) MonitorStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := h.store.MonitorStats(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "monitor stats")
		return
	}
	writeJSON(w, stats)
}

// MonitorChecks returns recent check logs for a monitor, newest first.
func (h *Handlers) MonitorChecks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be an integer between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if _, err := h.store.GetMonitor(r.Context(), id); err != nil {
		writeStoreError(w, err, "get monitor")
		return
	}

	logs, err := h.store.ListCheckLogs(r.Context(), storage.ListCheckLogsParams{MonitorID: id, Limit: limit})
	if err != nil {
		writeStoreError(w, err, "list check logs")
		return
	}
	writeJSON(w, logs)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeStoreError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	slog.Error("storage error", "op", op, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
