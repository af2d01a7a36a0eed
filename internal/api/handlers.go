package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"splitguard/internal/config"
	"splitguard/internal/engine"
)

// Decision listing bounds.
const (
	DefaultDecisionLimit = 50
	MaxDecisionLimit     = 200
)

func (h *routerHandlers) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Status())
}

func (h *routerHandlers) handleGetDecisions(w http.ResponseWriter, r *http.Request) {
	limit := DefaultDecisionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, MaxDecisionLimit)
	}
	writeJSON(w, h.engine.Decisions(limit))
}

func (h *routerHandlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.settings.Settings())
}

// handlePutSettings replaces both controller blocks. Missing fields keep their
// current value; sliders are clamped.
func (h *routerHandlers) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	next := h.settings.Settings()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		writeError(w, "Invalid settings: "+err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.settings.Update(next)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ Settings update failed")
		writeError(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}
	logrus.WithFields(logrus.Fields{
		"tranquil": saved.Tranquil.Enabled,
		"khanda":   saved.Khanda.Enabled,
	}).Info("⚙️ Settings updated via API")
	writeJSON(w, saved)
}

func (h *routerHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset(engine.ReasonOperator)
	writeJSON(w, map[string]bool{"success": true})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

var _ SettingsStore = (*config.Store)(nil)
