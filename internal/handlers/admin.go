package handlers

import (
	"net/http"

	"triagegate/internal/cache"
	"triagegate/pkg/logging/logging"

	"go.uber.org/zap"
)

// AdminHandler exposes the operational cache surface: stats snapshot,
// clear, and expiry cleanup. Meant for health checks and ops tooling,
// not end users of the analysis service.
type AdminHandler struct {
	Cache cache.Cache
}

func NewAdminHandler(c cache.Cache) *AdminHandler {
	return &AdminHandler{Cache: c}
}

// Stats handles GET /admin/cache/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Cache.Stats())
}

// Clear handles POST /admin/cache/clear: empties every tier and resets
// the counters.
func (h *AdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.Cache.Clear(r.Context())
	writeJSON(w, map[string]string{"status": "cleared"})
}

// Cleanup handles POST /admin/cache/cleanup: sweeps logically expired
// rows from the durable tier.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed := h.Cache.CleanupExpired(r.Context())

	logging.L(r.Context()).Info("manual_cleanup", zap.Int("rows_removed", removed))

	writeJSON(w, map[string]int{"rows_removed": removed})
}
