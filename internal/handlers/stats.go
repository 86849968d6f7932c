package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/trimrr/trimr/internal/analytics"
)

type StatsHandler struct {
	DB *sql.DB
}

// LinkSummary serves the per-link analytics rollup. The window query
// parameter accepts 24h, 7d, 30d or all (the default).
func (h *StatsHandler) LinkSummary(w http.ResponseWriter, r *http.Request) {
	lh := &LinkHandler{DB: h.DB}
	link, ok := lh.loadLink(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	window := r.URL.Query().Get("window")
	if _, err := analytics.WindowStart(window, now); err != nil {
		jsonError(w, "invalid window", http.StatusBadRequest)
		return
	}

	summary, err := analytics.Summary(h.DB, link.ID, window, now)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (h *StatsHandler) Global(w http.ResponseWriter, r *http.Request) {
	stats, err := analytics.Stats(h.DB)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
