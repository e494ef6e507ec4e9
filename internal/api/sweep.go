package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/foodmap/internal/store"
	"github.com/erazemk/foodmap/internal/sweep"
)

// SweepHandler exposes the roll-forward job to administrators.
type SweepHandler struct {
	DB      *sql.DB
	Sweeper *sweep.Sweeper
}

type sweepStatus struct {
	LastSweep *time.Time `json:"last_sweep"`
}

// Run handles POST /api/sweep.
func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	res, err := h.Sweeper.Sweep(r.Context())
	if err != nil {
		slog.Error("sweep failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Status handles GET /api/sweep.
func (h *SweepHandler) Status(w http.ResponseWriter, r *http.Request) {
	at, err := store.LastSweep(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to read last sweep", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var status sweepStatus
	if !at.IsZero() {
		status.LastSweep = &at
	}
	jsonResponse(w, http.StatusOK, status)
}
