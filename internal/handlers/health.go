package handlers

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/models"
)

const version = "1.0.0"

// HealthHandler reports server liveness and readiness
type HealthHandler struct {
	db      *pgxpool.Pool
	logger  *zap.SugaredLogger
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *pgxpool.Pool, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger, started: time.Now()}
}

// Check handles GET /api/v1/health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready handles GET /api/v1/health/ready and verifies database connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:   "ok",
		Version:  version,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Database: "ok",
	}

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Errorw("Readiness probe failed", "error", err)
		status.Status = "degraded"
		status.Database = "unreachable"
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	respondJSON(w, http.StatusOK, status)
}
