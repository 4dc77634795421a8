package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/models"
	"github.com/parksyde/doublepark/internal/services"
)

// AlertHandler handles owner-notification endpoints
type AlertHandler struct {
	alertSvc *services.AlertService
	logger   *zap.SugaredLogger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(as *services.AlertService, logger *zap.SugaredLogger) *AlertHandler {
	return &AlertHandler{alertSvc: as, logger: logger}
}

// Dispatch handles POST /api/v1/alerts
func (h *AlertHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if models.NormalizePlate(alert.Plate) == "" || !alert.Category.Valid() {
		respondError(w, http.StatusBadRequest, "Missing required fields: plate_number, category")
		return
	}

	ack, err := h.alertSvc.Dispatch(r.Context(), &alert)
	if errors.Is(err, services.ErrEmptyMessage) {
		respondError(w, http.StatusBadRequest, "Custom alert requires a message")
		return
	}
	if errors.Is(err, services.ErrVehicleNotFound) {
		respondError(w, http.StatusNotFound, "Vehicle not found")
		return
	}
	if err != nil {
		h.logger.Errorw("Alert dispatch failed", "plate", alert.Plate, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to notify owner")
		return
	}

	respondJSON(w, http.StatusOK, ack)
}
