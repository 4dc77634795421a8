package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/models"
	"github.com/parksyde/doublepark/internal/services"
)

// VehicleHandler handles vehicle registry endpoints
type VehicleHandler struct {
	vehicleSvc *services.VehicleService
	logger     *zap.SugaredLogger
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vs *services.VehicleService, logger *zap.SugaredLogger) *VehicleHandler {
	return &VehicleHandler{vehicleSvc: vs, logger: logger}
}

// Lookup handles GET /api/v1/vehicles/{plate}
func (h *VehicleHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "plate")
	if plate == "" {
		respondError(w, http.StatusBadRequest, "Plate number required")
		return
	}

	vehicle, err := h.vehicleSvc.Lookup(r.Context(), plate)
	if errors.Is(err, services.ErrVehicleNotFound) {
		respondError(w, http.StatusNotFound, "Vehicle not found")
		return
	}
	if err != nil {
		h.logger.Errorw("Vehicle lookup failed", "plate", plate, "error", err)
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, vehicle)
}

// Create handles POST /api/v1/vehicles
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if models.NormalizePlate(req.Plate) == "" || req.OwnerID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "Missing required fields: plate_number, user_id")
		return
	}

	vehicle, err := h.vehicleSvc.Create(r.Context(), req.Plate, req.OwnerID)
	if errors.Is(err, services.ErrVehicleExists) {
		respondError(w, http.StatusConflict, "Plate already registered")
		return
	}
	if err != nil {
		h.logger.Errorw("Vehicle create failed", "plate", req.Plate, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to register vehicle")
		return
	}

	respondJSON(w, http.StatusCreated, vehicle)
}

// UpdateStatus handles PUT /api/v1/vehicles/status
func (h *VehicleHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.VehicleStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if models.NormalizePlate(req.Plate) == "" {
		respondError(w, http.StatusBadRequest, "Plate number required")
		return
	}

	vehicle, err := h.vehicleSvc.UpdateStatus(r.Context(), req.Plate, req.Status)
	if errors.Is(err, services.ErrVehicleNotFound) {
		respondError(w, http.StatusNotFound, "Vehicle not found")
		return
	}
	if err != nil {
		h.logger.Errorw("Status update failed", "plate", req.Plate, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}

	respondJSON(w, http.StatusOK, vehicle)
}

// ListByOwner handles GET /api/v1/vehicles/owner/{userID}
func (h *VehicleHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	vehicles, err := h.vehicleSvc.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Errorw("Vehicle list failed", "user_id", ownerID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list vehicles")
		return
	}

	respondJSON(w, http.StatusOK, vehicles)
}

// OwnerPhone handles GET /api/v1/vehicles/{plate}/phone
func (h *VehicleHandler) OwnerPhone(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "plate")

	phone, err := h.vehicleSvc.OwnerPhone(r.Context(), plate)
	if errors.Is(err, services.ErrVehicleNotFound) {
		respondError(w, http.StatusNotFound, "Vehicle not found")
		return
	}
	if err != nil {
		h.logger.Errorw("Owner phone lookup failed", "plate", plate, "error", err)
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, models.OwnerPhone{PhoneNumber: phone})
}
