package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/middleware"
	"github.com/parksyde/doublepark/internal/models"
	"github.com/parksyde/doublepark/internal/services"
)

// AuthHandler handles account and token endpoints
type AuthHandler struct {
	authSvc *services.AuthService
	logger  *zap.SugaredLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(as *services.AuthService, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{authSvc: as, logger: logger}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields: email, password")
		return
	}

	user, err := h.authSvc.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrUserExists) {
		respondError(w, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		h.logger.Errorw("Registration failed", "email", req.Email, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Token handles POST /api/v1/auth/token (form-encoded login, OAuth2 style)
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form body")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		respondError(w, http.StatusBadRequest, "Missing credentials")
		return
	}

	token, err := h.authSvc.Login(r.Context(), email, password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if err != nil {
		h.logger.Errorw("Login failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	respondJSON(w, http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me handles GET /api/v1/auth/me. It echoes the verified principal claims.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	principal, err := services.PrincipalFromClaims(claims)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"user_id":      principal.UserID.String(),
		"email":        principal.Email,
		"pin_number":   principal.Pin,
		"phone_number": principal.Phone,
	})
}

// Update handles PATCH /api/v1/auth/update
func (h *AuthHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "user_id required")
		return
	}

	user, err := h.authSvc.UpdateProfile(r.Context(), &req)
	if errors.Is(err, services.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Errorw("Profile update failed", "user_id", req.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
