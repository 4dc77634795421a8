package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/parksyde/doublepark/internal/flow"
	"github.com/parksyde/doublepark/internal/models"
)

func jsonResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          "owner@example.com",
		"user_id":      userID.String(),
		"pin_number":   "4821",
		"phone_number": "+15550100",
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/token" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil || r.PostFormValue("username") != "owner@example.com" {
			jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "Incorrect email or password"})
			return
		}
		jsonResponse(w, http.StatusOK, models.TokenResponse{AccessToken: signed, TokenType: "bearer"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	principal, err := c.Authenticate(context.Background(), "owner@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if principal.UserID != userID || principal.Pin != "4821" || principal.Phone != "+15550100" {
		t.Errorf("principal = %+v, want claims decoded", principal)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusUnauthorized, map[string]string{"error": "Incorrect email or password"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Authenticate(context.Background(), "owner@example.com", "wrong")
	if !errors.Is(err, flow.ErrAuthorization) {
		t.Errorf("err = %v, want flow.ErrAuthorization", err)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/vehicles/ABC1234":
			jsonResponse(w, http.StatusOK, models.Vehicle{Plate: "ABC1234", DoubleParked: true, ActivatedAt: &now})
		case "/api/v1/vehicles/ZZZ9999":
			jsonResponse(w, http.StatusNotFound, map[string]string{"error": "Vehicle not found"})
		default:
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	t.Run("found", func(t *testing.T) {
		// Lower-case input is normalized before the request.
		v, err := c.Lookup(context.Background(), "abc1234")
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if v == nil || !v.DoubleParked || v.ActivatedAt == nil {
			t.Errorf("vehicle = %+v, want active record", v)
		}
	})

	t.Run("not found marker", func(t *testing.T) {
		v, err := c.Lookup(context.Background(), "ZZZ9999")
		if err != nil {
			t.Fatalf("missing plate must not be an error, got %v", err)
		}
		if v != nil {
			t.Errorf("vehicle = %+v, want nil marker", v)
		}
	})

	t.Run("server failure", func(t *testing.T) {
		_, err := c.Lookup(context.Background(), "ERR0000")
		if !errors.Is(err, flow.ErrLookup) {
			t.Errorf("err = %v, want flow.ErrLookup", err)
		}
	})
}

func TestLookupTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL)
	_, err := c.Lookup(context.Background(), "ABC1234")
	if !errors.Is(err, flow.ErrLookup) {
		t.Errorf("err = %v, want flow.ErrLookup", err)
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateVehicleRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Plate == "DUP0001" {
			jsonResponse(w, http.StatusConflict, map[string]string{"error": "Plate already registered"})
			return
		}
		jsonResponse(w, http.StatusCreated, models.Vehicle{Plate: req.Plate, OwnerID: req.OwnerID})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	owner := models.Principal{UserID: uuid.New()}

	v, err := c.Create(context.Background(), "abc1234", owner)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if v.Plate != "ABC1234" || v.DoubleParked {
		t.Errorf("vehicle = %+v, want new inactive ABC1234", v)
	}

	_, err = c.Create(context.Background(), "DUP0001", owner)
	if !errors.Is(err, flow.ErrDuplicate) {
		t.Errorf("err = %v, want flow.ErrDuplicate", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.VehicleStatusRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Plate {
		case "ZZZ9999":
			jsonResponse(w, http.StatusNotFound, map[string]string{"error": "Vehicle not found"})
		case "ERR0000":
			jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		default:
			v := models.Vehicle{Plate: req.Plate, DoubleParked: req.Status}
			if req.Status {
				v.ActivatedAt = &now
			}
			jsonResponse(w, http.StatusOK, v)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	v, err := c.UpdateStatus(context.Background(), "ABC1234", true)
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if !v.DoubleParked || v.ActivatedAt == nil {
		t.Errorf("vehicle = %+v, want confirmed active", v)
	}

	if _, err := c.UpdateStatus(context.Background(), "ZZZ9999", true); !errors.Is(err, flow.ErrLookup) {
		t.Errorf("err = %v, want flow.ErrLookup for unknown plate", err)
	}
	if _, err := c.UpdateStatus(context.Background(), "ERR0000", true); !errors.Is(err, flow.ErrPersistence) {
		t.Errorf("err = %v, want flow.ErrPersistence for server failure", err)
	}
}

func TestNotify(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert models.Alert
		_ = json.NewDecoder(r.Body).Decode(&alert)
		if alert.Category == models.AlertCustom && alert.Message == "" {
			jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Custom alert requires a message"})
			return
		}
		jsonResponse(w, http.StatusOK, models.AlertAck{Plate: alert.Plate, Category: alert.Category, DeliveredAt: time.Now()})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	ack, err := c.Notify(context.Background(), models.Alert{Plate: "abc1234", Category: models.AlertLightsLeftOn})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if ack.Plate != "ABC1234" {
		t.Errorf("ack plate = %q, want normalized", ack.Plate)
	}

	_, err = c.Notify(context.Background(), models.Alert{Plate: "ABC1234", Category: models.AlertCustom})
	if !errors.Is(err, flow.ErrNotification) {
		t.Errorf("err = %v, want flow.ErrNotification", err)
	}
}

func TestListByOwner(t *testing.T) {
	t.Parallel()

	owner := models.Principal{UserID: uuid.New()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/vehicles/owner/"+owner.UserID.String() {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		jsonResponse(w, http.StatusOK, []models.Vehicle{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	vehicles, err := c.ListByOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(vehicles) != 0 {
		t.Errorf("vehicles = %+v, want empty non-error result", vehicles)
	}
}
