// Package models defines the data structures shared by the registry
// backend and the client-side flows. These map to the PostgreSQL schema.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizePlate trims surrounding whitespace and upper-cases a plate.
// Plates are stored and compared only in this form.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// Vehicle is a registered car keyed by its upper-cased plate number.
// Invariant: ActivatedAt is non-nil exactly when DoubleParked is true.
type Vehicle struct {
	Plate        string     `json:"plate_number" db:"plate_number"`
	OwnerID      uuid.UUID  `json:"user_id" db:"user_id"`
	DoubleParked bool       `json:"double_parked" db:"double_parked"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty" db:"activated_at"`
}

// User is a registered car owner. PinNumber is opaque secret material:
// it is never logged and never rendered.
type User struct {
	ID             uuid.UUID `json:"user_id" db:"user_id"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	PinNumber      string    `json:"-" db:"pin_number"`
	PhoneNumber    string    `json:"phone_number" db:"phone_number"`
}

// Principal is the authenticated owner context decoded from a token.
// Exactly one Principal is live per client session.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Pin    string
	Phone  string
}

// RegisterUserRequest is the body for creating a new owner account.
type RegisterUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest sets the owner's PIN and/or phone number.
type UpdateUserRequest struct {
	UserID      uuid.UUID `json:"user_id"`
	PinNumber   *string   `json:"pin_number,omitempty"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
}

// TokenResponse is the login result.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// CreateVehicleRequest is the body for registering a new plate.
type CreateVehicleRequest struct {
	Plate   string    `json:"plate_number"`
	OwnerID uuid.UUID `json:"user_id"`
}

// VehicleStatusRequest toggles a vehicle's double-park status. The server
// sets or clears activated_at itself; clients never supply it.
type VehicleStatusRequest struct {
	Plate  string `json:"plate_number"`
	Status bool   `json:"status"`
}

// AlertCategory enumerates the owner-notification situations.
type AlertCategory string

const (
	AlertLightsLeftOn     AlertCategory = "lights_left_on"
	AlertExposedValuables AlertCategory = "exposed_valuables"
	AlertSecurityConcern  AlertCategory = "security_concern"
	AlertCustom           AlertCategory = "custom"
)

// Valid reports whether the category is one of the enumerated values.
func (c AlertCategory) Valid() bool {
	switch c {
	case AlertLightsLeftOn, AlertExposedValuables, AlertSecurityConcern, AlertCustom:
		return true
	}
	return false
}

// Alert is an owner-notification instance. Message is required only when
// Category is AlertCustom.
type Alert struct {
	Plate    string        `json:"plate_number"`
	Category AlertCategory `json:"category"`
	Message  string        `json:"message,omitempty"`
}

// AlertAck is the delivery acknowledgment returned per dispatch.
type AlertAck struct {
	Plate       string        `json:"plate_number"`
	Category    AlertCategory `json:"category"`
	DeliveredAt time.Time     `json:"delivered_at"`
}

// Authority is one entry of the nearest-authority lookup, ordered by rank.
type Authority struct {
	Name     string `json:"name"`
	Distance string `json:"distance"`
}

// OwnerPhone is the call-out lookup result for a plate.
type OwnerPhone struct {
	PhoneNumber string `json:"phone_number"`
}

// HealthStatus is the server health check response.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
}
