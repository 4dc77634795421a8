// Package registry is the client for the vehicle registry service. It
// implements the backend contract the flows depend on and maps transport
// and HTTP outcomes onto the shared error kinds, so callers never see raw
// status codes.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parksyde/doublepark/internal/flow"
	"github.com/parksyde/doublepark/internal/models"
)

// Registry is the surface the activation machine and the notification
// composer consume. Tests substitute a fake.
type Registry interface {
	// Lookup returns the vehicle for a plate. A missing plate is
	// (nil, nil): the not-found marker, distinct from flow.ErrLookup
	// which means the answer is unknown.
	Lookup(ctx context.Context, plate string) (*models.Vehicle, error)
	Create(ctx context.Context, plate string, ownerID models.Principal) (*models.Vehicle, error)
	UpdateStatus(ctx context.Context, plate string, status bool) (*models.Vehicle, error)
	ListByOwner(ctx context.Context, p models.Principal) ([]models.Vehicle, error)
	Notify(ctx context.Context, alert models.Alert) (*models.AlertAck, error)
}

// Client talks HTTP to the registry server.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

var _ Registry = (*Client)(nil)

// NewClient creates a registry client for the given base URL,
// e.g. "http://localhost:8000".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Authenticate exchanges credentials for a token and decodes the principal
// from its claims. The claims are read without signature verification:
// only the server holds the signing secret, and the token came from it
// over the authenticated exchange.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*models.Principal, error) {
	form := url.Values{"username": {email}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flow.ErrLookup, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: authenticate: %s", flow.ErrAuthorization, readError(resp))
	}

	var tok models.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("%w: decode token: %v", flow.ErrLookup, err)
	}

	principal, err := principalFromToken(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flow.ErrAuthorization, err)
	}

	c.token = tok.AccessToken
	return principal, nil
}

func principalFromToken(token string) (*models.Principal, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	email, _ := claims["sub"].(string)
	rawID, _ := claims["user_id"].(string)
	pin, _ := claims["pin_number"].(string)
	phone, _ := claims["phone_number"].(string)
	if email == "" || rawID == "" {
		return nil, fmt.Errorf("token missing identity claims")
	}

	var p models.Principal
	if err := p.UserID.UnmarshalText([]byte(rawID)); err != nil {
		return nil, fmt.Errorf("parse user id claim: %w", err)
	}
	p.Email = email
	p.Pin = pin
	p.Phone = phone
	return &p, nil
}

// Lookup implements Registry.
func (c *Client) Lookup(ctx context.Context, plate string) (*models.Vehicle, error) {
	plate = models.NormalizePlate(plate)

	resp, err := c.get(ctx, "/api/v1/vehicles/"+url.PathEscape(plate))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flow.ErrLookup, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var v models.Vehicle
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: decode vehicle: %v", flow.ErrLookup, err)
		}
		return &v, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: lookup %s: %s", flow.ErrLookup, plate, readError(resp))
	}
}

// Create implements Registry. New vehicles start not double-parked.
func (c *Client) Create(ctx context.Context, plate string, owner models.Principal) (*models.Vehicle, error) {
	body := models.CreateVehicleRequest{Plate: models.NormalizePlate(plate), OwnerID: owner.UserID}

	resp, err := c.post(ctx, http.MethodPost, "/api/v1/vehicles", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flow.ErrLookup, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
		var v models.Vehicle
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: decode vehicle: %v", flow.ErrLookup, err)
		}
		return &v, nil
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", flow.ErrDuplicate, body.Plate)
	default:
		return nil, fmt.Errorf("%w: create %s: %s", flow.ErrLookup, body.Plate, readError(resp))
	}
}

// UpdateStatus implements Registry. The server sets or clears
// activated_at; the returned record is the confirmed truth.
func (c *Client) UpdateStatus(ctx context.Context, plate string, status bool) (*models.Vehicle, error) {
	body := models.VehicleStatusRequest{Plate: models.NormalizePlate(plate), Status: status}

	resp, err := c.post(ctx, http.MethodPut, "/api/v1/vehicles/status", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flow.ErrPersistence, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		var v models.Vehicle
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: decode vehicle: %v", flow.ErrPersistence, err)
		}
		return &v, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", flow.ErrLookup, body.Plate)
	default:
		return nil, fmt.Errorf("%w: update %s: %s", flow.ErrPersistence, body.Plate, readError(resp))
	}
}

// ListByOwner implements Registry. An empty list is a valid result.
func (c *Client) ListByOwner(ctx context.Context, p models.Principal) ([]models.Vehicle, error) {
	resp, err := c.get(ctx, "/api/v1/vehicles/owner/"+p.UserID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flow.ErrLookup, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list vehicles: %s", flow.ErrLookup, readError(resp))
	}

	var vehicles []models.Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&vehicles); err != nil {
		return nil, fmt.Errorf("%w: decode vehicles: %v", flow.ErrLookup, err)
	}
	return vehicles, nil
}

// Notify implements Registry. Dispatch failures are surfaced, never
// retried here.
func (c *Client) Notify(ctx context.Context, alert models.Alert) (*models.AlertAck, error) {
	alert.Plate = models.NormalizePlate(alert.Plate)

	resp, err := c.post(ctx, http.MethodPost, "/api/v1/alerts", alert)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flow.ErrNotification, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %s", flow.ErrNotification, alert.Plate, readError(resp))
	}

	var ack models.AlertAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("%w: decode ack: %v", flow.ErrNotification, err)
	}
	return &ack, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	return c.http.Do(req)
}

func (c *Client) post(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.http.Do(req)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return resp.Status
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
