package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/models"
)

// ErrEmptyMessage is returned for a custom alert with no body.
var ErrEmptyMessage = errors.New("custom alert requires a message")

// AlertService dispatches owner notifications for a scanned plate. The
// push/SMS channel itself is out of scope; dispatch here records the alert
// and acknowledges delivery. Failed dispatches are never retried.
type AlertService struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewAlertService creates a new alert service.
func NewAlertService(db *pgxpool.Pool, logger *zap.SugaredLogger) *AlertService {
	return &AlertService{db: db, logger: logger}
}

// Dispatch validates and delivers one owner notification. The plate must
// exist; custom alerts must carry a message.
func (s *AlertService) Dispatch(ctx context.Context, alert *models.Alert) (*models.AlertAck, error) {
	if !alert.Category.Valid() {
		return nil, fmt.Errorf("unknown alert category %q", alert.Category)
	}
	if alert.Category == models.AlertCustom && alert.Message == "" {
		return nil, ErrEmptyMessage
	}

	plate := models.NormalizePlate(alert.Plate)

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cars WHERE plate_number = $1)`, plate).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("alert plate check: %w", err)
	}
	if !exists {
		return nil, ErrVehicleNotFound
	}

	now := time.Now()
	query := `INSERT INTO alerts (plate_number, category, message, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.Exec(ctx, query, plate, string(alert.Category), alert.Message, now); err != nil {
		return nil, fmt.Errorf("record alert: %w", err)
	}

	s.logger.Infow("Owner alert dispatched",
		"plate", plate,
		"category", alert.Category,
	)

	return &models.AlertAck{Plate: plate, Category: alert.Category, DeliveredAt: now}, nil
}
