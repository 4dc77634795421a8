// Package services contains business logic layers.
// Services are called by handlers and interact with the database.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/models"
)

// Service-level outcomes handlers translate into HTTP statuses.
var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrVehicleExists   = errors.New("vehicle already exists")
)

// VehicleService handles the vehicle registry: lookup, create, status
// toggle, owner listing. Lookups go through a redis read-through cache;
// the cached copy is replaced only after a write is confirmed.
type VehicleService struct {
	db       *pgxpool.Pool
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.SugaredLogger
}

// NewVehicleService creates a new vehicle service. cache may be nil, in
// which case every lookup hits the database.
func NewVehicleService(db *pgxpool.Pool, cache *redis.Client, cacheTTL time.Duration, logger *zap.SugaredLogger) *VehicleService {
	return &VehicleService{db: db, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

func cacheKey(plate string) string {
	return "vehicle:" + plate
}

// Lookup returns the vehicle for a plate, or ErrVehicleNotFound.
func (s *VehicleService) Lookup(ctx context.Context, plate string) (*models.Vehicle, error) {
	plate = models.NormalizePlate(plate)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(plate)).Bytes(); err == nil {
			var v models.Vehicle
			if err := json.Unmarshal(raw, &v); err == nil {
				return &v, nil
			}
		}
	}

	query := `SELECT plate_number, user_id, double_parked, activated_at
		FROM cars WHERE plate_number = $1`

	var v models.Vehicle
	row := s.db.QueryRow(ctx, query, plate)
	err := row.Scan(&v.Plate, &v.OwnerID, &v.DoubleParked, &v.ActivatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup vehicle: %w", err)
	}

	s.fillCache(ctx, &v)
	return &v, nil
}

// Create registers a new vehicle with status false. The plate is
// upper-cased before storage; a unique violation maps to ErrVehicleExists.
func (s *VehicleService) Create(ctx context.Context, plate string, ownerID uuid.UUID) (*models.Vehicle, error) {
	plate = models.NormalizePlate(plate)

	query := `INSERT INTO cars (plate_number, user_id, double_parked, activated_at)
		VALUES ($1, $2, FALSE, NULL)`

	if _, err := s.db.Exec(ctx, query, plate, ownerID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrVehicleExists
		}
		return nil, fmt.Errorf("insert vehicle: %w", err)
	}

	v := &models.Vehicle{Plate: plate, OwnerID: ownerID}
	s.fillCache(ctx, v)
	return v, nil
}

// UpdateStatus flips a vehicle's double-park status. activated_at is set
// to now() on activation and cleared on deactivation, server-side.
func (s *VehicleService) UpdateStatus(ctx context.Context, plate string, status bool) (*models.Vehicle, error) {
	plate = models.NormalizePlate(plate)

	query := `UPDATE cars
		SET double_parked = $2,
		    activated_at = CASE WHEN $2 THEN NOW() ELSE NULL END
		WHERE plate_number = $1
		RETURNING plate_number, user_id, double_parked, activated_at`

	var v models.Vehicle
	row := s.db.QueryRow(ctx, query, plate, status)
	err := row.Scan(&v.Plate, &v.OwnerID, &v.DoubleParked, &v.ActivatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update vehicle status: %w", err)
	}

	// Replace the cached copy only after the write is confirmed.
	s.fillCache(ctx, &v)

	s.logger.Infow("Vehicle status updated",
		"plate", v.Plate,
		"double_parked", v.DoubleParked,
	)
	return &v, nil
}

// ListByOwner returns every vehicle registered to an owner. An empty
// result is valid, not an error.
func (s *VehicleService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error) {
	query := `SELECT plate_number, user_id, double_parked, activated_at
		FROM cars WHERE user_id = $1 ORDER BY plate_number`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.Plate, &v.OwnerID, &v.DoubleParked, &v.ActivatedAt); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// OwnerPhone returns the registered phone number of a plate's owner,
// used for the caller-assisted contact path.
func (s *VehicleService) OwnerPhone(ctx context.Context, plate string) (string, error) {
	plate = models.NormalizePlate(plate)

	query := `SELECT u.phone_number FROM cars c
		JOIN users u ON u.user_id = c.user_id
		WHERE c.plate_number = $1`

	var phone string
	err := s.db.QueryRow(ctx, query, plate).Scan(&phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrVehicleNotFound
	}
	if err != nil {
		return "", fmt.Errorf("owner phone lookup: %w", err)
	}
	return phone, nil
}

func (s *VehicleService) fillCache(ctx context.Context, v *models.Vehicle) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(v.Plate), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warnw("Vehicle cache write failed", "plate", v.Plate, "error", err)
	}
}
