package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/parksyde/doublepark/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
)

// AuthService handles owner accounts and token issuance. Tokens carry the
// owner's id, email, PIN and phone as claims, matching the contract the
// client-side session decodes.
type AuthService struct {
	db       *pgxpool.Pool
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.SugaredLogger
}

// NewAuthService creates a new auth service.
func NewAuthService(db *pgxpool.Pool, secret string, tokenTTL time.Duration, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{db: db, secret: []byte(secret), tokenTTL: tokenTTL, logger: logger}
}

// Register creates a new owner account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{ID: uuid.New(), Email: email, HashedPassword: string(hashed)}

	query := `INSERT INTO users (user_id, email, hashed_password) VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, query, user.ID, user.Email, user.HashedPassword); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.Infow("User registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login verifies the password and issues a signed access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	query := `SELECT user_id, email, hashed_password, COALESCE(pin_number, ''), COALESCE(phone_number, '')
		FROM users WHERE email = $1`

	var u models.User
	row := s.db.QueryRow(ctx, query, email)
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.PinNumber, &u.PhoneNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	return s.CreateAccessToken(&u)
}

// CreateAccessToken signs an HS256 token whose claims carry the principal
// fields the client session needs.
func (s *AuthService) CreateAccessToken(u *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":          u.Email,
		"user_id":      u.ID.String(),
		"pin_number":   u.PinNumber,
		"phone_number": u.PhoneNumber,
		"iat":          now.Unix(),
		"exp":          now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// PrincipalFromClaims rebuilds a Principal from verified token claims.
func PrincipalFromClaims(claims jwt.MapClaims) (*models.Principal, error) {
	email, _ := claims["sub"].(string)
	rawID, _ := claims["user_id"].(string)
	pin, _ := claims["pin_number"].(string)
	phone, _ := claims["phone_number"].(string)

	if email == "" || rawID == "" {
		return nil, errors.New("token missing identity claims")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse user id claim: %w", err)
	}

	return &models.Principal{UserID: id, Email: email, Pin: pin, Phone: phone}, nil
}

// UpdateProfile sets the owner's PIN and/or phone number.
func (s *AuthService) UpdateProfile(ctx context.Context, req *models.UpdateUserRequest) (*models.User, error) {
	query := `UPDATE users
		SET pin_number = COALESCE($2, pin_number),
		    phone_number = COALESCE($3, phone_number)
		WHERE user_id = $1
		RETURNING user_id, email, COALESCE(pin_number, ''), COALESCE(phone_number, '')`

	var u models.User
	row := s.db.QueryRow(ctx, query, req.UserID, req.PinNumber, req.PhoneNumber)
	err := row.Scan(&u.ID, &u.Email, &u.PinNumber, &u.PhoneNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &u, nil
}
