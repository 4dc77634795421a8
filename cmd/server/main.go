// Package main is the entry point for the ParkSyde registry server.
// It provides the REST API behind the double-park flows: owner accounts
// and token issuance, the vehicle registry (lookup, registration, status
// toggle) and owner notification dispatch.
//
// The registry is the single source of truth for a vehicle's double-park
// status; clients hold only cached copies refreshed by confirmed
// responses.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/config"
	"github.com/parksyde/doublepark/internal/database"
	"github.com/parksyde/doublepark/internal/handlers"
	"github.com/parksyde/doublepark/internal/middleware"
	"github.com/parksyde/doublepark/internal/services"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting ParkSyde Registry Server",
		"port", cfg.Port,
		"env", cfg.Environment,
	)

	// Initialize database connection pool
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis cache for vehicle lookups; the server degrades to plain
	// database reads if it is unreachable.
	var cache *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		cache = redis.NewClient(opts)
		if err := cache.Ping(context.Background()).Err(); err != nil {
			sugar.Warnw("Redis unreachable, vehicle cache disabled", "error", err)
			cache = nil
		}
	} else {
		sugar.Warnw("Invalid REDIS_URL, vehicle cache disabled", "error", err)
	}

	// Initialize services
	vehicleSvc := services.NewVehicleService(db, cache, time.Duration(cfg.CacheTTLSecs)*time.Second, sugar)
	authSvc := services.NewAuthService(db, cfg.JWTSecret, time.Duration(cfg.TokenTTLMin)*time.Minute, sugar)
	alertSvc := services.NewAlertService(db, sugar)

	// Initialize handlers
	vehicleHandler := handlers.NewVehicleHandler(vehicleSvc, sugar)
	authHandler := handlers.NewAuthHandler(authSvc, sugar)
	alertHandler := handlers.NewAlertHandler(alertSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limiting
	r.Use(middleware.RateLimit(cfg.RateLimitRPM))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Account and token endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/token", authHandler.Token)
			r.Patch("/update", authHandler.Update)
			r.With(middleware.RequireAuth(cfg.JWTSecret)).Get("/me", authHandler.Me)
		})

		// Vehicle registry endpoints
		r.Route("/vehicles", func(r chi.Router) {
			r.Post("/", vehicleHandler.Create)
			r.Put("/status", vehicleHandler.UpdateStatus)
			r.Get("/owner/{userID}", vehicleHandler.ListByOwner)
			r.Get("/{plate}", vehicleHandler.Lookup)
			r.Get("/{plate}/phone", vehicleHandler.OwnerPhone)
		})

		// Owner notification dispatch
		r.Post("/alerts", alertHandler.Dispatch)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
