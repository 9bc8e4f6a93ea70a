package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/bikeshare-traffic/internal/api/http"
	"github.com/i474232898/bikeshare-traffic/internal/config"
	"github.com/i474232898/bikeshare-traffic/internal/scheduler"
	"github.com/i474232898/bikeshare-traffic/internal/store"
	"github.com/i474232898/bikeshare-traffic/internal/traffic"
	"github.com/i474232898/bikeshare-traffic/internal/traffic/sources"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for station and trip downloads.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Sources with resilience (backoff + circuit breaker).
	stationFeed := sources.NewStationFeed(httpClient, cfg.StationsURL)
	tripCSV := sources.NewTripCSV(httpClient, cfg.TripsURL, cfg.TripsLocation)

	// Core service orchestrating sources and store.
	service := traffic.NewService(memStore, stationFeed, tripCSV)

	// Scheduler that periodically reloads the dataset.
	sched := scheduler.New(cfg.RefreshInterval, 2*cfg.HTTPTimeout, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "bikeshare-traffic",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Health reports whether a dataset is being served.
	app.Get("/health", func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"status":  "ok",
			"service": "bikeshare-traffic",
		}
		if info, err := service.Latest(); err == nil {
			resp["dataset"] = info
		} else {
			resp["status"] = "loading"
		}
		return c.JSON(resp)
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		log.Printf("INFO: listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
