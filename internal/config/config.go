package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultStationsURL = "https://dsc106.com/labs/lab07/data/bluebikes-stations.json"
	defaultTripsURL    = "https://dsc106.com/labs/lab07/data/bluebikes-traffic-2024-03.csv"
)

type AppConfig struct {
	// StationsURL and TripsURL may be http(s) URLs or local file paths.
	StationsURL string `validate:"required"`
	TripsURL    string `validate:"required"`

	// TripsLocation is the zone trip timestamps are recorded in.
	TripsLocation *time.Location `validate:"required"`

	// RefreshInterval controls how often the dataset is reloaded.
	RefreshInterval time.Duration `validate:"gte=1m"`
	HTTPTimeout     time.Duration `validate:"gt=0"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of datasets remembered (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of remembered datasets (0 = unlimited)

	Port string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.StationsURL = getenvDefault("STATIONS_URL", defaultStationsURL)
	cfg.TripsURL = getenvDefault("TRIPS_URL", defaultTripsURL)

	loc, err := time.LoadLocation(getenvDefault("TRIPS_TIMEZONE", "America/New_York"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRIPS_TIMEZONE: %w", err)
	}
	cfg.TripsLocation = loc

	// Refresh interval: default 1 hour.
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 24)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "72h"); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
