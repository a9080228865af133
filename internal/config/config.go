package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/city-forecast-cache/internal/common"
	"github.com/i474232898/city-forecast-cache/internal/weather"
	"github.com/i474232898/city-forecast-cache/internal/weather/providers"
)

var validate = validator.New()

type AppConfig struct {
	Host string `validate:"required"`
	Port string `validate:"required,numeric"`

	// DBPath is the SQLite database file.
	DBPath string `validate:"required"`

	// RefreshInterval controls how often stored forecasts are re-fetched.
	RefreshInterval time.Duration `validate:"gt=0"`

	// Timezone is sent to the provider with every request.
	Timezone    string `validate:"required"`
	ProviderURL string `validate:"required,url"`

	// HTTPTimeout of zero keeps the transport default.
	HTTPTimeout time.Duration `validate:"gte=0"`

	// Reconciliation pacing towards the provider.
	RefreshRPS   float64 `validate:"gte=0"`
	RefreshBurst int     `validate:"gte=1"`

	// GeocoderAPIKey enables coordinate lookup for registrations without lat/lon.
	GeocoderAPIKey string
}

// Addr returns the listen address.
func (c *AppConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Host = getenvDefault("HOST", "localhost")
	cfg.Port = getenvDefault("PORT", "8000")
	cfg.DBPath = common.FirstNonEmpty(os.Getenv("DB_PATH"), os.Getenv("DATABASE_PATH"), "weather.db")
	cfg.Timezone = getenvDefault("TIMEZONE", weather.DefaultTimezone)
	cfg.ProviderURL = getenvDefault("PROVIDER_URL", providers.DefaultOpenMeteoURL)
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	// Refresh interval: default 15 minutes.
	interval, err := getenvDuration("REFRESH_INTERVAL", "900s")
	if err != nil {
		return nil, err
	}
	cfg.RefreshInterval = interval

	timeout, err := getenvDuration("HTTP_TIMEOUT", "0s")
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = timeout

	rps, err := strconv.ParseFloat(getenvDefault("REFRESH_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_RPS: %w", err)
	}
	cfg.RefreshRPS = rps
	cfg.RefreshBurst = getenvInt("REFRESH_BURST", 1)

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
