package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	httpapi "github.com/i474232898/city-forecast-cache/internal/api/http"
	"github.com/i474232898/city-forecast-cache/internal/config"
	"github.com/i474232898/city-forecast-cache/internal/metrics"
	"github.com/i474232898/city-forecast-cache/internal/scheduler"
	"github.com/i474232898/city-forecast-cache/internal/store"
	"github.com/i474232898/city-forecast-cache/internal/weather"
	"github.com/i474232898/city-forecast-cache/internal/weather/providers"
)

func main() {
	// Load configuration (also reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Persisted forecast table.
	db, err := store.OpenSQLite(store.SQLiteOptions{Path: cfg.DBPath})
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	if err := db.CreateSchema(context.Background()); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	// Request paths call the provider directly; the refresh loop is paced.
	// Each has its own circuit breaker so refresh failures never trip requests.
	fetcher := providers.NewOpenMeteoProvider(httpClient, cfg.ProviderURL)
	refresh := providers.NewRateLimitedFetcher(
		providers.NewOpenMeteoProvider(httpClient, cfg.ProviderURL),
		cfg.RefreshRPS, cfg.RefreshBurst,
	)

	var geo weather.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geo = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}

	recorder := metrics.NewPrometheusRecorder()

	service := weather.NewService(db, fetcher, weather.ServiceOptions{
		Timezone:       cfg.Timezone,
		RefreshFetcher: refresh,
		Geocoder:       geo,
		Recorder:       recorder,
	})

	// Scheduler that periodically refreshes stored forecasts.
	sched := scheduler.New(cfg.RefreshInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "city-forecast-cache",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "city-forecast-cache",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))

	httpapi.RegisterRoutes(app, service)

	go func() {
		log.Printf("INFO: listening on %s", cfg.Addr())
		if err := app.Listen(cfg.Addr()); err != nil {
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
