package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-forecast/internal/api/http"
	"github.com/i474232898/weather-forecast/internal/config"
	"github.com/i474232898/weather-forecast/internal/model"
	"github.com/i474232898/weather-forecast/internal/scheduler"
	"github.com/i474232898/weather-forecast/internal/weather"
	"github.com/i474232898/weather-forecast/internal/weather/providers"
)

func main() {
	// Load configuration (also reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	weather.SetDebugLogging(cfg.Debug)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Location resolver: Open-Meteo by default, Google when configured.
	var locator weather.LocationResolver = providers.NewOpenMeteoGeocoder(httpClient, cfg.GeocodingURL)
	if cfg.Geocoder == config.GeocoderGoogle {
		google, err := providers.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey, cfg.HTTPTimeout)
		if err != nil {
			log.Fatalf("failed to configure google geocoder: %v", err)
		}
		locator = google
	}
	fetcher := providers.NewOpenMeteoArchive(httpClient, cfg.ArchiveURL)

	// Core service orchestrating the forecast pipeline.
	service := weather.NewService(
		weather.NewWindowResolver(cfg.HistoryDays, cfg.MinHistoryDate),
		locator,
		fetcher,
		weather.NewVariableForecaster(model.NewAdditive(model.DefaultConfig()), cfg.ForecastConcurrency),
		cfg.Variables,
	)

	// Scheduler that periodically probes the upstream providers.
	sched := scheduler.New(cfg.ProbeCountry, cfg.ProbeInterval, cfg.HTTPTimeout*2, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp()
	httpapi.RegisterRoutes(app, service, sched, cfg.RequestTimeout)

	log.Printf("INFO: serving %d variables via %s + %s on :%s",
		cfg.Variables.Len(), locator.Name(), fetcher.Name(), cfg.Port)

	go func() {
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
