package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-forecast/internal/common"
	"github.com/i474232898/weather-forecast/internal/weather"
)

const (
	GeocoderOpenMeteo = "openmeteo"
	GeocoderGoogle    = "google"
)

type AppConfig struct {
	Port string

	// HTTPTimeout bounds each outbound provider call.
	HTTPTimeout time.Duration
	// RequestTimeout bounds a whole forecast request.
	RequestTimeout time.Duration

	GeocodingURL         string
	ArchiveURL           string
	Geocoder             string
	GoogleGeocoderAPIKey string

	HistoryDays         int
	MinHistoryDate      time.Time
	ForecastConcurrency int
	Variables           weather.Variables

	// Upstream probe; empty ProbeCountry disables it.
	ProbeCountry  string
	ProbeInterval time.Duration

	Debug bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getenvDuration("REQUEST_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	cfg.GeocodingURL = os.Getenv("GEOCODING_URL")
	cfg.ArchiveURL = os.Getenv("ARCHIVE_URL")
	cfg.Geocoder = strings.ToLower(getenvDefault("GEOCODER", GeocoderOpenMeteo))
	cfg.GoogleGeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	switch cfg.Geocoder {
	case GeocoderOpenMeteo:
	case GeocoderGoogle:
		if cfg.GoogleGeocoderAPIKey == "" {
			return nil, fmt.Errorf("GEOCODER=google requires GOOGLE_GEOCODER_API_KEY")
		}
	default:
		return nil, fmt.Errorf("invalid GEOCODER %q: expected %s or %s", cfg.Geocoder, GeocoderOpenMeteo, GeocoderGoogle)
	}

	cfg.HistoryDays = getenvInt("HISTORY_DAYS", weather.DefaultHistoryDays)
	if cfg.HistoryDays <= 0 {
		return nil, fmt.Errorf("invalid HISTORY_DAYS: must be positive")
	}

	minDate, err := common.ParseDate(getenvDefault("MIN_HISTORY_DATE", common.FormatDate(weather.DefaultMinHistoryDate)))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_HISTORY_DATE: %w", err)
	}
	cfg.MinHistoryDate = minDate

	cfg.ForecastConcurrency = getenvInt("FORECAST_CONCURRENCY", weather.DefaultForecastConcurrency)

	cfg.Variables = weather.DefaultVariables()
	if path := os.Getenv("VARIABLES_FILE"); path != "" {
		vars, err := LoadVariables(path)
		if err != nil {
			return nil, err
		}
		cfg.Variables = vars
	}

	cfg.ProbeCountry = strings.TrimSpace(os.Getenv("PROBE_COUNTRY"))
	if cfg.ProbeInterval, err = getenvDuration("PROBE_INTERVAL", "30m"); err != nil {
		return nil, err
	}

	cfg.Debug, _ = strconv.ParseBool(os.Getenv("DEBUG"))

	return cfg, nil
}

type variablesFile struct {
	Variables []weather.Variable `yaml:"variables"`
}

// LoadVariables reads the canonical variable map from a YAML file:
//
//	variables:
//	  - key: temperature_2m_max
//	    name: max_temperature
func LoadVariables(path string) (weather.Variables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return weather.Variables{}, fmt.Errorf("failed to read variables file %s: %w", path, err)
	}

	var f variablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return weather.Variables{}, fmt.Errorf("failed to parse variables file %s: %w", path, err)
	}

	vars, err := weather.NewVariables(f.Variables)
	if err != nil {
		return weather.Variables{}, fmt.Errorf("variables file %s: %w", path, err)
	}
	return vars, nil
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
		log.Printf("INFO: ignoring invalid %s=%q: %v", key, v, err)
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
