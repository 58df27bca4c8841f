package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "HTTP_TIMEOUT", "REQUEST_TIMEOUT", "GEOCODER", "HISTORY_DAYS",
		"MIN_HISTORY_DATE", "VARIABLES_FILE", "PROBE_COUNTRY", "PROBE_INTERVAL", "FORECAST_CONCURRENCY"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Minute, cfg.RequestTimeout)
	assert.Equal(t, GeocoderOpenMeteo, cfg.Geocoder)
	assert.Equal(t, 1825, cfg.HistoryDays, "five years of history")
	assert.True(t, cfg.MinHistoryDate.Equal(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC)), "min history date %v", cfg.MinHistoryDate)
	assert.Equal(t, 4, cfg.Variables.Len())
	assert.Empty(t, cfg.ProbeCountry)
	assert.Equal(t, 30*time.Minute, cfg.ProbeInterval)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"HTTP_TIMEOUT":     "soon",
		"GEOCODER":         "bing",
		"HISTORY_DAYS":     "-3",
		"MIN_HISTORY_DATE": "1940/01/01",
		"VARIABLES_FILE":   filepath.Join(t.TempDir(), "missing.yaml"),
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err, "%s=%q", key, value)
		})
	}

	t.Run("google without key", func(t *testing.T) {
		t.Setenv("GEOCODER", "google")
		t.Setenv("GOOGLE_GEOCODER_API_KEY", "")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadVariables(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "vars.yaml")
	require.NoError(t, os.WriteFile(good, []byte("variables:\n  - key: temperature_2m_max\n    name: tmax\n  - key: precipitation_sum\n    name: rain\n"), 0o644))

	vars, err := LoadVariables(good)
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature_2m_max", "precipitation_sum"}, vars.Keys())
	name, ok := vars.PublicName("precipitation_sum")
	assert.True(t, ok)
	assert.Equal(t, "rain", name)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("variables:\n  - key: a\n    name: x\n  - key: b\n    name: x\n"), 0o644))
	_, err = LoadVariables(dup)
	assert.Error(t, err, "duplicate public name")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("variables: []\n"), 0o644))
	_, err = LoadVariables(empty)
	assert.Error(t, err, "empty list")

	t.Setenv("VARIABLES_FILE", good)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Variables.Len(), "variables from file")
}
