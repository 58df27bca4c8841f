package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-forecast/internal/common"
	"github.com/i474232898/weather-forecast/internal/weather"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultArchiveURL   = "https://archive-api.open-meteo.com/v1/archive"
)

var (
	errNoDailyBlock       = errors.New("response has no daily block")
	errNoRequestedColumns = errors.New("response carries none of the requested variables")
)

// OpenMeteoGeocoder implements weather.LocationResolver against the Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoGeocoder(client *http.Client, baseURL string) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}
	return &OpenMeteoGeocoder{
		name:    "openmeteo-geocoding",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newCircuitBreaker("openmeteo-geocoding"),
	}
}

func (p *OpenMeteoGeocoder) Name() string {
	return p.name
}

// Resolve returns the first match for name.
func (p *OpenMeteoGeocoder) Resolve(ctx context.Context, name string) (weather.Coordinates, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("name", name)
		values.Set("count", "1")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Coordinates{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Coordinates{}, &weather.ProviderError{Provider: p.name, Err: fmt.Errorf("decode response: %w", err)}
	}

	// The API omits "results" entirely when nothing matches.
	if len(payload.Results) == 0 {
		return weather.Coordinates{}, fmt.Errorf("%w: %q", weather.ErrLocationNotFound, name)
	}

	first := payload.Results[0]
	return weather.Coordinates{Latitude: first.Latitude, Longitude: first.Longitude}, nil
}

// OpenMeteoArchive implements weather.SeriesFetcher against the Open-Meteo historical archive.
type OpenMeteoArchive struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoArchive(client *http.Client, baseURL string) *OpenMeteoArchive {
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}
	return &OpenMeteoArchive{
		name:    "openmeteo-archive",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newCircuitBreaker("openmeteo-archive"),
	}
}

func (p *OpenMeteoArchive) Name() string {
	return p.name
}

// FetchDaily requests all keys in one call and returns the rows where every
// returned variable has a value. Keys the archive does not return are skipped.
func (p *OpenMeteoArchive) FetchDaily(ctx context.Context, at weather.Coordinates, start, end time.Time, keys []string) (weather.Series, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(at.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(at.Longitude, 'f', -1, 64))
		values.Set("start_date", common.FormatDate(start))
		values.Set("end_date", common.FormatDate(end))
		values.Set("daily", strings.Join(keys, ","))
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Series{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily map[string]json.RawMessage `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Series{}, &weather.ProviderError{Provider: p.name, Err: fmt.Errorf("decode response: %w", err)}
	}

	series, err := decodeDaily(payload.Daily, keys)
	if err != nil {
		return weather.Series{}, &weather.ProviderError{Provider: p.name, Err: err}
	}
	return series, nil
}

// decodeDaily turns column-aligned arrays into rows, dropping any row with a null
// in one of the returned columns.
func decodeDaily(daily map[string]json.RawMessage, keys []string) (weather.Series, error) {
	if daily == nil {
		return weather.Series{}, errNoDailyBlock
	}

	var times []string
	if raw, ok := daily["time"]; ok {
		if err := json.Unmarshal(raw, &times); err != nil {
			return weather.Series{}, fmt.Errorf("decode daily.time: %w", err)
		}
	}

	series := weather.Series{}
	columns := make([][]*float64, 0, len(keys))
	for _, key := range keys {
		raw, ok := daily[key]
		if !ok {
			log.Printf("INFO: archive response has no %s column; skipping it", key)
			continue
		}
		var col []*float64
		if err := json.Unmarshal(raw, &col); err != nil {
			return weather.Series{}, fmt.Errorf("decode daily.%s: %w", key, err)
		}
		if len(col) != len(times) {
			return weather.Series{}, fmt.Errorf("daily.%s has %d values for %d dates", key, len(col), len(times))
		}
		series.Keys = append(series.Keys, key)
		columns = append(columns, col)
	}
	if len(series.Keys) == 0 {
		return weather.Series{}, fmt.Errorf("%w: requested %s", errNoRequestedColumns, strings.Join(keys, ","))
	}

	var last time.Time
	for i, ts := range times {
		date, err := common.ParseDate(ts)
		if err != nil {
			return weather.Series{}, fmt.Errorf("decode daily.time[%d]: %w", i, err)
		}
		if i > 0 && !date.After(last) {
			return weather.Series{}, fmt.Errorf("daily.time is not strictly ascending at %s", ts)
		}
		last = date

		values := make(map[string]float64, len(series.Keys))
		complete := true
		for c, key := range series.Keys {
			v := columns[c][i]
			if v == nil {
				complete = false
				break
			}
			values[key] = *v
		}
		if !complete {
			continue
		}
		series.Rows = append(series.Rows, weather.Row{Date: date, Values: values})
	}

	return series, nil
}
