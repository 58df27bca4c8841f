package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/i474232898/weather-forecast/internal/common"
)

// Service runs the forecast pipeline: window, location, fetch, partition,
// per-variable forecast and assembly. It holds no per-request state.
type Service struct {
	windows    WindowResolver
	locator    LocationResolver
	fetcher    SeriesFetcher
	forecaster *VariableForecaster
	variables  Variables
	now        func() time.Time
}

// NewService creates a new Service.
func NewService(
	windows WindowResolver,
	locator LocationResolver,
	fetcher SeriesFetcher,
	forecaster *VariableForecaster,
	variables Variables,
) *Service {
	return &Service{
		windows:    windows,
		locator:    locator,
		fetcher:    fetcher,
		forecaster: forecaster,
		variables:  variables,
		now:        time.Now,
	}
}

// WithClock overrides the source of "today". Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetForecast builds the history/forecast/true view for a country.
// start and end are optional YYYY-MM-DD strings. Any stage failure aborts the request.
func (s *Service) GetForecast(ctx context.Context, country, start, end string) (ForecastResponse, error) {
	today := common.Day(s.now())

	window, err := s.windows.Resolve(start, end, today)
	if err != nil {
		return nil, err
	}
	logDebugf("GetForecast %q: %s", country, window)

	at, err := s.locator.Resolve(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", country, err)
	}
	logDebugf("GetForecast %q: resolved via %s to (%.4f, %.4f)", country, s.locator.Name(), at.Latitude, at.Longitude)

	series, err := s.fetcher.FetchDaily(ctx, at, window.HistoryStart, window.HistoryEnd, s.variables.Keys())
	if err != nil {
		return nil, fmt.Errorf("fetch series for %q: %w", country, err)
	}
	logDebugf("GetForecast %q: fetched %d usable rows from %s", country, series.Len(), s.fetcher.Name())
	if len(series.Keys) == 0 {
		return nil, &ProviderError{Provider: s.fetcher.Name(), Err: errors.New("archive returned none of the requested variables")}
	}

	partition := PartitionSeries(series, window.ForecastStart)

	forecasts, err := s.forecaster.ForecastAll(ctx, partition.History, window.ForecastStart, window.ForecastEnd)
	if err != nil {
		if errors.Is(err, ErrInsufficientHistory) {
			log.Printf("INFO: %q has no usable history before %s", country, common.FormatDate(window.ForecastStart))
		}
		return nil, err
	}

	return Assemble(partition, forecasts, s.variables), nil
}

// Probe checks both upstreams with a minimal request: resolve the country and
// fetch the most recent archived day.
func (s *Service) Probe(ctx context.Context, country string) error {
	at, err := s.locator.Resolve(ctx, country)
	if err != nil {
		return fmt.Errorf("probe resolve %q: %w", country, err)
	}
	day := common.Day(s.now()).AddDate(0, 0, -1)
	if _, err := s.fetcher.FetchDaily(ctx, at, day, day, s.variables.Keys()); err != nil {
		return fmt.Errorf("probe fetch %q: %w", country, err)
	}
	return nil
}
