package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-forecast/internal/common"
)

// meanModel predicts the mean of its history for every date.
type meanModel struct {
	fits atomic.Int32
}

type meanFitted struct{ mean float64 }

func (m *meanModel) Fit(history []Point) (FittedModel, error) {
	m.fits.Add(1)
	var sum float64
	for _, p := range history {
		sum += p.Value
	}
	return meanFitted{mean: sum / float64(len(history))}, nil
}

func (f meanFitted) Predict(dates []time.Time) ([]Point, error) {
	out := make([]Point, len(dates))
	for i, d := range dates {
		out[i] = Point{Date: d, Value: f.mean}
	}
	return out, nil
}

type failingModel struct{ err error }

func (m failingModel) Fit([]Point) (FittedModel, error) { return nil, m.err }

type fakeLocator struct {
	coords Coordinates
	err    error
	calls  int
}

func (f *fakeLocator) Name() string { return "fake-geocoder" }

func (f *fakeLocator) Resolve(_ context.Context, _ string) (Coordinates, error) {
	f.calls++
	return f.coords, f.err
}

type fakeFetcher struct {
	series     Series
	err        error
	start, end time.Time
	keys       []string
}

func (f *fakeFetcher) Name() string { return "fake-archive" }

func (f *fakeFetcher) FetchDaily(_ context.Context, _ Coordinates, start, end time.Time, keys []string) (Series, error) {
	f.start, f.end, f.keys = start, end, keys
	return f.series, f.err
}

// daily builds a series with one row per day starting at from.
func daily(from string, values map[string][]float64) Series {
	s := Series{}
	var n int
	for _, v := range DefaultVariables().List() {
		col, ok := values[v.Key]
		if !ok {
			continue
		}
		s.Keys = append(s.Keys, v.Key)
		n = len(col)
	}
	start := date(from)
	for i := 0; i < n; i++ {
		row := Row{Date: start.AddDate(0, 0, i), Values: map[string]float64{}}
		for _, k := range s.Keys {
			row.Values[k] = values[k][i]
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func TestPartitionSeries(t *testing.T) {
	s := daily("2020-01-01", map[string][]float64{"temperature_2m_min": {10, 20, 30, 20, 20}})

	cases := []struct {
		cut          string
		history, tru int
	}{
		{"2019-12-31", 0, 5},
		{"2020-01-01", 0, 5},
		{"2020-01-04", 3, 2},
		{"2020-01-05", 4, 1},
		{"2020-02-01", 5, 0},
	}
	for _, tc := range cases {
		p := PartitionSeries(s, date(tc.cut))
		assert.Equal(t, tc.history, p.History.Len(), "cut %s", tc.cut)
		assert.Equal(t, tc.tru, p.True.Len(), "cut %s", tc.cut)
		assert.Equal(t, s.Len(), p.History.Len()+p.True.Len())

		merged := append(append([]Row{}, p.History.Rows...), p.True.Rows...)
		assert.Equal(t, s.Rows, merged, "order must be preserved")
		assert.Equal(t, s.Keys, p.History.Keys)
	}
}

func TestVariableForecaster_HorizonIsDense(t *testing.T) {
	f := NewVariableForecaster(&meanModel{}, 0)
	history := []Point{{Date: date("2020-01-01"), Value: 1}, {Date: date("2020-01-02"), Value: 3}}

	for _, days := range []int{1, 2, 31, 366} {
		start := date("2020-01-04")
		end := start.AddDate(0, 0, days-1)

		got, err := f.Forecast(history, start, end)
		require.NoError(t, err)
		require.Len(t, got, common.DaysBetween(start, end)+1)
		for i, p := range got {
			assert.Equal(t, start.AddDate(0, 0, i), p.Date)
			assert.Equal(t, 2.0, p.Value)
		}
	}
}

func TestVariableForecaster_EmptyHistory(t *testing.T) {
	f := NewVariableForecaster(&meanModel{}, 0)
	_, err := f.Forecast(nil, date("2020-01-04"), date("2020-01-05"))
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestVariableForecaster_ForecastAllIndependent(t *testing.T) {
	model := &meanModel{}
	f := NewVariableForecaster(model, 2)
	s := daily("2020-01-01", map[string][]float64{
		"temperature_2m_max":  {10, 20},
		"temperature_2m_mean": {5, 7},
		"temperature_2m_min":  {0, 2},
		"wind_speed_10m_max":  {30, 40},
	})

	got, err := f.ForecastAll(context.Background(), s, date("2020-01-03"), date("2020-01-04"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, model.fits.Load())
	assert.Equal(t, 15.0, got["temperature_2m_max"][0].Value)
	assert.Equal(t, 6.0, got["temperature_2m_mean"][1].Value)
	assert.Equal(t, 1.0, got["temperature_2m_min"][0].Value)
	assert.Equal(t, 35.0, got["wind_speed_10m_max"][1].Value)
}

func TestVariableForecaster_ForecastAllFailure(t *testing.T) {
	boom := errors.New("boom")
	f := NewVariableForecaster(failingModel{err: boom}, 0)
	s := daily("2020-01-01", map[string][]float64{"temperature_2m_max": {1}})

	_, err := f.ForecastAll(context.Background(), s, date("2020-01-03"), date("2020-01-03"))
	assert.ErrorIs(t, err, boom)
}

func TestAssemble_Deterministic(t *testing.T) {
	s := daily("2020-01-01", map[string][]float64{
		"temperature_2m_max": {10, 20, 30, 20, 20},
		"wind_speed_10m_max": {1, 2, 3, 4, 5},
	})
	p := PartitionSeries(s, date("2020-01-04"))
	forecasts := map[string][]Point{
		"temperature_2m_max": {{Date: date("2020-01-04"), Value: 21.5}, {Date: date("2020-01-05"), Value: 22}},
		"wind_speed_10m_max": {{Date: date("2020-01-04"), Value: 2}, {Date: date("2020-01-05"), Value: 2}},
	}

	first, err := json.Marshal(Assemble(p, forecasts, DefaultVariables()))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(Assemble(p, forecasts, DefaultVariables()))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, again))
	}

	var decoded map[string]map[string][]map[string]any
	require.NoError(t, json.Unmarshal(first, &decoded))
	require.Contains(t, decoded, "max_temperature")
	require.Contains(t, decoded, "wind_speed")
	assert.NotContains(t, decoded, "min_temperature")
	assert.Len(t, decoded["max_temperature"]["history"], 3)
	assert.Len(t, decoded["max_temperature"]["true"], 2)
	assert.Equal(t, "2020-01-04", decoded["max_temperature"]["forecast"][0]["date"])
	assert.Equal(t, 21.5, decoded["max_temperature"]["forecast"][0]["value"])
}

func TestAssemble_AlternateMapping(t *testing.T) {
	vars, err := NewVariables([]Variable{{Key: "temperature_2m_max", Name: "tmax"}})
	require.NoError(t, err)

	s := daily("2020-01-01", map[string][]float64{"temperature_2m_max": {1, 2}})
	p := PartitionSeries(s, date("2020-01-03"))
	resp := Assemble(p, map[string][]Point{"temperature_2m_max": {{Date: date("2020-01-03"), Value: 1.5}}}, vars)

	require.Contains(t, resp, "tmax")
	assert.Len(t, resp["tmax"].History, 2)
	assert.NotNil(t, resp["tmax"].True)
	assert.Empty(t, resp["tmax"].True)
}

func TestService_GetForecast(t *testing.T) {
	locator := &fakeLocator{coords: Coordinates{Latitude: 10, Longitude: 20}}
	fetcher := &fakeFetcher{series: daily("2020-01-01", map[string][]float64{
		"temperature_2m_min": {10, 20, 30, 20, 20},
	})}
	svc := NewService(NewWindowResolver(0, time.Time{}), locator, fetcher,
		NewVariableForecaster(&meanModel{}, 0), DefaultVariables()).
		WithClock(func() time.Time { return date("2024-06-01") })

	resp, err := svc.GetForecast(context.Background(), "Ukraine", "2020-01-04", "2020-01-05")
	require.NoError(t, err)

	require.Contains(t, resp, "min_temperature")
	got := resp["min_temperature"]
	assert.Len(t, got.History, 3)
	assert.Len(t, got.True, 2)
	assert.Len(t, got.Forecast, 2)
	assert.Equal(t, date("2020-01-04"), got.Forecast[0].Date)
	assert.Equal(t, date("2020-01-05"), got.Forecast[1].Date)
	assert.Equal(t, 20.0, got.Forecast[0].Value)

	assert.Equal(t, date("2020-01-05"), fetcher.end)
	assert.Equal(t, date("2020-01-04").AddDate(0, 0, -DefaultHistoryDays), fetcher.start)
	assert.Equal(t, DefaultVariables().Keys(), fetcher.keys)
}

func TestService_GetForecastErrors(t *testing.T) {
	clock := func() time.Time { return date("2024-06-01") }
	history := daily("2024-05-01", map[string][]float64{"temperature_2m_max": {1, 2, 3}})

	t.Run("invalid range skips providers", func(t *testing.T) {
		locator := &fakeLocator{}
		svc := NewService(NewWindowResolver(0, time.Time{}), locator, &fakeFetcher{},
			NewVariableForecaster(&meanModel{}, 0), DefaultVariables()).WithClock(clock)

		_, err := svc.GetForecast(context.Background(), "Ukraine", "2024-06-05", "2024-06-01")
		assert.ErrorIs(t, err, ErrInvalidRange)
		assert.Zero(t, locator.calls)
	})

	t.Run("location not found", func(t *testing.T) {
		svc := NewService(NewWindowResolver(0, time.Time{}), &fakeLocator{err: ErrLocationNotFound}, &fakeFetcher{},
			NewVariableForecaster(&meanModel{}, 0), DefaultVariables()).WithClock(clock)

		_, err := svc.GetForecast(context.Background(), "UnexistCountry", "", "")
		assert.ErrorIs(t, err, ErrLocationNotFound)
	})

	t.Run("provider failure", func(t *testing.T) {
		perr := &ProviderError{Provider: "fake-archive", StatusCode: 400, Reason: "bad date"}
		svc := NewService(NewWindowResolver(0, time.Time{}), &fakeLocator{}, &fakeFetcher{err: perr},
			NewVariableForecaster(&meanModel{}, 0), DefaultVariables()).WithClock(clock)

		_, err := svc.GetForecast(context.Background(), "Ukraine", "", "")
		var got *ProviderError
		require.ErrorAs(t, err, &got)
		assert.Equal(t, 400, got.StatusCode)
	})

	t.Run("archive returned no requested variables", func(t *testing.T) {
		empty := Series{Rows: []Row{{Date: date("2024-05-01"), Values: map[string]float64{}}}}
		svc := NewService(NewWindowResolver(0, time.Time{}), &fakeLocator{}, &fakeFetcher{series: empty},
			NewVariableForecaster(&meanModel{}, 0), DefaultVariables()).WithClock(clock)

		_, err := svc.GetForecast(context.Background(), "Ukraine", "", "")
		var got *ProviderError
		require.ErrorAs(t, err, &got)
		assert.Equal(t, "fake-archive", got.Provider)
		assert.NotErrorIs(t, err, ErrInsufficientHistory)
	})

	t.Run("no history before start", func(t *testing.T) {
		svc := NewService(NewWindowResolver(0, time.Time{}), &fakeLocator{}, &fakeFetcher{series: history},
			NewVariableForecaster(&meanModel{}, 0), DefaultVariables()).WithClock(clock)

		_, err := svc.GetForecast(context.Background(), "Ukraine", "2024-04-01", "2024-04-02")
		assert.ErrorIs(t, err, ErrInsufficientHistory)
	})
}

func TestService_Probe(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc := NewService(NewWindowResolver(0, time.Time{}), &fakeLocator{}, fetcher,
		NewVariableForecaster(&meanModel{}, 0), DefaultVariables()).
		WithClock(func() time.Time { return date("2024-06-01") })

	require.NoError(t, svc.Probe(context.Background(), "Ukraine"))
	assert.Equal(t, date("2024-05-31"), fetcher.start)
	assert.Equal(t, date("2024-05-31"), fetcher.end)

	fetcher.err = errors.New("down")
	assert.Error(t, svc.Probe(context.Background(), "Ukraine"))
}
