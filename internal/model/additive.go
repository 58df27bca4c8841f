// Package model provides the default forecasting capability: an additive
// decomposition into a linear trend plus yearly and weekly Fourier seasonality,
// fitted by ridge-regularised least squares (QR via gonum/mat).
package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/i474232898/weather-forecast/internal/weather"
)

const (
	yearPeriodDays = 365.25
	weekPeriodDays = 7.0
	secondsPerDay  = 24 * 60 * 60
)

var (
	ErrNoData    = errors.New("model: no data points")
	ErrNonFinite = errors.New("model: non-finite value")
	errSingular  = errors.New("model: singular system")
	errUnfitted  = errors.New("model: predict before fit")
)

// Config tunes the additive model.
type Config struct {
	// YearlyOrder is the number of Fourier terms for yearly seasonality.
	YearlyOrder int
	// WeeklyOrder is the number of Fourier terms for weekly seasonality.
	WeeklyOrder int

	// Seasonal terms are only used when history spans at least this many days.
	MinYearlySpanDays int
	MinWeeklySpanDays int

	// Ridge is the per-row L2 penalty on non-intercept coefficients.
	Ridge float64
}

// DefaultConfig mirrors the usual daily-data defaults: yearly seasonality once
// two years are available, weekly once two weeks are.
func DefaultConfig() Config {
	return Config{
		YearlyOrder:       4,
		WeeklyOrder:       3,
		MinYearlySpanDays: 730,
		MinWeeklySpanDays: 14,
		Ridge:             1e-4,
	}
}

// Additive implements weather.Model. It is stateless and safe for concurrent use.
type Additive struct {
	cfg Config
}

func NewAdditive(cfg Config) *Additive {
	return &Additive{cfg: cfg}
}

// Fit estimates trend and seasonal coefficients from history.
func (a *Additive) Fit(history []weather.Point) (weather.FittedModel, error) {
	if len(history) == 0 {
		return nil, ErrNoData
	}

	origin, last := history[0].Date, history[0].Date
	for _, p := range history {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("%w at %s", ErrNonFinite, p.Date.Format("2006-01-02"))
		}
		if p.Date.Before(origin) {
			origin = p.Date
		}
		if p.Date.After(last) {
			last = p.Date
		}
	}

	span := last.Sub(origin).Hours() / 24
	m := &fitted{origin: origin, scale: math.Max(span, 1)}
	if span >= float64(a.cfg.MinYearlySpanDays) {
		m.yearly = a.cfg.YearlyOrder
	}
	if span >= float64(a.cfg.MinWeeklySpanDays) {
		m.weekly = a.cfg.WeeklyOrder
	}

	// Design matrix with one row per observation, followed by one ridge row per
	// non-intercept column; the least squares solution of the stacked system is
	// the ridge estimate.
	width := m.width()
	lambda := a.cfg.Ridge * float64(len(history))
	rows := len(history)
	if lambda > 0 {
		rows += width - 1
	}
	x := mat.NewDense(rows, width, nil)
	y := mat.NewVecDense(rows, nil)

	row := make([]float64, width)
	for n, p := range history {
		m.features(p.Date, row)
		x.SetRow(n, row)
		y.SetVec(n, p.Value)
	}
	if lambda > 0 {
		penalty := math.Sqrt(lambda)
		for i := 1; i < width; i++ {
			x.Set(len(history)+i-1, i, penalty)
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(x, y); err != nil {
		return nil, fmt.Errorf("%w: %v", errSingular, err)
	}
	m.coef = &coef
	return m, nil
}

type fitted struct {
	origin time.Time
	scale  float64
	yearly int
	weekly int
	coef   *mat.VecDense
}

func (m *fitted) width() int {
	return 2 + 2*m.yearly + 2*m.weekly
}

// features writes the design row for date d into row.
func (m *fitted) features(d time.Time, row []float64) {
	row[0] = 1
	row[1] = d.Sub(m.origin).Hours() / 24 / m.scale

	day := float64(d.Unix()) / secondsPerDay
	i := 2
	for k := 1; k <= m.yearly; k++ {
		x := 2 * math.Pi * float64(k) * day / yearPeriodDays
		row[i], row[i+1] = math.Sin(x), math.Cos(x)
		i += 2
	}
	for k := 1; k <= m.weekly; k++ {
		x := 2 * math.Pi * float64(k) * day / weekPeriodDays
		row[i], row[i+1] = math.Sin(x), math.Cos(x)
		i += 2
	}
}

// Predict evaluates the fitted model on each date.
func (m *fitted) Predict(dates []time.Time) ([]weather.Point, error) {
	if m.coef == nil {
		return nil, errUnfitted
	}
	row := mat.NewVecDense(m.width(), nil)
	out := make([]weather.Point, len(dates))
	for n, d := range dates {
		m.features(d, row.RawVector().Data)
		y := mat.Dot(row, m.coef)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("%w predicted for %s", ErrNonFinite, d.Format("2006-01-02"))
		}
		out[n] = weather.Point{Date: d, Value: y}
	}
	return out, nil
}
