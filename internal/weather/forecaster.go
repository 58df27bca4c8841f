package weather

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-forecast/internal/common"
)

// DefaultForecastConcurrency bounds parallel model fits within one request.
const DefaultForecastConcurrency = 4

// VariableForecaster fits one model per variable and predicts a dense daily horizon.
type VariableForecaster struct {
	model       Model
	concurrency int
}

// NewVariableForecaster wraps a forecasting model. concurrency <= 0 uses the default.
func NewVariableForecaster(model Model, concurrency int) *VariableForecaster {
	if concurrency <= 0 {
		concurrency = DefaultForecastConcurrency
	}
	return &VariableForecaster{model: model, concurrency: concurrency}
}

// Forecast fits the model on history and returns one point per day in [start, end].
func (f *VariableForecaster) Forecast(history []Point, start, end time.Time) ([]Point, error) {
	if len(history) == 0 {
		return nil, ErrInsufficientHistory
	}

	horizon := common.DateRange(start, end)
	if len(horizon) == 0 {
		return nil, fmt.Errorf("%w: empty forecast horizon", ErrInvalidRange)
	}

	fitted, err := f.model.Fit(history)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	predicted, err := fitted.Predict(horizon)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(predicted) != len(horizon) {
		return nil, fmt.Errorf("predict: model returned %d points for %d days", len(predicted), len(horizon))
	}

	// Dates come from the horizon; the model only supplies values.
	out := make([]Point, len(horizon))
	for i, d := range horizon {
		out[i] = Point{Date: d, Value: predicted[i].Value}
	}
	return out, nil
}

// ForecastAll forecasts every variable of the history series independently.
// The first failure cancels the remaining fits and is returned.
func (f *VariableForecaster) ForecastAll(ctx context.Context, history Series, start, end time.Time) (map[string][]Point, error) {
	results := make([][]Point, len(history.Keys))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, key := range history.Keys {
		i, key := i, key
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			column := history.Column(key)
			points, err := f.Forecast(column, start, end)
			if err != nil {
				return fmt.Errorf("forecast %s: %w", key, err)
			}
			logDebugf("forecast %s: fitted on %d rows, predicted %d days", key, len(column), len(points))
			results[i] = points
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]Point, len(history.Keys))
	for i, key := range history.Keys {
		out[key] = results[i]
	}
	return out, nil
}
