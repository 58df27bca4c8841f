package weather

import (
	"context"
	"time"
)

// LocationResolver turns a place name into coordinates.
type LocationResolver interface {
	Name() string
	Resolve(ctx context.Context, name string) (Coordinates, error)
}

// SeriesFetcher retrieves a daily table for the inclusive range [start, end].
// Rows missing any requested variable must already be dropped.
type SeriesFetcher interface {
	Name() string
	FetchDaily(ctx context.Context, at Coordinates, start, end time.Time, keys []string) (Series, error)
}

// Model fits a univariate daily series.
type Model interface {
	Fit(history []Point) (FittedModel, error)
}

// FittedModel predicts values for arbitrary dates.
type FittedModel interface {
	Predict(dates []time.Time) ([]Point, error)
}
