package weather

import (
	"fmt"
	"time"

	"github.com/i474232898/weather-forecast/internal/common"
)

const (
	// DefaultHistoryDays is five years of lookback.
	DefaultHistoryDays = 365 * 5
)

// DefaultMinHistoryDate is the earliest day the Open-Meteo archive serves.
var DefaultMinHistoryDate = time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC)

// WindowResolver computes the forecast horizon and the history span for a request.
type WindowResolver struct {
	HistoryDays    int
	MinHistoryDate time.Time
}

// NewWindowResolver returns a resolver with the given lookback and floor.
// Non-positive lookback and a zero floor fall back to the defaults.
func NewWindowResolver(historyDays int, minHistory time.Time) WindowResolver {
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	if minHistory.IsZero() {
		minHistory = DefaultMinHistoryDate
	}
	return WindowResolver{HistoryDays: historyDays, MinHistoryDate: common.Day(minHistory)}
}

// Resolve builds a DateWindow from optional start/end strings and today.
// Missing start defaults to tomorrow; missing end defaults to start.
func (r WindowResolver) Resolve(startInput, endInput string, today time.Time) (DateWindow, error) {
	today = common.Day(today)

	start := today.AddDate(0, 0, 1)
	if startInput != "" {
		d, err := common.ParseDate(startInput)
		if err != nil {
			return DateWindow{}, fmt.Errorf("%w: start %q: expected YYYY-MM-DD", ErrInvalidDate, startInput)
		}
		start = d
	}

	end := start
	if endInput != "" {
		d, err := common.ParseDate(endInput)
		if err != nil {
			return DateWindow{}, fmt.Errorf("%w: end %q: expected YYYY-MM-DD", ErrInvalidDate, endInput)
		}
		end = d
	}

	if start.After(end) {
		return DateWindow{}, fmt.Errorf("%w: forecast start date must be less than or equal to forecast end date", ErrInvalidRange)
	}

	historyStart := start.AddDate(0, 0, -r.HistoryDays)
	if historyStart.Before(r.MinHistoryDate) {
		historyStart = r.MinHistoryDate
	}
	historyEnd := end
	if historyEnd.After(today) {
		historyEnd = today
	}

	if historyStart.After(historyEnd) {
		return DateWindow{}, fmt.Errorf("%w: no archive data available between %s and %s",
			ErrInvalidRange, common.FormatDate(historyStart), common.FormatDate(historyEnd))
	}

	return DateWindow{
		ForecastStart: start,
		ForecastEnd:   end,
		HistoryStart:  historyStart,
		HistoryEnd:    historyEnd,
	}, nil
}
