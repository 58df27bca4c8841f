package weather

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/i474232898/weather-forecast/internal/common"
)

// Coordinates is a geographic point returned by a LocationResolver.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DateWindow holds the forecast horizon and the history span fetched from the archive.
// All dates are UTC midnight.
type DateWindow struct {
	ForecastStart time.Time
	ForecastEnd   time.Time
	HistoryStart  time.Time
	HistoryEnd    time.Time
}

// HorizonDays returns the number of calendar days in [ForecastStart, ForecastEnd].
func (w DateWindow) HorizonDays() int {
	return common.DaysBetween(w.ForecastStart, w.ForecastEnd) + 1
}

func (w DateWindow) String() string {
	return fmt.Sprintf("forecast=[%s..%s] history=[%s..%s]",
		common.FormatDate(w.ForecastStart), common.FormatDate(w.ForecastEnd),
		common.FormatDate(w.HistoryStart), common.FormatDate(w.HistoryEnd))
}

// Row is one day of the fetched table, keyed by provider variable key.
type Row struct {
	Date   time.Time
	Values map[string]float64
}

// Series is a date-ascending daily table with no duplicate dates. Every row
// carries a value for each of Keys.
type Series struct {
	Keys []string
	Rows []Row
}

// Len returns the number of rows.
func (s Series) Len() int {
	return len(s.Rows)
}

// Has reports whether the series carries the given variable key.
func (s Series) Has(key string) bool {
	for _, k := range s.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Column extracts the (date, value) pairs for one variable, preserving row order.
func (s Series) Column(key string) []Point {
	points := make([]Point, 0, len(s.Rows))
	for _, r := range s.Rows {
		v, ok := r.Values[key]
		if !ok {
			continue
		}
		points = append(points, Point{Date: r.Date, Value: v})
	}
	return points
}

// Partition splits a Series at the forecast start date.
type Partition struct {
	History Series
	True    Series
}

// Point is a single dated value. It serializes as {"date": "YYYY-MM-DD", "value": n}.
type Point struct {
	Date  time.Time
	Value float64
}

type pointJSON struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{Date: common.FormatDate(p.Date), Value: p.Value})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw pointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := common.ParseDate(raw.Date)
	if err != nil {
		return err
	}
	p.Date = d
	p.Value = raw.Value
	return nil
}

// VariableResult is the three-part view for one public variable.
type VariableResult struct {
	History  []Point `json:"history"`
	Forecast []Point `json:"forecast"`
	True     []Point `json:"true"`
}

// ForecastResponse maps public variable names to their results.
// encoding/json writes map keys sorted, so serialization is deterministic.
type ForecastResponse map[string]VariableResult
