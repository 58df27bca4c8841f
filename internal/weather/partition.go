package weather

import "time"

// PartitionSeries splits rows into history (date < forecastStart) and true
// (date >= forecastStart). Input order is preserved and nothing is filtered.
func PartitionSeries(series Series, forecastStart time.Time) Partition {
	p := Partition{
		History: Series{Keys: series.Keys},
		True:    Series{Keys: series.Keys},
	}
	for _, row := range series.Rows {
		if row.Date.Before(forecastStart) {
			p.History.Rows = append(p.History.Rows, row)
		} else {
			p.True.Rows = append(p.True.Rows, row)
		}
	}
	return p
}
