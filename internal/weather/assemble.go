package weather

import "log"

// Assemble merges the partition and per-variable forecasts into the public
// response, renaming provider keys to public names. Keys absent from the
// partition or the variable map are skipped.
func Assemble(p Partition, forecasts map[string][]Point, vars Variables) ForecastResponse {
	resp := make(ForecastResponse, vars.Len())
	for _, v := range vars.List() {
		if !p.History.Has(v.Key) && !p.True.Has(v.Key) {
			continue
		}
		forecast, ok := forecasts[v.Key]
		if !ok {
			log.Printf("ERROR: no forecast produced for %s; omitting %s", v.Key, v.Name)
			continue
		}
		resp[v.Name] = VariableResult{
			History:  nonNil(p.History.Column(v.Key)),
			Forecast: nonNil(forecast),
			True:     nonNil(p.True.Column(v.Key)),
		}
	}
	return resp
}

// nonNil keeps empty parts serialized as [] rather than null.
func nonNil(points []Point) []Point {
	if points == nil {
		return []Point{}
	}
	return points
}
