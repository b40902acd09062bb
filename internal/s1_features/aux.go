package s1_features

import (
	"sort"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// AuxSeries is a date-keyed auxiliary feature (macro return, sentiment).
// Lookups forward-fill from the latest earlier date and default to 0.
type AuxSeries struct {
	dates  []time.Time
	values []float64
}

// NewAuxSeries builds a series from a date -> value map
func NewAuxSeries(points map[time.Time]float64) *AuxSeries {
	s := &AuxSeries{
		dates:  make([]time.Time, 0, len(points)),
		values: make([]float64, 0, len(points)),
	}
	for d := range points {
		s.dates = append(s.dates, d)
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	for _, d := range s.dates {
		s.values = append(s.values, points[d])
	}
	return s
}

// At returns the value on date, the last earlier value, or 0
func (s *AuxSeries) At(date time.Time) float64 {
	if s == nil || len(s.dates) == 0 {
		return 0
	}
	// first index strictly after date
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(date) })
	if i == 0 {
		return 0
	}
	return s.values[i-1]
}

// Len returns the number of observed dates
func (s *AuxSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.dates)
}

// IndexReturns converts index levels into 1-day return series keyed by feature name
// ⭐ SSOT: macro feature values for training and serving both come from here
func IndexReturns(levels map[string][]contracts.IndexLevel) map[string]*AuxSeries {
	out := make(map[string]*AuxSeries, len(contracts.MacroIndices))
	for _, idx := range contracts.MacroIndices {
		series := levels[idx.Symbol]
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

		points := make(map[time.Time]float64, len(series))
		for i := 1; i < len(series); i++ {
			prev := series[i-1].Close
			if prev == 0 {
				continue
			}
			points[series[i].Date] = series[i].Close/prev - 1
		}
		out[idx.Feature] = NewAuxSeries(points)
	}
	return out
}

// MacroFeatureNames lists macro feature names in fixed order
func MacroFeatureNames() []string {
	names := make([]string, 0, len(contracts.MacroIndices))
	for _, idx := range contracts.MacroIndices {
		names = append(names, idx.Feature)
	}
	return names
}
