package quality

import (
	"math"
	"sort"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// BarReport summarizes what ValidateBars changed
type BarReport struct {
	Input          int `json:"input"`
	Kept           int `json:"kept"`
	DroppedInvalid int `json:"dropped_invalid"` // open or close missing / non-positive
	Duplicates     int `json:"duplicates"`
	FilledHighLow  int `json:"filled_high_low"`
	FilledVolume   int `json:"filled_volume"`
}

// HasWarnings reports whether any row was dropped or defaulted
func (r BarReport) HasWarnings() bool {
	return r.DroppedInvalid > 0 || r.Duplicates > 0 || r.FilledHighLow > 0 || r.FilledVolume > 0
}

// ValidateBars cleans provider bars before they are persisted.
//   - rows without a usable open or close are dropped
//   - missing high/low fall back to max/min(open, close)
//   - negative volume (provider null) becomes 0
//   - duplicate dates keep the last occurrence
//
// Output is sorted by date.
func ValidateBars(bars []contracts.PriceBar) ([]contracts.PriceBar, BarReport) {
	report := BarReport{Input: len(bars)}

	byDate := make(map[time.Time]int, len(bars))
	out := make([]contracts.PriceBar, 0, len(bars))

	for _, b := range bars {
		if !usable(b.Open) || !usable(b.Close) {
			report.DroppedInvalid++
			continue
		}

		if !usable(b.High) || !usable(b.Low) {
			b.High = math.Max(b.Open, b.Close)
			b.Low = math.Min(b.Open, b.Close)
			report.FilledHighLow++
		}

		if b.Volume < 0 {
			b.Volume = 0
			report.FilledVolume++
		}

		day := truncateDay(b.Date)
		b.Date = day
		if idx, seen := byDate[day]; seen {
			out[idx] = b
			report.Duplicates++
			continue
		}
		byDate[day] = len(out)
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	report.Kept = len(out)

	return out, report
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
