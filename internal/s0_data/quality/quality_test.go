package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestValidateBars(t *testing.T) {
	bars := []contracts.PriceBar{
		{Date: day(3), Open: 101, High: 103, Low: 100, Close: 102, Volume: 10},
		{Date: day(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 5},
		{Date: day(2), Open: math.NaN(), High: 1, Low: 1, Close: 1, Volume: 1},
		{Date: day(4), Open: 104, High: math.NaN(), Low: 0, Close: 106, Volume: -1},
		{Date: day(3).Add(9 * time.Hour), Open: 101, High: 104, Low: 100, Close: 103, Volume: 12},
		{Date: day(5), Open: 105, High: 106, Low: 104, Close: 0, Volume: 1},
	}

	clean, report := ValidateBars(bars)
	require.Len(t, clean, 3)

	assert.Equal(t, day(1), clean[0].Date)
	assert.Equal(t, day(3), clean[1].Date)
	assert.Equal(t, 103.0, clean[1].Close, "duplicate keeps last occurrence")
	assert.Equal(t, 106.0, clean[2].High)
	assert.Equal(t, 104.0, clean[2].Low)
	assert.Equal(t, int64(0), clean[2].Volume)

	assert.Equal(t, BarReport{Input: 6, Kept: 3, DroppedInvalid: 2, Duplicates: 1, FilledHighLow: 1, FilledVolume: 1}, report)
	assert.True(t, report.HasWarnings())
}

func TestValidateBarsEmpty(t *testing.T) {
	clean, report := ValidateBars(nil)
	assert.Empty(t, clean)
	assert.False(t, report.HasWarnings())
}

func TestScore(t *testing.T) {
	gate := NewQualityGate(nil, DefaultConfig())

	tests := []struct {
		name       string
		coverage   map[string]float64
		wantPassed bool
		wantScore  float64
	}{
		{
			name:       "full coverage",
			coverage:   map[string]float64{"prices": 1, "features": 1, "feature_store": 1, "news": 1},
			wantPassed: true,
			wantScore:  1.0,
		},
		{
			name:       "news missing still passes",
			coverage:   map[string]float64{"prices": 1, "features": 1, "feature_store": 1, "news": 0},
			wantPassed: true,
			wantScore:  0.9,
		},
		{
			name:       "feature store stale",
			coverage:   map[string]float64{"prices": 1, "features": 1, "feature_store": 0.5, "news": 1},
			wantPassed: false,
			wantScore:  0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &contracts.DataQualitySnapshot{TotalStocks: 50, Coverage: tt.coverage}
			gate.Score(snap)

			assert.Equal(t, tt.wantPassed, snap.Passed)
			assert.InDelta(t, tt.wantScore, snap.QualityScore, 1e-9)
			assert.Equal(t, 50, snap.ValidStocks)
		})
	}
}
