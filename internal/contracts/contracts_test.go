package contracts

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TCS.NS", "TCS"},
		{"tcs.ns", "TCS"},
		{" infy ", "INFY"},
		{"RELIANCE", "RELIANCE"},
		{".NS", ".NS"},
		{" .ns ", ".NS"},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSymbol(tt.in))
		})
	}

	assert.Equal(t, "HDFCBANK.NS", ProviderSymbol("hdfcbank"))
	assert.Equal(t, ".NS", ProviderSymbol(".ns"), "suffix is never doubled")
}

func TestDataQualitySnapshot_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		snapshot DataQualitySnapshot
		want     bool
	}{
		{"valid", DataQualitySnapshot{ValidStocks: 45, QualityScore: 0.9}, true},
		{"low score", DataQualitySnapshot{ValidStocks: 45, QualityScore: 0.5}, false},
		{"no stocks", DataQualitySnapshot{ValidStocks: 0, QualityScore: 0.9}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snapshot.IsValid())
		})
	}
}

func TestCoverageRate(t *testing.T) {
	s := DataQualitySnapshot{Coverage: map[string]float64{"prices": 1.0, "news": 0.5}}
	assert.InDelta(t, 0.75, s.CoverageRate(), 1e-9)
	assert.Equal(t, 0.0, (&DataQualitySnapshot{}).CoverageRate())
}

func TestFeatureStoreRowValues(t *testing.T) {
	row := FeatureStoreRow{
		FeatureRow: FeatureRow{RSI14: 61, Extra: map[string]float64{"return_1d_lag1": 0.01}},
		Macro:      map[string]float64{"macro_gold_ret": -0.002},
		Sentiment:  0.3,
	}

	v := row.Values()
	assert.Equal(t, 61.0, v[FeatureRSI14])
	assert.Equal(t, 0.01, v["return_1d_lag1"])
	assert.Equal(t, -0.002, v["macro_gold_ret"])
	assert.Equal(t, 0.3, v[FeatureSentiment])
	assert.Len(t, v, len(TechnicalFeatureNames)+3)
}

func TestDatasetSlice(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	ds := Dataset{Rows: []LabeledRow{{Date: d(1)}, {Date: d(2)}, {Date: d(3)}}}

	assert.Len(t, ds.Slice(d(1), d(3)), 2)
	assert.Equal(t, d(1), ds.MinDate())
	assert.Equal(t, d(3), ds.MaxDate())
	assert.True(t, (&Dataset{}).MaxDate().IsZero())
}

func TestWalkForwardSummarize(t *testing.T) {
	r := WalkForwardReport{Windows: []WindowResult{
		{Sharpe: 1.0},
		{Skipped: true, Sharpe: 99},
		{Sharpe: 2.0},
	}}
	r.Summarize()

	assert.Equal(t, 2, r.Evaluated)
	assert.Equal(t, 1, r.Skipped)
	assert.InDelta(t, 1.5, r.MeanSharpe, 1e-9)
}

func TestErrorKind(t *testing.T) {
	wrapped := fmt.Errorf("fetch TCS: %w", ErrTransientFetch)
	assert.Equal(t, "transient_fetch", ErrorKind(wrapped))
	assert.Equal(t, "no_feature_data", ErrorKind(&EntityError{Entity: "TCS", Op: "predict", Err: ErrNoFeatureData}))
	assert.Equal(t, "internal", ErrorKind(errors.New("x")))
	assert.Equal(t, "none", ErrorKind(nil))
}

func TestLabelModeValid(t *testing.T) {
	assert.True(t, LabelRaw.Valid())
	assert.True(t, LabelExcess.Valid())
	assert.False(t, LabelMode("log").Valid())
}
