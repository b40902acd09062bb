package s2_dataset

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// series builds aligned feature rows and bars; close grows by step each day
func series(stockID, n int, start, step float64) ([]contracts.FeatureRow, []contracts.PriceBar) {
	features := make([]contracts.FeatureRow, n)
	bars := make([]contracts.PriceBar, n)
	for i := 0; i < n; i++ {
		c := start + float64(i)*step
		bars[i] = contracts.PriceBar{StockID: stockID, Date: day(i), Close: c}
		features[i] = contracts.FeatureRow{StockID: stockID, Date: day(i), RSI14: 50, SMA20: c}
	}
	return features, bars
}

func rawOptions(h int) Options {
	return Options{Horizon: h, Mode: contracts.LabelRaw}
}

func TestAssembleExcludesTail(t *testing.T) {
	features, bars := series(1, 30, 100, 1)
	a := NewAssembler(rawOptions(5), Sources{}, nil, logger.NewNop())

	ds, err := a.Assemble(Input{Features: features, Prices: map[int][]contracts.PriceBar{1: bars}})
	require.NoError(t, err)

	require.Len(t, ds.Rows, 25)
	assert.Equal(t, day(24), ds.MaxDate())
	assert.Equal(t, 5, ds.Horizon)

	first := ds.Rows[0]
	assert.InDelta(t, 105.0/100.0-1, first.ForwardReturn, 1e-12)
	assert.Equal(t, first.ForwardReturn, first.Target)
	assert.Equal(t, 1, first.TargetClass)
}

func TestAssembleUsesTradingObservationsNotCalendarDays(t *testing.T) {
	// weekend gap between observations
	bars := []contracts.PriceBar{
		{StockID: 1, Date: day(0), Close: 100},
		{StockID: 1, Date: day(1), Close: 101},
		{StockID: 1, Date: day(4), Close: 90},
		{StockID: 1, Date: day(5), Close: 95},
	}
	features := []contracts.FeatureRow{{StockID: 1, Date: day(0)}, {StockID: 1, Date: day(1)}, {StockID: 1, Date: day(4)}}
	a := NewAssembler(rawOptions(2), Sources{}, nil, logger.NewNop())

	ds, err := a.Assemble(Input{Features: features, Prices: map[int][]contracts.PriceBar{1: bars}})
	require.NoError(t, err)

	require.Len(t, ds.Rows, 2)
	assert.InDelta(t, -0.1, ds.Rows[0].ForwardReturn, 1e-12)
	assert.Equal(t, 0, ds.Rows[0].TargetClass)
	assert.InDelta(t, 95.0/101.0-1, ds.Rows[1].ForwardReturn, 1e-12)
}

func TestAssembleExcessMode(t *testing.T) {
	features, bars := series(1, 10, 100, 1)
	levels := []contracts.IndexLevel{}
	for i := 0; i < 8; i++ { // benchmark ends early
		levels = append(levels, contracts.IndexLevel{Date: day(i), Close: 1000 + float64(i)*20})
	}

	a := NewAssembler(Options{Horizon: 1, Mode: contracts.LabelExcess, Benchmark: "^NSEI"}, Sources{}, nil, logger.NewNop())
	ds, err := a.Assemble(Input{
		Features:    features,
		Prices:      map[int][]contracts.PriceBar{1: bars},
		IndexLevels: map[string][]contracts.IndexLevel{"^NSEI": levels},
	})
	require.NoError(t, err)

	// stock has a future for days 0..8, benchmark only for 0..6
	require.Len(t, ds.Rows, 7)
	row := ds.Rows[0]
	assert.InDelta(t, 0.01, row.ForwardReturn, 1e-12)
	assert.InDelta(t, 0.01-0.02, row.Target, 1e-12)
	assert.Equal(t, 0, row.TargetClass)
	assert.Equal(t, contracts.LabelExcess, ds.Mode)
}

func TestAssembleExcessRequiresBenchmark(t *testing.T) {
	features, bars := series(1, 10, 100, 1)
	a := NewAssembler(Options{Horizon: 1, Mode: contracts.LabelExcess, Benchmark: "^NSEI"}, Sources{}, nil, logger.NewNop())

	_, err := a.Assemble(Input{Features: features, Prices: map[int][]contracts.PriceBar{1: bars}})
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
}

func TestAssembleAuxFeaturesForwardFilled(t *testing.T) {
	features, bars := series(1, 10, 100, 1)
	opts := Options{Horizon: 1, Mode: contracts.LabelRaw, IncludeMacro: true, IncludeSentiment: true}
	a := NewAssembler(opts, Sources{}, nil, logger.NewNop())

	ds, err := a.Assemble(Input{
		Features: features,
		Prices:   map[int][]contracts.PriceBar{1: bars},
		IndexLevels: map[string][]contracts.IndexLevel{
			"^NSEI": {{Date: day(2), Close: 100}, {Date: day(3), Close: 102}},
		},
		Sentiment: map[time.Time]float64{day(4): 0.6},
	})
	require.NoError(t, err)

	col := func(name string) int {
		for i, n := range ds.FeatureNames {
			if n == name {
				return i
			}
		}
		t.Fatalf("feature %s missing", name)
		return -1
	}
	nifty := col("macro_nifty_50_ret")
	sentiment := col(contracts.FeatureSentiment)
	assert.Equal(t, contracts.FeatureSentiment, ds.FeatureNames[len(ds.FeatureNames)-1])

	byDay := map[time.Time][]float64{}
	for _, r := range ds.Rows {
		byDay[r.Date] = r.Values
	}

	assert.Equal(t, 0.0, byDay[day(1)][nifty])
	assert.InDelta(t, 0.02, byDay[day(3)][nifty], 1e-12)
	assert.InDelta(t, 0.02, byDay[day(8)][nifty], 1e-12)
	assert.Equal(t, 0.0, byDay[day(3)][sentiment])
	assert.Equal(t, 0.6, byDay[day(7)][sentiment])
}

func TestAssembleSortsByDateThenStock(t *testing.T) {
	f1, b1 := series(2, 5, 100, 1)
	f2, b2 := series(1, 5, 50, -1)
	a := NewAssembler(rawOptions(1), Sources{}, nil, logger.NewNop())

	ds, err := a.Assemble(Input{
		Features: append(f1, f2...),
		Prices:   map[int][]contracts.PriceBar{2: b1, 1: b2},
	})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 8)

	for i := 1; i < len(ds.Rows); i++ {
		prev, cur := ds.Rows[i-1], ds.Rows[i]
		if prev.Date.Equal(cur.Date) {
			assert.Less(t, prev.StockID, cur.StockID)
		} else {
			assert.True(t, prev.Date.Before(cur.Date))
		}
	}
	assert.Equal(t, 1, ds.Rows[0].StockID)
	assert.Equal(t, 0, ds.Rows[0].TargetClass)
}

func TestAssembleRejectsInvalidOptions(t *testing.T) {
	features, bars := series(1, 10, 100, 1)
	in := Input{Features: features, Prices: map[int][]contracts.PriceBar{1: bars}}

	for _, opts := range []Options{
		{Horizon: 0, Mode: contracts.LabelRaw},
		{Horizon: 5, Mode: "direction"},
		{Horizon: 5, Mode: contracts.LabelExcess},
	} {
		_, err := NewAssembler(opts, Sources{}, nil, logger.NewNop()).Assemble(in)
		assert.Error(t, err, "%+v", opts)
	}
}

type fakeStore struct {
	features []contracts.FeatureRow
	prices   map[int][]contracts.PriceBar
}

func (f *fakeStore) LoadFeatures(context.Context) ([]contracts.FeatureRow, error) {
	return f.features, nil
}

func (f *fakeStore) GetAllHistory(context.Context) (map[int][]contracts.PriceBar, error) {
	return f.prices, nil
}

func (f *fakeStore) GetLevelsBySymbol(context.Context) (map[string][]contracts.IndexLevel, error) {
	return nil, nil
}

func (f *fakeStore) DailySentiment(context.Context) (map[time.Time]float64, error) {
	return nil, nil
}

func TestBuildLoadsFromStore(t *testing.T) {
	features, bars := series(1, 30, 100, 1)
	store := &fakeStore{features: features, prices: map[int][]contracts.PriceBar{1: bars}}
	a := NewAssembler(DefaultOptions(), Sources{Features: store, Prices: store, Indices: store, Sentiment: store}, nil, logger.NewNop())

	ds, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 25)
	assert.Len(t, ds.FeatureNames, len(contracts.TechnicalFeatureNames)+len(contracts.MacroIndices)+1)
}

func TestWriteCSV(t *testing.T) {
	ds := &contracts.Dataset{
		FeatureNames: []string{"rsi_14"},
		Rows: []contracts.LabeledRow{
			{StockID: 3, Date: day(0), Values: []float64{55.5}, ForwardReturn: 0.01, Target: 0.01, TargetClass: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "stock_id,date,rsi_14,forward_return,target,target_class", lines[0])
	assert.Equal(t, "3,2024-01-01,55.5,0.01,0.01,1", lines[1])
}
