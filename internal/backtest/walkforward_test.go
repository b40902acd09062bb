package backtest

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{"plain", date(2020, 3, 15), 12, date(2021, 3, 15)},
		{"leap february clamp", date(2024, 1, 31), 1, date(2024, 2, 29)},
		{"february clamp", date(2024, 8, 31), 6, date(2025, 2, 28)},
		{"thirty day month", date(2023, 5, 31), 1, date(2023, 6, 30)},
		{"year rollover", date(2023, 11, 30), 3, date(2024, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.from, tt.months))
		})
	}
}

func TestWindows(t *testing.T) {
	first, last := date(2018, 1, 1), date(2022, 6, 30)
	windows := Windows(first, last, DefaultConfig())

	require.Len(t, windows, 2)
	assert.Equal(t, Window{TrainStart: date(2018, 1, 1), TrainEnd: date(2021, 1, 1), TestEnd: date(2021, 7, 1)}, windows[0])
	assert.Equal(t, Window{TrainStart: date(2018, 7, 1), TrainEnd: date(2021, 7, 1), TestEnd: date(2022, 1, 1)}, windows[1])
}

func TestWindowsInvariants(t *testing.T) {
	first, last := date(2010, 1, 31), date(2024, 12, 31)
	windows := Windows(first, last, DefaultConfig())
	require.NotEmpty(t, windows)

	bound := int(last.Sub(first).Hours()/24/182) + 1
	assert.LessOrEqual(t, len(windows), bound)

	for i, w := range windows {
		assert.True(t, w.TrainStart.Before(w.TrainEnd))
		assert.True(t, w.TrainEnd.Before(w.TestEnd))
		assert.False(t, w.TestEnd.After(last))
		if i > 0 {
			assert.True(t, windows[i-1].TrainStart.Before(w.TrainStart))
		}
	}

	// the window whose test end would pass the last date is never produced
	next := AddMonths(first, len(windows)*6)
	assert.True(t, AddMonths(AddMonths(next, 36), 6).After(last))
}

func TestWindowsTooShort(t *testing.T) {
	assert.Empty(t, Windows(date(2020, 1, 1), date(2022, 1, 1), DefaultConfig()))
}

func TestSharpe(t *testing.T) {
	assert.Equal(t, 0.0, Sharpe(nil))
	assert.Equal(t, 0.0, Sharpe([]float64{0.01}))
	assert.Equal(t, 0.0, Sharpe([]float64{0.01, 0.01, 0.01}))
	assert.InDelta(t, 0.02/math.Sqrt(0.0002)*math.Sqrt(252), Sharpe([]float64{0.01, 0.03}), 1e-9)
}

func TestDailyMeans(t *testing.T) {
	rows := []contracts.LabeledRow{
		{StockID: 1, Date: date(2024, 1, 2)},
		{StockID: 2, Date: date(2024, 1, 1)},
		{StockID: 1, Date: date(2024, 1, 1)},
	}
	assert.Equal(t, []float64{2, 5}, DailyMeans(rows, []float64{5, 1, 3}))
}

func syntheticDataset(days int) *contracts.Dataset {
	rng := rand.New(rand.NewSource(3))
	start := date(2020, 1, 1)

	var rows []contracts.LabeledRow
	for d := 0; d < days; d++ {
		for stock := 1; stock <= 2; stock++ {
			x0 := rng.Float64()
			class := 0
			if x0 > 0.5 {
				class = 1
			}
			rows = append(rows, contracts.LabeledRow{
				StockID:       stock,
				Date:          start.AddDate(0, 0, d),
				Values:        []float64{x0, rng.Float64()},
				ForwardReturn: (x0 - 0.5) / 10,
				Target:        (x0 - 0.5) / 10,
				TargetClass:   class,
			})
		}
	}
	return &contracts.Dataset{FeatureNames: []string{"f0", "f1"}, Rows: rows, Horizon: 5, Mode: contracts.LabelRaw}
}

func quickTrainer() *s3_model.Trainer {
	p := s3_model.DefaultParams()
	p.NEstimators = 10
	p.MaxDepth = 3
	p.LearningRate = 0.3
	return s3_model.NewTrainer(p, 0.2, nil, logger.NewNop())
}

func TestEvaluatorRun(t *testing.T) {
	cfg := Config{TrainYears: 1, TestMonths: 3, StepMonths: 3, MinTrainRows: 100, MinTestRows: 50}
	evaluator := NewEvaluator(cfg, quickTrainer(), nil, logger.NewNop())

	report, err := evaluator.Run(context.Background(), syntheticDataset(730))
	require.NoError(t, err)

	require.Len(t, report.Windows, 3)
	assert.Equal(t, 3, report.Evaluated)
	assert.Equal(t, 0, report.Skipped)
	assert.NotEmpty(t, report.RunID)
	assert.Greater(t, report.MeanSharpe, 0.0)

	for i, w := range report.Windows {
		assert.Equal(t, w.TrainEnd, w.TestStart)
		assert.Greater(t, w.TrainRows, 700)
		// horizon 5 with two stocks per day
		assert.Equal(t, 10, w.PurgedRows)
		if i > 0 {
			assert.True(t, report.Windows[i-1].TrainStart.Before(w.TrainStart))
		}
	}
}

func TestEvaluatorSkipsThinWindows(t *testing.T) {
	cfg := Config{TrainYears: 1, TestMonths: 3, StepMonths: 3, MinTrainRows: 100000, MinTestRows: 50}
	evaluator := NewEvaluator(cfg, quickTrainer(), nil, logger.NewNop())

	report, err := evaluator.Run(context.Background(), syntheticDataset(730))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Evaluated)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 0.0, report.MeanSharpe)
	for _, w := range report.Windows {
		assert.True(t, w.Skipped)
		assert.NotEmpty(t, w.SkipReason)
	}
}

func TestPurgeDropsRowsWithLabelsInTestWindow(t *testing.T) {
	var train []contracts.LabeledRow
	for d := 1; d <= 10; d++ {
		for stock := 1; stock <= 3; stock++ {
			train = append(train, contracts.LabeledRow{StockID: stock, Date: date(2024, 1, d)})
		}
	}
	// a gap before the window end still counts whole trading dates
	train = append(train, contracts.LabeledRow{StockID: 1, Date: date(2024, 1, 20)})

	tests := []struct {
		name       string
		horizon    int
		wantRows   int
		wantPurged int
		lastKept   time.Time
	}{
		{"no horizon", 0, 31, 0, date(2024, 1, 20)},
		{"one date", 1, 30, 1, date(2024, 1, 10)},
		{"three dates", 3, 24, 7, date(2024, 1, 8)},
		{"horizon covers slice", 11, 0, 31, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, purged := Purge(train, tt.horizon)
			assert.Len(t, kept, tt.wantRows)
			assert.Equal(t, tt.wantPurged, purged)

			var last time.Time
			for _, r := range kept {
				if r.Date.After(last) {
					last = r.Date
				}
			}
			assert.Equal(t, tt.lastKept, last)
		})
	}
}

func TestEvaluatorEmptyDataset(t *testing.T) {
	evaluator := NewEvaluator(DefaultConfig(), quickTrainer(), nil, logger.NewNop())
	_, err := evaluator.Run(context.Background(), &contracts.Dataset{})
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
}
