package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
)

// TradingDays annualizes daily Sharpe ratios
const TradingDays = 252

// Config holds walk-forward window sizes
type Config struct {
	TrainYears   int
	TestMonths   int
	StepMonths   int
	MinTrainRows int
	MinTestRows  int
}

// DefaultConfig returns the production window policy
func DefaultConfig() Config {
	return Config{
		TrainYears:   3,
		TestMonths:   6,
		StepMonths:   6,
		MinTrainRows: 1000,
		MinTestRows:  200,
	}
}

// Window is one train/test split; ranges are half-open [start, end)
type Window struct {
	TrainStart time.Time
	TrainEnd   time.Time
	TestEnd    time.Time
}

// Windows enumerates walk-forward windows between first and last.
// Each cursor is offset from first by whole steps, so month-end clamping never drifts.
func Windows(first, last time.Time, cfg Config) []Window {
	if cfg.StepMonths <= 0 || cfg.TrainYears*12+cfg.TestMonths <= 0 {
		return nil
	}

	var out []Window
	for k := 0; ; k++ {
		trainStart := AddMonths(first, k*cfg.StepMonths)
		trainEnd := AddMonths(trainStart, cfg.TrainYears*12)
		testEnd := AddMonths(trainEnd, cfg.TestMonths)
		if testEnd.After(last) {
			return out
		}
		out = append(out, Window{TrainStart: trainStart, TrainEnd: trainEnd, TestEnd: testEnd})
	}
}

// AddMonths adds calendar months, clamping the day to the target month's end
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	hh, mm, ss := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// Evaluator retrains a fresh model per window and scores it out of sample
// ⭐ SSOT: out-of-sample evaluation happens only here
type Evaluator struct {
	config  Config
	trainer *s3_model.Trainer
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewEvaluator creates a new walk-forward evaluator
func NewEvaluator(config Config, trainer *s3_model.Trainer, rec *metrics.Recorder, log *logger.Logger) *Evaluator {
	return &Evaluator{
		config:  config,
		trainer: trainer,
		metrics: rec,
		logger:  log.Module("walkforward"),
	}
}

// Run evaluates every window of the dataset in order
func (e *Evaluator) Run(ctx context.Context, ds *contracts.Dataset) (*contracts.WalkForwardReport, error) {
	start := time.Now()
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("empty dataset: %w", contracts.ErrDataUnavailable)
	}

	report := &contracts.WalkForwardReport{RunID: uuid.NewString()}
	for _, w := range Windows(ds.MinDate(), ds.MaxDate(), e.config) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := e.runWindow(ctx, ds, w)
		if err != nil {
			return nil, err
		}
		report.Windows = append(report.Windows, result)
	}
	report.Summarize()

	e.metrics.ObserveStage("walkforward", time.Since(start))
	e.logger.WithFields(map[string]interface{}{
		"run_id":      report.RunID,
		"windows":     len(report.Windows),
		"evaluated":   report.Evaluated,
		"skipped":     report.Skipped,
		"mean_sharpe": report.MeanSharpe,
	}).Info("Walk-forward completed")

	return report, nil
}

func (e *Evaluator) runWindow(ctx context.Context, ds *contracts.Dataset, w Window) (contracts.WindowResult, error) {
	train, purged := Purge(ds.Slice(w.TrainStart, w.TrainEnd), ds.Horizon)
	test := ds.Slice(w.TrainEnd, w.TestEnd)

	result := contracts.WindowResult{
		TrainStart: w.TrainStart,
		TrainEnd:   w.TrainEnd,
		TestStart:  w.TrainEnd,
		TestEnd:    w.TestEnd,
		TrainRows:  len(train),
		TestRows:   len(test),
		PurgedRows: purged,
	}

	if len(train) < e.config.MinTrainRows || len(test) < e.config.MinTestRows {
		result.Skipped = true
		result.SkipReason = fmt.Sprintf("train=%d (min %d), test=%d (min %d)",
			len(train), e.config.MinTrainRows, len(test), e.config.MinTestRows)
		e.logger.WithFields(map[string]interface{}{
			"train_start": w.TrainStart.Format("2006-01-02"),
			"reason":      result.SkipReason,
		}).Debug("Window skipped")
		return result, nil
	}

	model, err := e.trainer.Fit(ctx, train)
	if err != nil {
		return result, fmt.Errorf("window %s: %w", w.TrainStart.Format("2006-01-02"), err)
	}

	X, _ := s3_model.Matrix(test)
	probs, err := model.PredictProbaBatch(X)
	if err != nil {
		return result, fmt.Errorf("window %s: %w", w.TrainStart.Format("2006-01-02"), err)
	}

	returns := make([]float64, len(test))
	for i, r := range test {
		if probs[i] >= s3_model.ClassThreshold {
			returns[i] = r.ForwardReturn
		}
	}
	daily := DailyMeans(test, returns)
	result.Sharpe = Sharpe(daily)
	if len(daily) > 0 {
		result.MeanDailyReturn = stat.Mean(daily, nil)
	}

	e.logger.WithFields(map[string]interface{}{
		"train_start": w.TrainStart.Format("2006-01-02"),
		"test_end":    w.TestEnd.Format("2006-01-02"),
		"sharpe":      result.Sharpe,
	}).Info("Window evaluated")

	return result, nil
}

// Purge drops training rows dated on the last horizon trading dates of the slice.
// Their forward labels are realized inside the following test window.
func Purge(train []contracts.LabeledRow, horizon int) ([]contracts.LabeledRow, int) {
	if horizon <= 0 || len(train) == 0 {
		return train, 0
	}

	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, r := range train {
		if _, ok := seen[r.Date]; !ok {
			seen[r.Date] = struct{}{}
			dates = append(dates, r.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if horizon >= len(dates) {
		return nil, len(train)
	}
	cutoff := dates[len(dates)-horizon]

	kept := make([]contracts.LabeledRow, 0, len(train))
	for _, r := range train {
		if r.Date.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept, len(train) - len(kept)
}

// DailyMeans averages per-row values by row date, in date order
func DailyMeans(rows []contracts.LabeledRow, values []float64) []float64 {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for i, r := range rows {
		sums[r.Date] += values[i]
		counts[r.Date]++
	}

	dates := make([]time.Time, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = sums[d] / float64(counts[d])
	}
	return out
}

// Sharpe is mean/sample-std of daily returns scaled by sqrt(252).
// Fewer than two observations or zero deviation yield 0.
func Sharpe(daily []float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(daily, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(TradingDays)
}
