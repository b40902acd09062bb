package s3_model

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
)

// DefaultTestFraction is the held-out share of the chronological split
const DefaultTestFraction = 0.2

// TrainResult is a fitted model with its held-out evaluation
type TrainResult struct {
	Model        *GBM
	FeatureNames []string
	Metrics      contracts.ModelMetrics
	TrainEnd     time.Time // first date of the held-out split
}

// Trainer fits classifiers on chronologically split datasets
// ⭐ SSOT: the train/test split is defined only here
type Trainer struct {
	params       Params
	testFraction float64
	metrics      *metrics.Recorder
	logger       *logger.Logger
}

// NewTrainer creates a new trainer
func NewTrainer(params Params, testFraction float64, rec *metrics.Recorder, log *logger.Logger) *Trainer {
	if testFraction <= 0 || testFraction >= 1 {
		testFraction = DefaultTestFraction
	}
	return &Trainer{
		params:       params,
		testFraction: testFraction,
		metrics:      rec,
		logger:       log.Module("trainer"),
	}
}

// Params returns the hyperparameters in use
func (t *Trainer) Params() Params {
	return t.params
}

// WithParams returns a trainer sharing everything but the hyperparameters
func (t *Trainer) WithParams(params Params) *Trainer {
	clone := *t
	clone.params = params
	return &clone
}

// Split sorts rows by date and cuts them by position, never shuffling
func Split(rows []contracts.LabeledRow, testFraction float64) (train, test []contracts.LabeledRow) {
	sorted := make([]contracts.LabeledRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	cut := int(float64(len(sorted)) * (1 - testFraction))
	return sorted[:cut], sorted[cut:]
}

// Train fits on the first part of the dataset and evaluates on the rest
func (t *Trainer) Train(ctx context.Context, ds *contracts.Dataset) (*TrainResult, error) {
	start := time.Now()

	train, test := Split(ds.Rows, t.testFraction)
	if len(train) == 0 || len(test) == 0 {
		return nil, fmt.Errorf("%d rows cannot be split for training: %w", len(ds.Rows), contracts.ErrDataUnavailable)
	}

	model, err := t.Fit(ctx, train)
	if err != nil {
		return nil, err
	}

	X, y := Matrix(test)
	probs, err := model.PredictProbaBatch(X)
	if err != nil {
		return nil, fmt.Errorf("predict held-out: %w", err)
	}

	m, err := Evaluate(y, probs)
	if err != nil {
		return nil, err
	}
	m.TrainRows = len(train)
	m.TestRows = len(test)

	t.metrics.ObserveStage("train", time.Since(start))
	t.logger.WithFields(map[string]interface{}{
		"train_rows": m.TrainRows,
		"test_rows":  m.TestRows,
		"accuracy":   m.Accuracy,
		"f1":         m.F1,
		"roc_auc":    m.AUC,
		"duration":   time.Since(start).String(),
	}).Info("Model trained")

	return &TrainResult{
		Model:        model,
		FeatureNames: append([]string{}, ds.FeatureNames...),
		Metrics:      m,
		TrainEnd:     test[0].Date,
	}, nil
}

// Fit trains a fresh model on rows with the trainer's hyperparameters
func (t *Trainer) Fit(ctx context.Context, rows []contracts.LabeledRow) (*GBM, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no training rows: %w", contracts.ErrDataUnavailable)
	}

	X, y := Matrix(rows)
	model := NewGBM(t.params)
	if err := model.Fit(ctx, X, y); err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	return model, nil
}

// Matrix extracts the feature matrix and class labels
func Matrix(rows []contracts.LabeledRow) ([][]float64, []int) {
	X := make([][]float64, len(rows))
	y := make([]int, len(rows))
	for i, r := range rows {
		X[i] = r.Values
		y[i] = r.TargetClass
	}
	return X, y
}
