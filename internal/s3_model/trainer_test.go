package s3_model

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

func dataset(n int) *contracts.Dataset {
	X, y := separable(n, 11)
	rows := make([]contracts.LabeledRow, n)
	for i := range rows {
		rows[i] = contracts.LabeledRow{
			StockID:     1 + i%3,
			Date:        time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i/3),
			Values:      X[i],
			Target:      X[i][0] - 0.5,
			TargetClass: y[i],
		}
	}
	return &contracts.Dataset{FeatureNames: []string{"f0", "f1"}, Rows: rows, Horizon: 5, Mode: contracts.LabelRaw}
}

func TestSplitIsChronological(t *testing.T) {
	ds := dataset(100)
	// shuffle order to prove Split sorts
	rows := append([]contracts.LabeledRow{}, ds.Rows...)
	rows[0], rows[99] = rows[99], rows[0]

	train, test := Split(rows, 0.2)
	require.Len(t, train, 80)
	require.Len(t, test, 20)

	lastTrain := train[len(train)-1].Date
	for _, r := range test {
		assert.False(t, r.Date.Before(lastTrain))
	}
}

func TestTrainerTrain(t *testing.T) {
	trainer := NewTrainer(smallParams(), 0, nil, logger.NewNop())

	result, err := trainer.Train(context.Background(), dataset(300))
	require.NoError(t, err)

	assert.Equal(t, 240, result.Metrics.TrainRows)
	assert.Equal(t, 60, result.Metrics.TestRows)
	assert.Greater(t, result.Metrics.Accuracy, 0.9)
	assert.Equal(t, []string{"f0", "f1"}, result.FeatureNames)
	assert.Equal(t, 2, result.Model.NumFeatures)
}

func TestTrainerRejectsTinyDataset(t *testing.T) {
	trainer := NewTrainer(smallParams(), 0.2, nil, logger.NewNop())

	_, err := trainer.Train(context.Background(), dataset(1))
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
}

func TestTunerKeepsBestTrial(t *testing.T) {
	trainer := NewTrainer(smallParams(), 0.2, nil, logger.NewNop())
	tuner := NewTuner(trainer, 7, logger.NewNop())

	result, err := tuner.Tune(context.Background(), dataset(150), 3)
	require.NoError(t, err)
	require.Len(t, result.Trials, 3)

	for _, trial := range result.Trials {
		assert.LessOrEqual(t, trial.Accuracy, result.BestAccuracy)
		assert.GreaterOrEqual(t, trial.Params.NEstimators, 100)
		assert.LessOrEqual(t, trial.Params.MaxDepth, 10)
		assert.Equal(t, int64(42), trial.Params.Seed)
	}

	_, err = tuner.Tune(context.Background(), dataset(150), 0)
	assert.Error(t, err)
}

func TestWriteBestParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "best_params.yaml")
	params := smallParams()
	require.NoError(t, WriteBestParams(path, params))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded bestParamsFile
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, params, decoded.Model.Params)
	assert.Contains(t, string(data), "n_estimators: 30")
}
