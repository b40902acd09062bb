package s3_model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

// TrialResult is one sampled configuration and its held-out accuracy
type TrialResult struct {
	Trial    int     `json:"trial"`
	Params   Params  `json:"params"`
	Accuracy float64 `json:"accuracy"`
}

// TuneResult is the outcome of a search
type TuneResult struct {
	Best         Params        `json:"best"`
	BestAccuracy float64       `json:"best_accuracy"`
	Trials       []TrialResult `json:"trials"`
}

// Tuner runs a seeded random search over GBM hyperparameters
type Tuner struct {
	trainer *Trainer
	seed    int64
	logger  *logger.Logger
}

// NewTuner creates a tuner that trains with the given trainer's split
func NewTuner(trainer *Trainer, seed int64, log *logger.Logger) *Tuner {
	return &Tuner{
		trainer: trainer,
		seed:    seed,
		logger:  log.Module("tuner"),
	}
}

// Tune evaluates trials sampled configurations and keeps the most accurate
func (t *Tuner) Tune(ctx context.Context, ds *contracts.Dataset, trials int) (*TuneResult, error) {
	if trials < 1 {
		return nil, fmt.Errorf("trials must be at least 1")
	}

	rng := rand.New(rand.NewSource(t.seed))
	base := t.trainer.Params()
	result := &TuneResult{BestAccuracy: -1}

	for i := 0; i < trials; i++ {
		params := sampleParams(rng, base)

		trained, err := t.trainer.WithParams(params).Train(ctx, ds)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, err)
		}

		acc := trained.Metrics.Accuracy
		result.Trials = append(result.Trials, TrialResult{Trial: i, Params: params, Accuracy: acc})
		if acc > result.BestAccuracy {
			result.BestAccuracy = acc
			result.Best = params
		}

		t.logger.WithFields(map[string]interface{}{
			"trial":    i,
			"accuracy": acc,
			"best":     result.BestAccuracy,
		}).Info("Tuning trial finished")
	}

	return result, nil
}

// sampleParams draws from the search space, keeping the base seed
func sampleParams(rng *rand.Rand, base Params) Params {
	return Params{
		NEstimators:     100 + rng.Intn(401),
		MaxDepth:        3 + rng.Intn(8),
		LearningRate:    logUniform(rng, 0.01, 0.3),
		Subsample:       0.5 + rng.Float64()*0.5,
		ColsampleByTree: 0.5 + rng.Float64()*0.5,
		Lambda:          logUniform(rng, 1e-8, 10),
		Gamma:           base.Gamma,
		MinChildWeight:  float64(1 + rng.Intn(10)),
		Seed:            base.Seed,
	}
}

func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	return math.Exp(math.Log(lo) + rng.Float64()*(math.Log(hi)-math.Log(lo)))
}

// bestParamsFile is the YAML shape of a tuning result, mergeable into the model config
type bestParamsFile struct {
	Model struct {
		Params Params `yaml:"params"`
	} `yaml:"model"`
}

// WriteBestParams writes params as a model config YAML snippet
func WriteBestParams(path string, params Params) error {
	var out bestParamsFile
	out.Model.Params = params

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encode best params: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create params dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
