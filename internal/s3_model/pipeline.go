package s3_model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

// ManifestMirror records the active version outside the artifact directory
type ManifestMirror interface {
	SetActive(ctx context.Context, version string) error
}

// Pipeline runs assemble -> train -> persist -> activate
type Pipeline struct {
	dataset    contracts.DatasetBuilder
	trainer    *Trainer
	store      *ArtifactStore
	experiment *ExperimentLog
	mirror     ManifestMirror
	configHash string
	logger     *logger.Logger
}

// NewPipeline creates a training pipeline.
// mirror may be nil.
func NewPipeline(
	dataset contracts.DatasetBuilder,
	trainer *Trainer,
	store *ArtifactStore,
	experiment *ExperimentLog,
	mirror ManifestMirror,
	configHash string,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		dataset:    dataset,
		trainer:    trainer,
		store:      store,
		experiment: experiment,
		mirror:     mirror,
		configHash: configHash,
		logger:     log.Module("trainer"),
	}
}

// Run trains a new model version and optionally activates it
func (p *Pipeline) Run(ctx context.Context, activate bool) (*contracts.ArtifactMeta, error) {
	ds, err := p.dataset.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("assemble dataset: %w", err)
	}

	result, err := p.trainer.Train(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	importance, err := result.Model.FeatureImportance(result.FeatureNames)
	if err != nil {
		return nil, err
	}

	meta := contracts.ArtifactMeta{
		Version:      p.store.NewVersion(),
		RunID:        uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		FeatureNames: result.FeatureNames,
		Horizon:      ds.Horizon,
		LabelMode:    ds.Mode,
		ConfigHash:   p.configHash,
		Metrics:      result.Metrics,
		Importance:   importance,
	}

	if err := p.store.Save(&Artifact{Meta: meta, Model: result.Model}); err != nil {
		return nil, err
	}

	if err := p.experiment.Append(ExperimentRecord{
		RunID:      meta.RunID,
		Kind:       "train",
		Timestamp:  meta.CreatedAt,
		Version:    meta.Version,
		ConfigHash: meta.ConfigHash,
		Horizon:    meta.Horizon,
		LabelMode:  meta.LabelMode,
		Params:     p.trainer.Params(),
		Metrics:    meta.Metrics,
	}); err != nil {
		return nil, err
	}

	if activate {
		if err := p.store.Activate(meta.Version); err != nil {
			return nil, err
		}
		if p.mirror != nil {
			if err := p.mirror.SetActive(ctx, meta.Version); err != nil {
				p.logger.WithError(err).WithField("version", meta.Version).Warn("Manifest mirror update failed")
			}
		}
	}

	return &meta, nil
}
