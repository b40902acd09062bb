package jobs

import (
	"context"
	"fmt"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

// TrainingPipeline assembles, trains and persists a model
type TrainingPipeline interface {
	Run(ctx context.Context, activate bool) (*contracts.ArtifactMeta, error)
}

// RetrainJob trains and activates a new model weekly
type RetrainJob struct {
	pipeline TrainingPipeline
	onActive func(meta *contracts.ArtifactMeta)
	logger   *logger.Logger
}

// NewRetrainJob creates a new retrain job.
// onActive runs after activation and may be nil.
func NewRetrainJob(p TrainingPipeline, onActive func(meta *contracts.ArtifactMeta), log *logger.Logger) *RetrainJob {
	return &RetrainJob{pipeline: p, onActive: onActive, logger: log.Module("job_weekly_retrain")}
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "weekly_retrain"
}

// Schedule returns Saturdays at 06:00
func (j *RetrainJob) Schedule() string {
	return "0 0 6 * * 6"
}

// Run trains and activates a new version
func (j *RetrainJob) Run(ctx context.Context) error {
	meta, err := j.pipeline.Run(ctx, true)
	if err != nil {
		return fmt.Errorf("retrain: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"version":  meta.Version,
		"accuracy": meta.Metrics.Accuracy,
		"auc":      meta.Metrics.AUC,
	}).Info("Weekly retrain completed")

	if j.onActive != nil {
		j.onActive(meta)
	}
	return nil
}
