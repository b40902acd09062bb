package jobs

import (
	"context"
	"fmt"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

// FeatureRebuildJob recomputes features_daily
type FeatureRebuildJob struct {
	builder contracts.FeatureRebuilder
	logger  *logger.Logger
}

// NewFeatureRebuildJob creates a new feature rebuild job
func NewFeatureRebuildJob(b contracts.FeatureRebuilder, log *logger.Logger) *FeatureRebuildJob {
	return &FeatureRebuildJob{builder: b, logger: log.Module("job_feature_rebuild")}
}

// Name returns the job name
func (j *FeatureRebuildJob) Name() string {
	return "feature_rebuild"
}

// Schedule returns weekdays at 17:00
func (j *FeatureRebuildJob) Schedule() string {
	return "0 0 17 * * 1-5"
}

// Run rebuilds every stock's indicator rows
func (j *FeatureRebuildJob) Run(ctx context.Context) error {
	n, err := j.builder.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild features: %w", err)
	}
	j.logger.WithField("rows", n).Info("Feature rebuild completed")
	return nil
}

// FeatureStoreJob refreshes the serving snapshot
type FeatureStoreJob struct {
	refresher contracts.FeatureStoreRefresher
	logger    *logger.Logger
}

// NewFeatureStoreJob creates a new feature store refresh job
func NewFeatureStoreJob(r contracts.FeatureStoreRefresher, log *logger.Logger) *FeatureStoreJob {
	return &FeatureStoreJob{refresher: r, logger: log.Module("job_feature_store")}
}

// Name returns the job name
func (j *FeatureStoreJob) Name() string {
	return "feature_store_refresh"
}

// Schedule returns weekdays at 17:15
func (j *FeatureStoreJob) Schedule() string {
	return "0 15 17 * * 1-5"
}

// Run upserts the latest row per stock
func (j *FeatureStoreJob) Run(ctx context.Context) error {
	n, err := j.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh feature store: %w", err)
	}
	j.logger.WithField("stocks", n).Info("Feature store refresh completed")
	return nil
}
