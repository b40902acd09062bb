package s3_model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

func fittedArtifact(t *testing.T, version string) *Artifact {
	t.Helper()
	X, y := separable(100, 9)
	m := NewGBM(smallParams())
	require.NoError(t, m.Fit(context.Background(), X, y))
	return &Artifact{
		Meta:  contracts.ArtifactMeta{Version: version, FeatureNames: []string{"f0", "f1"}, Metrics: contracts.ModelMetrics{Accuracy: 0.9}},
		Model: m,
	}
}

func TestArtifactStoreLifecycle(t *testing.T) {
	dir := t.TempDir()
	store := NewArtifactStore(dir, logger.NewNop())

	_, err := store.LoadActive()
	assert.ErrorIs(t, err, contracts.ErrModelUnavailable)

	require.NoError(t, store.Save(fittedArtifact(t, "20240101_000000")))
	require.NoError(t, store.Save(fittedArtifact(t, "20240201_000000")))
	assert.FileExists(t, filepath.Join(dir, "metrics_20240101_000000.json"))

	// without a manifest the newest version wins
	version, err := store.ActiveVersion()
	require.NoError(t, err)
	assert.Equal(t, "20240201_000000", version)

	// the manifest overrides recency
	require.NoError(t, store.Activate("20240101_000000"))
	active, err := store.LoadActive()
	require.NoError(t, err)
	assert.Equal(t, "20240101_000000", active.Meta.Version)
	assert.Equal(t, []string{"f0", "f1"}, active.Meta.FeatureNames)

	versions, err := store.Versions()
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101_000000", "20240201_000000"}, versions)
}

func TestArtifactStoreIsImmutable(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), logger.NewNop())
	require.NoError(t, store.Save(fittedArtifact(t, "v1")))
	assert.Error(t, store.Save(fittedArtifact(t, "v1")))
	assert.Error(t, store.Activate("missing"))
}

func TestArtifactStoreRejectsCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_cls_bad.json"), []byte("{"), 0o644))

	_, err := NewArtifactStore(dir, logger.NewNop()).LoadActive()
	assert.ErrorIs(t, err, contracts.ErrModelUnavailable)
}

func TestNewVersionUsesUTC(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), logger.NewNop())
	ist := time.FixedZone("IST", 5*3600+1800)
	store.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, ist) }
	assert.Equal(t, "20240301_040000", store.NewVersion())
}

func TestNewVersionSkipsSavedVersionsInSameSecond(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), logger.NewNop())
	store.now = func() time.Time { return time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC) }

	var saved []string
	for i := 0; i < 3; i++ {
		version := store.NewVersion()
		require.NoError(t, store.Save(fittedArtifact(t, version)))
		saved = append(saved, version)
	}
	assert.Equal(t, []string{"20240301_040000", "20240301_040000_02", "20240301_040000_03"}, saved)

	versions, err := store.Versions()
	require.NoError(t, err)
	assert.Equal(t, saved, versions)

	store.now = func() time.Time { return time.Date(2024, 3, 1, 4, 0, 1, 0, time.UTC) }
	assert.Equal(t, "20240301_040001", store.NewVersion())
}

func TestExperimentLogAppends(t *testing.T) {
	log := NewExperimentLog(filepath.Join(t.TempDir(), "runs", "experiments.jsonl"))

	records, err := log.Records()
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, log.Append(ExperimentRecord{RunID: "a", Kind: "train", Params: smallParams()}))
	require.NoError(t, log.Append(ExperimentRecord{RunID: "b", Kind: "tune"}))

	records, err = log.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].RunID)
	assert.Equal(t, 30, records[0].Params.NEstimators)
	assert.Equal(t, "b", records[1].RunID)
}

type fakeBuilder struct {
	ds  *contracts.Dataset
	err error
}

func (f *fakeBuilder) Build(context.Context) (*contracts.Dataset, error) {
	return f.ds, f.err
}

type fakeMirror struct {
	version string
}

func (f *fakeMirror) SetActive(_ context.Context, version string) error {
	f.version = version
	return nil
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	store := NewArtifactStore(dir, logger.NewNop())
	experiments := NewExperimentLog(filepath.Join(dir, "experiments.jsonl"))
	mirror := &fakeMirror{}
	trainer := NewTrainer(smallParams(), 0.2, nil, logger.NewNop())

	pipeline := NewPipeline(&fakeBuilder{ds: dataset(200)}, trainer, store, experiments, mirror, "abc123", logger.NewNop())
	meta, err := pipeline.Run(context.Background(), true)
	require.NoError(t, err)

	assert.NotEmpty(t, meta.RunID)
	assert.Equal(t, "abc123", meta.ConfigHash)
	assert.Equal(t, meta.Version, mirror.version)

	active, err := store.LoadActive()
	require.NoError(t, err)
	assert.Equal(t, meta.Version, active.Meta.Version)
	require.Len(t, active.Meta.Importance, 2)
	assert.Equal(t, "f0", active.Meta.Importance[0].Feature)

	records, err := experiments.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, meta.RunID, records[0].RunID)
}

func TestPipelinePropagatesDatasetError(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), logger.NewNop())
	trainer := NewTrainer(smallParams(), 0.2, nil, logger.NewNop())
	boom := errors.New("boom")

	pipeline := NewPipeline(&fakeBuilder{err: boom}, trainer, store, NewExperimentLog(filepath.Join(t.TempDir(), "e.jsonl")), nil, "", logger.NewNop())
	_, err := pipeline.Run(context.Background(), false)
	assert.ErrorIs(t, err, boom)
}
