package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s0_data/collector"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

type fakeIngester struct {
	prices   []collector.FetchResult
	from, to time.Time
	symbols  []string
	indexErr error
}

func (f *fakeIngester) FetchAllPrices(_ context.Context, from, to time.Time) ([]collector.FetchResult, error) {
	f.from, f.to = from, to
	return f.prices, nil
}

func (f *fakeIngester) FetchAllIndices(context.Context, time.Time, time.Time) ([]collector.FetchResult, error) {
	return nil, f.indexErr
}

func (f *fakeIngester) FetchNews(_ context.Context, symbols []string) ([]collector.FetchResult, error) {
	f.symbols = symbols
	return nil, nil
}

type fakeRebuilder struct{ err error }

func (f fakeRebuilder) Rebuild(context.Context) (int, error) { return 42, f.err }

type fakeRefresher struct{ err error }

func (f fakeRefresher) Refresh(context.Context) (int, error) { return 3, f.err }

type fakePipeline struct {
	activate bool
	err      error
}

func (f *fakePipeline) Run(_ context.Context, activate bool) (*contracts.ArtifactMeta, error) {
	f.activate = activate
	if f.err != nil {
		return nil, f.err
	}
	return &contracts.ArtifactMeta{Version: "20240608_060000"}, nil
}

func TestSchedulesParseWithSeconds(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	log := logger.NewNop()

	for _, s := range []string{
		NewDailyIngestJob(&fakeIngester{}, nil, log).Schedule(),
		NewFeatureRebuildJob(fakeRebuilder{}, log).Schedule(),
		NewFeatureStoreJob(fakeRefresher{}, log).Schedule(),
		NewRetrainJob(&fakePipeline{}, nil, log).Schedule(),
	} {
		_, err := parser.Parse(s)
		assert.NoError(t, err, s)
	}
}

func TestDailyIngestJob(t *testing.T) {
	ing := &fakeIngester{prices: []collector.FetchResult{
		{Entity: "TCS", Inserted: 3},
		{Entity: "INFY", Error: errors.New("timeout")},
	}}
	job := NewDailyIngestJob(ing, []string{"TCS"}, logger.NewNop())
	now := time.Date(2024, 6, 14, 16, 30, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.AddDate(0, 0, -IngestLookbackDays), ing.from)
	assert.Equal(t, now, ing.to)
	assert.Equal(t, []string{"TCS"}, ing.symbols)
	assert.Equal(t, "daily_ingest", job.Name())
}

func TestDailyIngestJobFailures(t *testing.T) {
	allBad := &fakeIngester{prices: []collector.FetchResult{{Entity: "TCS", Error: errors.New("x")}}}
	assert.Error(t, NewDailyIngestJob(allBad, nil, logger.NewNop()).Run(context.Background()))

	indexErr := &fakeIngester{indexErr: context.Canceled}
	err := NewDailyIngestJob(indexErr, nil, logger.NewNop()).Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeatureJobs(t *testing.T) {
	log := logger.NewNop()
	assert.NoError(t, NewFeatureRebuildJob(fakeRebuilder{}, log).Run(context.Background()))
	assert.Error(t, NewFeatureRebuildJob(fakeRebuilder{err: errors.New("db")}, log).Run(context.Background()))
	assert.NoError(t, NewFeatureStoreJob(fakeRefresher{}, log).Run(context.Background()))

	err := NewFeatureStoreJob(fakeRefresher{err: fmt.Errorf("x: %w", contracts.ErrDatabaseWrite)}, log).Run(context.Background())
	assert.ErrorIs(t, err, contracts.ErrDatabaseWrite)
}

func TestRetrainJob(t *testing.T) {
	p := &fakePipeline{}
	var activated string
	job := NewRetrainJob(p, func(meta *contracts.ArtifactMeta) { activated = meta.Version }, logger.NewNop())

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, p.activate)
	assert.Equal(t, "20240608_060000", activated)

	failing := NewRetrainJob(&fakePipeline{err: contracts.ErrDataUnavailable}, nil, logger.NewNop())
	assert.ErrorIs(t, failing.Run(context.Background()), contracts.ErrDataUnavailable)
}
