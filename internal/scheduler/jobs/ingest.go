package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/s0_data/collector"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
)

// IngestLookbackDays re-fetches recent days so late provider corrections land.
// Inserts are idempotent on (stock_id, date).
const IngestLookbackDays = 10

// Ingester fetches raw market data
type Ingester interface {
	FetchAllPrices(ctx context.Context, from, to time.Time) ([]collector.FetchResult, error)
	FetchAllIndices(ctx context.Context, from, to time.Time) ([]collector.FetchResult, error)
	FetchNews(ctx context.Context, symbols []string) ([]collector.FetchResult, error)
}

// DailyIngestJob refreshes prices, indices and news after market close
// ⭐ SSOT: daily ingestion is scheduled only by this job
type DailyIngestJob struct {
	ingester    Ingester
	newsSymbols []string
	now         func() time.Time
	logger      *logger.Logger
}

// NewDailyIngestJob creates a new daily ingest job
func NewDailyIngestJob(ing Ingester, newsSymbols []string, log *logger.Logger) *DailyIngestJob {
	return &DailyIngestJob{
		ingester:    ing,
		newsSymbols: newsSymbols,
		now:         time.Now,
		logger:      log.Module("job_daily_ingest"),
	}
}

// Name returns the job name
func (j *DailyIngestJob) Name() string {
	return "daily_ingest"
}

// Schedule returns weekdays at 16:30, after the NSE close
func (j *DailyIngestJob) Schedule() string {
	return "0 30 16 * * 1-5"
}

// Run fetches the lookback window.
// Per-entity failures are logged by the collector and do not fail the job.
func (j *DailyIngestJob) Run(ctx context.Context) error {
	to := j.now()
	from := to.AddDate(0, 0, -IngestLookbackDays)

	prices, err := j.ingester.FetchAllPrices(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	if err := allFailed("prices", prices); err != nil {
		return err
	}

	if _, err := j.ingester.FetchAllIndices(ctx, from, to); err != nil {
		return fmt.Errorf("fetch indices: %w", err)
	}

	if _, err := j.ingester.FetchNews(ctx, j.newsSymbols); err != nil {
		return fmt.Errorf("fetch news: %w", err)
	}

	summary := collector.Summarize(prices)
	j.logger.WithFields(map[string]interface{}{
		"success":  summary.Success,
		"failed":   summary.Failed,
		"inserted": summary.Inserted,
	}).Info("Daily ingest completed")
	return nil
}

// allFailed reports an error when every entity failed, which points at the provider
func allFailed(source string, results []collector.FetchResult) error {
	if len(results) == 0 {
		return nil
	}
	summary := collector.Summarize(results)
	if summary.Success == 0 {
		return fmt.Errorf("%s: all %d entities failed", source, summary.Failed)
	}
	return nil
}
