package s1_features

import (
	"context"
	"fmt"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
	"github.com/adishahh/indian-market-ml-platform/pkg/redis"
)

// storeLookback is the number of recent bars used for a serving snapshot
const storeLookback = 100

// StockLister lists the active stock master
type StockLister interface {
	GetActiveStocks(ctx context.Context) ([]contracts.Stock, error)
}

// RecentPrices returns the last n bars of a stock
type RecentPrices interface {
	GetRecent(ctx context.Context, stockID int, n int) ([]contracts.PriceBar, error)
}

// IndexLevelSource returns index levels keyed by index symbol
type IndexLevelSource interface {
	GetLevelsBySymbol(ctx context.Context) (map[string][]contracts.IndexLevel, error)
}

// SentimentSource returns the daily mean headline sentiment
type SentimentSource interface {
	DailySentiment(ctx context.Context) (map[time.Time]float64, error)
}

// StoreWriter upserts serving snapshots
type StoreWriter interface {
	UpsertStoreRow(ctx context.Context, row contracts.FeatureStoreRow) error
}

// CacheInvalidator drops cached serving rows
type CacheInvalidator interface {
	Delete(ctx context.Context, key string) error
}

// StoreRefresher refreshes the feature_store serving snapshot
// ⭐ SSOT: feature_store rows are produced only here
type StoreRefresher struct {
	builder   *Builder
	stocks    StockLister
	prices    RecentPrices
	indices   IndexLevelSource
	sentiment SentimentSource
	writer    StoreWriter
	cache     CacheInvalidator
	metrics   *metrics.Recorder
	logger    *logger.Logger
	now       func() time.Time
}

// StoreSources groups the readers the refresher needs
type StoreSources struct {
	Stocks    StockLister
	Prices    RecentPrices
	Indices   IndexLevelSource
	Sentiment SentimentSource
}

// NewStoreRefresher creates a new feature store refresher.
// cache and rec may be nil.
func NewStoreRefresher(
	builder *Builder,
	sources StoreSources,
	writer StoreWriter,
	cache CacheInvalidator,
	rec *metrics.Recorder,
	log *logger.Logger,
) *StoreRefresher {
	return &StoreRefresher{
		builder:   builder,
		stocks:    sources.Stocks,
		prices:    sources.Prices,
		indices:   sources.Indices,
		sentiment: sources.Sentiment,
		writer:    writer,
		cache:     cache,
		metrics:   rec,
		logger:    log.Module("feature_store"),
		now:       time.Now,
	}
}

// Refresh writes the latest snapshot for every active stock.
// Returns the number of stocks refreshed; per-stock failures are logged and skipped.
func (s *StoreRefresher) Refresh(ctx context.Context) (int, error) {
	start := s.now()

	stocks, err := s.stocks.GetActiveStocks(ctx)
	if err != nil {
		return 0, fmt.Errorf("load stocks: %w", err)
	}

	levels, err := s.indices.GetLevelsBySymbol(ctx)
	if err != nil {
		return 0, fmt.Errorf("load index levels: %w", err)
	}
	macro := IndexReturns(levels)

	daily, err := s.sentiment.DailySentiment(ctx)
	if err != nil {
		return 0, fmt.Errorf("load sentiment: %w", err)
	}
	sentiment := NewAuxSeries(daily)

	refreshed := 0
	for _, stock := range stocks {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}

		row, err := s.snapshot(ctx, stock, macro, sentiment)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", stock.Symbol).Warn("Feature store refresh failed, skipping stock")
			continue
		}

		if err := s.writer.UpsertStoreRow(ctx, *row); err != nil {
			s.logger.WithError(err).WithField("symbol", stock.Symbol).Warn("Feature store upsert failed")
			continue
		}

		if s.cache != nil {
			if err := s.cache.Delete(ctx, redis.FeatureRowKey(stock.Symbol)); err != nil {
				s.logger.WithError(err).WithField("symbol", stock.Symbol).Warn("Feature cache invalidation failed")
			}
		}
		refreshed++
	}

	s.metrics.RecordRows("feature_store", refreshed)
	s.metrics.ObserveStage("feature_store_refresh", s.now().Sub(start))

	s.logger.WithFields(map[string]interface{}{
		"stocks":    len(stocks),
		"refreshed": refreshed,
	}).Info("Feature store refreshed")

	return refreshed, nil
}

func (s *StoreRefresher) snapshot(
	ctx context.Context,
	stock contracts.Stock,
	macro map[string]*AuxSeries,
	sentiment *AuxSeries,
) (*contracts.FeatureStoreRow, error) {
	bars, err := s.prices.GetRecent(ctx, stock.ID, storeLookback)
	if err != nil {
		return nil, fmt.Errorf("load recent prices: %w", err)
	}

	rows, err := s.builder.Compute(stock.ID, bars)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%d bars: %w", len(bars), contracts.ErrNoFeatureData)
	}

	latest := rows[len(rows)-1]
	row := &contracts.FeatureStoreRow{
		FeatureRow: latest,
		Symbol:     stock.Symbol,
		Macro:      make(map[string]float64, len(macro)),
		Sentiment:  sentiment.At(latest.Date),
		CreatedAt:  s.now(),
	}
	for name, series := range macro {
		row.Macro[name] = series.At(latest.Date)
	}
	return row, nil
}
