package contracts

import (
	"context"
	"time"
)

// MarketDataProvider fetches raw market data (S0)
// ⭐ SSOT: providers return ErrDataUnavailable, ErrSchemaMismatch or ErrTransientFetch
type MarketDataProvider interface {
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]PriceBar, error)
	FetchIndexLevels(ctx context.Context, symbol string, from, to time.Time) ([]IndexLevel, error)
}

// NewsProvider fetches headlines (S0)
type NewsProvider interface {
	FetchNews(ctx context.Context, symbol string) ([]NewsItem, error)
}

// QualityGate checks data coverage (S0)
type QualityGate interface {
	Check(ctx context.Context, date time.Time) (*DataQualitySnapshot, error)
}

// FeatureRebuilder recomputes features_daily (S1)
type FeatureRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// FeatureStoreRefresher refreshes the serving snapshot (S1)
type FeatureStoreRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// DatasetBuilder assembles labeled rows (S2)
type DatasetBuilder interface {
	Build(ctx context.Context) (*Dataset, error)
}

// PredictionLogWriter appends to prediction_logs (S5)
type PredictionLogWriter interface {
	InsertPredictionLog(ctx context.Context, entry PredictionLog) (int64, error)
}

// FeatureStoreReader returns the latest serving row for a symbol (S5)
type FeatureStoreReader interface {
	LatestFeatureRow(ctx context.Context, symbol string) (*FeatureStoreRow, error)
}

// EventPublisher forwards serialized events to a message bus
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}
