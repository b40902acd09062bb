package s1_features

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
)

// Config holds indicator windows
type Config struct {
	SMAWindows []int // 20 and 50 are always computed; other windows go to Extra
	EMASpan    int
	RSIWindow  int
	VolWindow  int
	Lags       []int // return_1d lags
}

// DefaultConfig returns the production indicator windows
func DefaultConfig() Config {
	return Config{
		SMAWindows: []int{20, 50},
		EMASpan:    20,
		RSIWindow:  14,
		VolWindow:  20,
	}
}

// PriceHistory loads chronological price bars for every stock
type PriceHistory interface {
	GetAllHistory(ctx context.Context) (map[int][]contracts.PriceBar, error)
}

// FeatureWriter replaces the features_daily contents
type FeatureWriter interface {
	ReplaceFeatures(ctx context.Context, rows []contracts.FeatureRow) (int, error)
}

// Builder computes technical indicators per stock
// ⭐ SSOT: indicator columns are computed only here
type Builder struct {
	config  Config
	prices  PriceHistory
	writer  FeatureWriter
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewBuilder creates a new feature builder.
// prices and writer may be nil when only Compute is used.
func NewBuilder(config Config, prices PriceHistory, writer FeatureWriter, rec *metrics.Recorder, log *logger.Logger) *Builder {
	return &Builder{
		config:  config,
		prices:  prices,
		writer:  writer,
		metrics: rec,
		logger:  log.Module("features"),
	}
}

// Compute derives feature rows from one stock's bars.
// Rows with any undefined indicator are dropped, never imputed.
func (b *Builder) Compute(stockID int, bars []contracts.PriceBar) ([]contracts.FeatureRow, error) {
	sorted := make([]contracts.PriceBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	closes := make([]float64, len(sorted))
	for i, bar := range sorted {
		if bar.Close <= 0 || math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) {
			return nil, fmt.Errorf("stock %d close %v on %s: %w",
				stockID, bar.Close, bar.Date.Format("2006-01-02"), contracts.ErrSchemaMismatch)
		}
		closes[i] = bar.Close
	}

	ret1 := Returns(closes, 1)
	columns := map[string][]float64{
		contracts.FeatureReturn1D:      ret1,
		contracts.FeatureReturn5D:      Returns(closes, 5),
		contracts.FeatureReturn20D:     Returns(closes, 20),
		contracts.FeatureSMA20:         SMA(closes, 20),
		contracts.FeatureSMA50:         SMA(closes, 50),
		contracts.FeatureEMA20:         EMA(closes, b.config.EMASpan),
		contracts.FeatureRSI14:         RSI(closes, b.config.RSIWindow),
		contracts.FeatureVolatility20D: RollingStd(ret1, b.config.VolWindow),
	}

	extra := make(map[string][]float64)
	for _, w := range b.config.SMAWindows {
		if w == 20 || w == 50 {
			continue
		}
		extra[fmt.Sprintf("sma_%d", w)] = SMA(closes, w)
	}
	for _, k := range b.config.Lags {
		extra[fmt.Sprintf("%s_lag%d", contracts.FeatureReturn1D, k)] = Lag(ret1, k)
	}

	rows := make([]contracts.FeatureRow, 0, len(sorted))
	for t, bar := range sorted {
		if !defined(columns, t) || !defined(extra, t) {
			continue
		}

		row := contracts.FeatureRow{
			StockID:       stockID,
			Date:          bar.Date,
			Return1D:      columns[contracts.FeatureReturn1D][t],
			Return5D:      columns[contracts.FeatureReturn5D][t],
			Return20D:     columns[contracts.FeatureReturn20D][t],
			SMA20:         columns[contracts.FeatureSMA20][t],
			SMA50:         columns[contracts.FeatureSMA50][t],
			EMA20:         columns[contracts.FeatureEMA20][t],
			RSI14:         columns[contracts.FeatureRSI14][t],
			Volatility20D: columns[contracts.FeatureVolatility20D][t],
		}
		if len(extra) > 0 {
			row.Extra = make(map[string]float64, len(extra))
			for name, values := range extra {
				row.Extra[name] = values[t]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Rebuild recomputes features_daily from the full price history.
// A stock that fails is logged and skipped; the table is replaced in one swap.
func (b *Builder) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()

	history, err := b.prices.GetAllHistory(ctx)
	if err != nil {
		return 0, fmt.Errorf("load price history: %w", err)
	}

	stockIDs := make([]int, 0, len(history))
	for id := range history {
		stockIDs = append(stockIDs, id)
	}
	sort.Ints(stockIDs)

	var all []contracts.FeatureRow
	failed := 0
	for _, id := range stockIDs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		rows, err := b.Compute(id, history[id])
		if err != nil {
			failed++
			b.logger.WithError(err).WithField("stock_id", id).Warn("Feature computation failed, skipping stock")
			continue
		}
		if len(rows) == 0 {
			b.logger.WithFields(map[string]interface{}{
				"stock_id": id,
				"bars":     len(history[id]),
			}).Debug("Not enough history for features")
			continue
		}
		all = append(all, rows...)
	}

	written, err := b.writer.ReplaceFeatures(ctx, all)
	if err != nil {
		return 0, fmt.Errorf("replace features: %w", err)
	}

	b.metrics.RecordRows("features_daily", written)
	b.metrics.ObserveStage("feature_rebuild", time.Since(start))

	b.logger.WithFields(map[string]interface{}{
		"stocks":   len(stockIDs),
		"failed":   failed,
		"rows":     written,
		"duration": time.Since(start).String(),
	}).Info("Feature rebuild completed")

	return written, nil
}

func defined(columns map[string][]float64, t int) bool {
	for _, values := range columns {
		if math.IsNaN(values[t]) || math.IsInf(values[t], 0) {
			return false
		}
	}
	return true
}
