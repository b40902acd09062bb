package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s0_data/quality"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
)

// StockStore reads and seeds the stock master
type StockStore interface {
	GetActiveStocks(ctx context.Context) ([]contracts.Stock, error)
	UpsertStocks(ctx context.Context, symbols []string) (int, error)
}

// PriceStore persists one stock's bars atomically
type PriceStore interface {
	InsertBars(ctx context.Context, stockID int, bars []contracts.PriceBar) (int, error)
}

// IndexStore persists index masters and levels
type IndexStore interface {
	EnsureIndex(ctx context.Context, symbol, name string) (int, error)
	InsertLevels(ctx context.Context, indexID int, levels []contracts.IndexLevel) (int, error)
}

// NewsStore persists headlines
type NewsStore interface {
	InsertNews(ctx context.Context, items []contracts.NewsItem) (int, error)
}

// HeadlineFeed is a symbol-independent headline source (RSS)
type HeadlineFeed interface {
	FetchAll(ctx context.Context) ([]contracts.NewsItem, error)
}

// Stores groups the S0 repositories the collector writes to
type Stores struct {
	Stocks  StockStore
	Prices  PriceStore
	Indices IndexStore
	News    NewsStore
}

// Collector orchestrates data collection from external sources
// ⭐ SSOT: ingestion orchestration lives only in this package
type Collector struct {
	provider contracts.MarketDataProvider
	news     contracts.NewsProvider
	feed     HeadlineFeed
	stores   Stores
	metrics  *metrics.Recorder
	logger   *logger.Logger
}

// NewCollector creates a new Collector instance.
// feed and rec may be nil.
func NewCollector(
	provider contracts.MarketDataProvider,
	news contracts.NewsProvider,
	feed HeadlineFeed,
	stores Stores,
	rec *metrics.Recorder,
	log *logger.Logger,
) *Collector {
	return &Collector{
		provider: provider,
		news:     news,
		feed:     feed,
		stores:   stores,
		metrics:  rec,
		logger:   log.Module("collector"),
	}
}

// FetchResult represents the result of one entity's fetch
type FetchResult struct {
	Entity   string `json:"entity"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Error    error  `json:"-"`
}

// Summary counts successes and failures in a batch
type Summary struct {
	Success  int `json:"success"`
	Failed   int `json:"failed"`
	Inserted int `json:"inserted"`
}

// Summarize folds per-entity results into a Summary
func Summarize(results []FetchResult) Summary {
	var s Summary
	for _, r := range results {
		if r.Error != nil {
			s.Failed++
			continue
		}
		s.Success++
		s.Inserted += r.Inserted
	}
	return s
}

// LoadStocksFile seeds the stock master from a CSV with a "symbol" column
func (c *Collector) LoadStocksFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return c.LoadStocks(ctx, f)
}

// LoadStocks seeds the stock master from CSV content
func (c *Collector) LoadStocks(ctx context.Context, r io.Reader) (int, error) {
	symbols, err := ReadSymbols(r)
	if err != nil {
		return 0, err
	}

	inserted, err := c.stores.Stocks.UpsertStocks(ctx, symbols)
	if err != nil {
		return 0, err
	}

	c.metrics.RecordRows("stocks", inserted)
	c.logger.WithFields(map[string]interface{}{
		"symbols":  len(symbols),
		"inserted": inserted,
	}).Info("Stock master loaded")

	return inserted, nil
}

// ReadSymbols parses a CSV whose header contains a "symbol" column
func ReadSymbols(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "symbol") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("csv has no symbol column: %w", contracts.ErrSchemaMismatch)
	}

	seen := make(map[string]struct{})
	var symbols []string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		s := contracts.NormalizeSymbol(rec[col])
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}

	return symbols, nil
}

// FetchAllPrices fetches, validates and stores bars for every active stock.
// Each stock is written in its own transaction; one failure never aborts the batch.
func (c *Collector) FetchAllPrices(ctx context.Context, from, to time.Time) ([]FetchResult, error) {
	stocks, err := c.stores.Stocks.GetActiveStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active stocks: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_count": len(stocks),
		"from":        from.Format("2006-01-02"),
		"to":          to.Format("2006-01-02"),
	}).Info("Starting price collection")

	start := time.Now()
	results := make([]FetchResult, 0, len(stocks))
	for _, stock := range stocks {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, c.fetchStockPrices(ctx, stock, from, to))
	}

	c.logSummary("prices", results, time.Since(start))
	return results, nil
}

func (c *Collector) fetchStockPrices(ctx context.Context, stock contracts.Stock, from, to time.Time) FetchResult {
	result := FetchResult{Entity: stock.Symbol}
	log := c.logger.WithField("symbol", stock.Symbol)

	bars, err := c.provider.FetchDailyBars(ctx, contracts.ProviderSymbol(stock.Symbol), from, to)
	if err != nil {
		return c.fail("prices", result, "fetch", err, log)
	}
	result.Fetched = len(bars)

	clean, report := quality.ValidateBars(bars)
	if report.HasWarnings() {
		log.WithFields(map[string]interface{}{
			"dropped":    report.DroppedInvalid,
			"duplicates": report.Duplicates,
			"filled_hl":  report.FilledHighLow,
			"filled_vol": report.FilledVolume,
			"kept":       report.Kept,
		}).Warn("Price rows adjusted by validation")
	}
	if len(clean) == 0 {
		return c.fail("prices", result, "validate", fmt.Errorf("no valid bars: %w", contracts.ErrDataUnavailable), log)
	}

	for i := range clean {
		clean[i].StockID = stock.ID
	}

	inserted, err := c.stores.Prices.InsertBars(ctx, stock.ID, clean)
	if err != nil {
		return c.fail("prices", result, "store", err, log)
	}
	result.Inserted = inserted

	c.metrics.RecordIngest("prices", "success")
	c.metrics.RecordRows("prices", inserted)
	log.WithFields(map[string]interface{}{
		"fetched":  result.Fetched,
		"inserted": inserted,
	}).Debug("Stored prices")

	return result
}

// FetchAllIndices ensures the macro index masters and stores their levels
func (c *Collector) FetchAllIndices(ctx context.Context, from, to time.Time) ([]FetchResult, error) {
	start := time.Now()
	results := make([]FetchResult, 0, len(contracts.MacroIndices))

	for _, idx := range contracts.MacroIndices {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		result := FetchResult{Entity: idx.Symbol}
		log := c.logger.WithField("index", idx.Symbol)

		indexID, err := c.stores.Indices.EnsureIndex(ctx, idx.Symbol, idx.Name)
		if err != nil {
			results = append(results, c.fail("indices", result, "store", err, log))
			continue
		}

		levels, err := c.provider.FetchIndexLevels(ctx, idx.Symbol, from, to)
		if err != nil {
			results = append(results, c.fail("indices", result, "fetch", err, log))
			continue
		}
		result.Fetched = len(levels)

		for i := range levels {
			levels[i].IndexID = indexID
		}

		inserted, err := c.stores.Indices.InsertLevels(ctx, indexID, levels)
		if err != nil {
			results = append(results, c.fail("indices", result, "store", err, log))
			continue
		}
		result.Inserted = inserted

		c.metrics.RecordIngest("indices", "success")
		c.metrics.RecordRows("index_prices", inserted)
		results = append(results, result)
	}

	c.logSummary("indices", results, time.Since(start))
	return results, nil
}

// FetchNews stores provider headlines per symbol plus the RSS feed
func (c *Collector) FetchNews(ctx context.Context, symbols []string) ([]FetchResult, error) {
	start := time.Now()
	results := make([]FetchResult, 0, len(symbols)+1)

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		result := FetchResult{Entity: contracts.NormalizeSymbol(symbol)}
		log := c.logger.WithField("symbol", result.Entity)

		items, err := c.news.FetchNews(ctx, symbol)
		if err != nil {
			results = append(results, c.fail("news", result, "fetch", err, log))
			continue
		}
		results = append(results, c.storeNews(ctx, result, items, log))
	}

	if c.feed != nil {
		result := FetchResult{Entity: "rss"}
		log := c.logger.WithField("source", "rss")

		items, err := c.feed.FetchAll(ctx)
		if err != nil {
			results = append(results, c.fail("news", result, "fetch", err, log))
		} else {
			results = append(results, c.storeNews(ctx, result, items, log))
		}
	}

	c.logSummary("news", results, time.Since(start))
	return results, nil
}

func (c *Collector) storeNews(ctx context.Context, result FetchResult, items []contracts.NewsItem, log *logger.Logger) FetchResult {
	items = dedupeNews(items)
	result.Fetched = len(items)

	inserted, err := c.stores.News.InsertNews(ctx, items)
	if err != nil {
		return c.fail("news", result, "store", err, log)
	}
	result.Inserted = inserted

	c.metrics.RecordIngest("news", "success")
	c.metrics.RecordRows("news", inserted)
	return result
}

// dedupeNews drops repeated (headline, date) pairs within one batch
func dedupeNews(items []contracts.NewsItem) []contracts.NewsItem {
	type key struct {
		headline string
		date     time.Time
	}
	seen := make(map[key]struct{}, len(items))
	out := items[:0]
	for _, n := range items {
		k := key{n.Headline, n.Date}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (c *Collector) fail(source string, result FetchResult, op string, err error, log *logger.Logger) FetchResult {
	result.Error = &contracts.EntityError{Entity: result.Entity, Op: op, Err: err}

	level := "failed"
	if errors.Is(err, contracts.ErrDataUnavailable) {
		level = "skipped"
		log.WithError(err).Warn("No data, skipping entity")
	} else {
		log.WithError(err).WithField("kind", contracts.ErrorKind(err)).Error("Entity failed, continuing batch")
	}

	c.metrics.RecordIngest(source, level)
	return result
}

func (c *Collector) logSummary(source string, results []FetchResult, elapsed time.Duration) {
	s := Summarize(results)
	c.metrics.ObserveStage("ingest_"+source, elapsed)
	c.logger.WithFields(map[string]interface{}{
		"source":   source,
		"success":  s.Success,
		"failed":   s.Failed,
		"inserted": s.Inserted,
		"total":    len(results),
		"duration": elapsed.String(),
	}).Info("Collection completed")
}
