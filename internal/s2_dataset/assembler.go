package s2_dataset

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s1_features"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
)

// Options controls label construction
type Options struct {
	Horizon          int
	Mode             contracts.LabelMode
	Benchmark        string
	IncludeMacro     bool
	IncludeSentiment bool
}

// DefaultOptions returns the production labeling policy
func DefaultOptions() Options {
	return Options{
		Horizon:          5,
		Mode:             contracts.LabelRaw,
		Benchmark:        contracts.BenchmarkSymbol,
		IncludeMacro:     true,
		IncludeSentiment: true,
	}
}

// Validate checks option consistency
func (o Options) Validate() error {
	if o.Horizon < 1 {
		return fmt.Errorf("horizon must be at least 1, got %d", o.Horizon)
	}
	if !o.Mode.Valid() {
		return fmt.Errorf("unknown label mode %q", o.Mode)
	}
	if o.Mode == contracts.LabelExcess && o.Benchmark == "" {
		return fmt.Errorf("excess labels require a benchmark symbol")
	}
	return nil
}

// Input is everything Assemble needs, already loaded from the store
type Input struct {
	Features    []contracts.FeatureRow
	Prices      map[int][]contracts.PriceBar
	IndexLevels map[string][]contracts.IndexLevel
	Sentiment   map[time.Time]float64
}

// FeatureLoader reads features_daily
type FeatureLoader interface {
	LoadFeatures(ctx context.Context) ([]contracts.FeatureRow, error)
}

// Sources groups the store readers used by Build
type Sources struct {
	Features  FeatureLoader
	Prices    s1_features.PriceHistory
	Indices   s1_features.IndexLevelSource
	Sentiment s1_features.SentimentSource
}

// Assembler joins feature rows with forward prices into labeled rows
// ⭐ SSOT: labels are defined only here
type Assembler struct {
	opts    Options
	sources Sources
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewAssembler creates a new dataset assembler
func NewAssembler(opts Options, sources Sources, rec *metrics.Recorder, log *logger.Logger) *Assembler {
	return &Assembler{
		opts:    opts,
		sources: sources,
		metrics: rec,
		logger:  log.Module("dataset"),
	}
}

// Options returns the labeling policy in use
func (a *Assembler) Options() Options {
	return a.opts
}

// Build loads inputs from the store and assembles the dataset
func (a *Assembler) Build(ctx context.Context) (*contracts.Dataset, error) {
	start := time.Now()

	features, err := a.sources.Features.LoadFeatures(ctx)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	prices, err := a.sources.Prices.GetAllHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	levels, err := a.sources.Indices.GetLevelsBySymbol(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index levels: %w", err)
	}

	var sentiment map[time.Time]float64
	if a.opts.IncludeSentiment {
		sentiment, err = a.sources.Sentiment.DailySentiment(ctx)
		if err != nil {
			return nil, fmt.Errorf("load sentiment: %w", err)
		}
	}

	ds, err := a.Assemble(Input{
		Features:    features,
		Prices:      prices,
		IndexLevels: levels,
		Sentiment:   sentiment,
	})
	if err != nil {
		return nil, err
	}

	a.metrics.ObserveStage("dataset", time.Since(start))
	return ds, nil
}

// Assemble builds labeled rows from loaded inputs.
// A row is kept only when the close Horizon trading observations ahead exists.
func (a *Assembler) Assemble(in Input) (*contracts.Dataset, error) {
	if err := a.opts.Validate(); err != nil {
		return nil, err
	}
	if len(in.Features) == 0 {
		return nil, fmt.Errorf("features_daily is empty: %w", contracts.ErrDataUnavailable)
	}

	forward := make(map[int]map[time.Time]float64, len(in.Prices))
	for stockID, bars := range in.Prices {
		forward[stockID] = forwardReturns(barCloses(bars), a.opts.Horizon)
	}

	var benchmark map[time.Time]float64
	if a.opts.Mode == contracts.LabelExcess {
		levels, ok := in.IndexLevels[a.opts.Benchmark]
		if !ok || len(levels) == 0 {
			return nil, fmt.Errorf("benchmark %s has no levels: %w", a.opts.Benchmark, contracts.ErrDataUnavailable)
		}
		benchmark = forwardReturns(levelCloses(levels), a.opts.Horizon)
	}

	var macro map[string]*s1_features.AuxSeries
	if a.opts.IncludeMacro {
		macro = s1_features.IndexReturns(in.IndexLevels)
	}
	sentiment := s1_features.NewAuxSeries(in.Sentiment)

	names := a.featureNames(in.Features[0])

	rows := make([]contracts.LabeledRow, 0, len(in.Features))
	var noFuture, noBenchmark int
	for _, fr := range in.Features {
		fwd, ok := forward[fr.StockID][dayKey(fr.Date)]
		if !ok {
			noFuture++
			continue
		}

		target := fwd
		if benchmark != nil {
			bench, ok := benchmark[dayKey(fr.Date)]
			if !ok {
				noBenchmark++
				continue
			}
			target = fwd - bench
		}

		rows = append(rows, contracts.LabeledRow{
			StockID:       fr.StockID,
			Date:          fr.Date,
			Values:        a.vector(fr, names, macro, sentiment),
			ForwardReturn: fwd,
			Target:        target,
			TargetClass:   classOf(target),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].StockID < rows[j].StockID
	})

	a.logger.WithFields(map[string]interface{}{
		"feature_rows": len(in.Features),
		"labeled_rows": len(rows),
		"no_future":    noFuture,
		"no_benchmark": noBenchmark,
		"horizon":      a.opts.Horizon,
		"mode":         string(a.opts.Mode),
	}).Info("Dataset assembled")

	return &contracts.Dataset{
		FeatureNames: names,
		Rows:         rows,
		Horizon:      a.opts.Horizon,
		Mode:         a.opts.Mode,
	}, nil
}

// featureNames fixes the column order: technical, extra, macro, sentiment
func (a *Assembler) featureNames(sample contracts.FeatureRow) []string {
	names := append([]string{}, contracts.TechnicalFeatureNames...)
	names = append(names, sample.ExtraNames()...)
	if a.opts.IncludeMacro {
		names = append(names, s1_features.MacroFeatureNames()...)
	}
	if a.opts.IncludeSentiment {
		names = append(names, contracts.FeatureSentiment)
	}
	return names
}

func (a *Assembler) vector(
	fr contracts.FeatureRow,
	names []string,
	macro map[string]*s1_features.AuxSeries,
	sentiment *s1_features.AuxSeries,
) []float64 {
	values := fr.Values()
	for name, series := range macro {
		values[name] = series.At(fr.Date)
	}
	if a.opts.IncludeSentiment {
		values[contracts.FeatureSentiment] = sentiment.At(fr.Date)
	}

	out := make([]float64, len(names))
	for i, name := range names {
		out[i] = values[name] // absent extras default to 0
	}
	return out
}

type datedClose struct {
	date  time.Time
	close float64
}

// forwardReturns maps each date to close[i+h]/close[i] - 1 over the series' own order.
// The last h observations have no entry.
func forwardReturns(series []datedClose, h int) map[time.Time]float64 {
	sort.Slice(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })

	out := make(map[time.Time]float64, len(series))
	for i := 0; i+h < len(series); i++ {
		if series[i].close == 0 {
			continue
		}
		out[dayKey(series[i].date)] = series[i+h].close/series[i].close - 1
	}
	return out
}

// dayKey normalizes a date for map lookups across sources
func dayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func barCloses(bars []contracts.PriceBar) []datedClose {
	out := make([]datedClose, len(bars))
	for i, b := range bars {
		out[i] = datedClose{date: b.Date, close: b.Close}
	}
	return out
}

func levelCloses(levels []contracts.IndexLevel) []datedClose {
	out := make([]datedClose, len(levels))
	for i, l := range levels {
		out[i] = datedClose{date: l.Date, close: l.Close}
	}
	return out
}

func classOf(target float64) int {
	if target > 0 {
		return 1
	}
	return 0
}
