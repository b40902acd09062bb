package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adishahh/indian-market-ml-platform/internal/external/rss"
	"github.com/adishahh/indian-market-ml-platform/internal/external/yahoo"
	"github.com/adishahh/indian-market-ml-platform/internal/modelconfig"
	"github.com/adishahh/indian-market-ml-platform/internal/s0_data"
	"github.com/adishahh/indian-market-ml-platform/internal/s0_data/collector"
	"github.com/adishahh/indian-market-ml-platform/internal/s1_features"
	"github.com/adishahh/indian-market-ml-platform/internal/s2_dataset"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
	"github.com/adishahh/indian-market-ml-platform/pkg/config"
	"github.com/adishahh/indian-market-ml-platform/pkg/database"
	"github.com/adishahh/indian-market-ml-platform/pkg/httputil"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
	"github.com/adishahh/indian-market-ml-platform/pkg/redis"
)

// experimentsFile is the JSON lines log inside the artifact dir
const experimentsFile = "experiments.jsonl"

// runtime wires stage components for batch commands
type runtime struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	model     *modelconfig.Config
	modelHash string
	registry  *prometheus.Registry
	metrics   *metrics.Recorder

	stocks  *s0_data.Repository
	prices  *s0_data.PriceRepository
	indices *s0_data.IndexRepository
	news    *s0_data.NewsRepository
	feats   *s1_features.Repository
}

// newRuntime loads env and model config, connects to Postgres and applies migrations
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := cfg.Artifacts.ModelConfigPath
	if modelConfigPath != "" {
		path = modelConfigPath
	}
	model, err := modelconfig.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load model config: %w", err)
	}
	hash, err := modelconfig.Hash(model)
	if err != nil {
		return nil, fmt.Errorf("hash model config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	reg := prometheus.NewRegistry()
	rt := &runtime{
		cfg:       cfg,
		log:       log,
		db:        db,
		model:     model,
		modelHash: hash,
		registry:  reg,
		metrics:   metrics.New(reg),
		stocks:    s0_data.NewRepository(db.Pool),
		prices:    s0_data.NewPriceRepository(db.Pool),
		indices:   s0_data.NewIndexRepository(db.Pool),
		news:      s0_data.NewNewsRepository(db.Pool),
		feats:     s1_features.NewRepository(db.Pool),
	}

	if err := db.Migrate(ctx); err != nil {
		rt.close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"env":          cfg.Env,
		"model_config": path,
		"config_hash":  hash[:12],
	}).Debug("Runtime initialized")

	return rt, nil
}

func (rt *runtime) close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

func (rt *runtime) collector() *collector.Collector {
	httpClient := httputil.New(rt.cfg, rt.log)
	provider := yahoo.NewClient(httpClient, rt.cfg.Provider.ChartBaseURL, rt.cfg.Provider.SearchBaseURL, rt.log)

	var feed collector.HeadlineFeed
	if len(rt.cfg.News.RSSFeeds) > 0 {
		feed = rss.NewClient(httpClient, rt.cfg.News.RSSFeeds, rt.cfg.News.Symbols, rt.log)
	}

	return collector.NewCollector(provider, provider, feed, collector.Stores{
		Stocks:  rt.stocks,
		Prices:  rt.prices,
		Indices: rt.indices,
		News:    rt.news,
	}, rt.metrics, rt.log)
}

func (rt *runtime) featureBuilder() *s1_features.Builder {
	return s1_features.NewBuilder(rt.model.FeatureConfig(), rt.prices, rt.feats, rt.metrics, rt.log)
}

// storeRefresher invalidates Redis rows when Redis is enabled
func (rt *runtime) storeRefresher() (*s1_features.StoreRefresher, func(), error) {
	rc, err := redis.New(rt.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	closeFn := func() { _ = rc.Close() }

	refresher := s1_features.NewStoreRefresher(
		rt.featureBuilder(),
		s1_features.StoreSources{
			Stocks:    rt.stocks,
			Prices:    rt.prices,
			Indices:   rt.indices,
			Sentiment: rt.news,
		},
		rt.feats,
		redis.NewCache(rc, "quant"),
		rt.metrics,
		rt.log,
	)
	return refresher, closeFn, nil
}

func (rt *runtime) assembler() *s2_dataset.Assembler {
	return s2_dataset.NewAssembler(rt.model.DatasetOptions(), s2_dataset.Sources{
		Features:  rt.feats,
		Prices:    rt.prices,
		Indices:   rt.indices,
		Sentiment: rt.news,
	}, rt.metrics, rt.log)
}

func (rt *runtime) trainer() *s3_model.Trainer {
	return s3_model.NewTrainer(rt.model.Model.Params, rt.model.Model.TestFraction, rt.metrics, rt.log)
}

func (rt *runtime) artifacts() *s3_model.ArtifactStore {
	return s3_model.NewArtifactStore(rt.cfg.Artifacts.Dir, rt.log)
}

func (rt *runtime) experiments() *s3_model.ExperimentLog {
	return s3_model.NewExperimentLog(filepath.Join(rt.cfg.Artifacts.Dir, experimentsFile))
}

func (rt *runtime) pipeline() *s3_model.Pipeline {
	return s3_model.NewPipeline(
		rt.assembler(),
		rt.trainer(),
		rt.artifacts(),
		rt.experiments(),
		s3_model.NewManifestRepository(rt.db.Pool),
		rt.modelHash,
		rt.log,
	)
}
