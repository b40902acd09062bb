package inference

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/realtime"
	"github.com/adishahh/indian-market-ml-platform/internal/s1_features"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
	"github.com/adishahh/indian-market-ml-platform/pkg/config"
	"github.com/adishahh/indian-market-ml-platform/pkg/database"
	"github.com/adishahh/indian-market-ml-platform/pkg/kafka"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
	"github.com/adishahh/indian-market-ml-platform/pkg/redis"
)

// CachePrefix namespaces Redis keys of this service
const CachePrefix = "quant"

// AppContext holds every long-lived dependency of the API process.
// Constructed once at startup and passed explicitly.
type AppContext struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *database.DB
	Redis     *redis.Client
	Producer  *kafka.Producer
	Registry  *prometheus.Registry
	Metrics   *metrics.Recorder
	Artifacts *s3_model.ArtifactStore
	Logs      *LogRepository
	Stream    *realtime.Hub
	Service   *Service
}

// NewAppContext connects to Postgres, Redis and Kafka and loads the active model.
// A missing model is not fatal; the service answers 503 until one is loaded.
func NewAppContext(cfg *config.Config, log *logger.Logger) (*AppContext, error) {
	app := &AppContext{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	}
	app.Metrics = metrics.New(app.Registry)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	app.DB = db

	rc, err := redis.New(cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	app.Redis = rc

	var publisher contracts.EventPublisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.WithBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		app.Producer = producer
		publisher = producer
	}

	app.Logs = NewLogRepository(db.Pool)
	app.Stream = realtime.NewHub(log)
	app.Artifacts = s3_model.NewArtifactStore(cfg.Artifacts.Dir, log)
	app.Service = NewService(Deps{
		Features:  s1_features.NewRepository(db.Pool),
		Logs:      app.Logs,
		Cache:     redis.NewCache(rc, CachePrefix),
		Publisher: publisher,
		Topic:     cfg.Kafka.PredictionTopic,
		Stream:    app.Stream,
		Metrics:   app.Metrics,
	}, log)

	if err := app.Service.LoadModel(app.Artifacts); err != nil {
		if !errors.Is(err, contracts.ErrModelUnavailable) {
			app.Close()
			return nil, err
		}
		log.WithError(err).Warn("No model loaded")
	}

	return app, nil
}

// Close releases every connection
func (a *AppContext) Close() {
	if a.Stream != nil {
		a.Stream.Close()
	}
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close kafka producer")
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close redis")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
