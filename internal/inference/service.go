package inference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
	"github.com/adishahh/indian-market-ml-platform/pkg/redis"
)

// FeatureCache caches feature-store rows by symbol
type FeatureCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ModelSource loads the active artifact
type ModelSource interface {
	LoadActive() (*s3_model.Artifact, error)
}

// Broadcaster pushes logged predictions to live subscribers
type Broadcaster interface {
	Broadcast(entry contracts.PredictionLog)
}

// Deps are the collaborators of Service.
// Cache, Publisher and Stream are optional.
type Deps struct {
	Features  contracts.FeatureStoreReader
	Logs      contracts.PredictionLogWriter
	Cache     FeatureCache
	Publisher contracts.EventPublisher
	Topic     string
	Stream    Broadcaster
	Metrics   *metrics.Recorder
}

// Service serves Buy/Sell predictions from the feature store
// ⭐ SSOT: every prediction is logged with the artifact version that produced it
type Service struct {
	deps   Deps
	logger *logger.Logger
	now    func() time.Time

	mu    sync.RWMutex
	model *s3_model.Artifact
}

// NewService creates a service with no model loaded
func NewService(deps Deps, log *logger.Logger) *Service {
	return &Service{
		deps:   deps,
		logger: log.Module("inference"),
		now:    time.Now,
	}
}

// LoadModel loads the active artifact from src.
// On failure the previously loaded model stays in place.
func (s *Service) LoadModel(src ModelSource) error {
	artifact, err := src.LoadActive()
	if err != nil {
		return err
	}
	s.SetModel(artifact)
	return nil
}

// SetModel swaps the serving model
func (s *Service) SetModel(artifact *s3_model.Artifact) {
	s.mu.Lock()
	s.model = artifact
	s.mu.Unlock()

	if artifact != nil {
		s.logger.WithFields(map[string]interface{}{
			"version":  artifact.Meta.Version,
			"features": len(artifact.Meta.FeatureNames),
		}).Info("Model loaded")
	}
}

// ModelVersion returns the loaded version and whether a model is loaded
func (s *Service) ModelVersion() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return "", false
	}
	return s.model.Meta.Version, true
}

func (s *Service) current() *s3_model.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Predict scores the latest feature-store row of symbol
func (s *Service) Predict(ctx context.Context, symbol string) (*contracts.Prediction, error) {
	start := s.now()
	pred, err := s.predict(ctx, symbol)
	s.deps.Metrics.ObserveStage("inference", s.now().Sub(start))
	if err != nil {
		s.deps.Metrics.RecordInferenceError(contracts.ErrorKind(err))
		return nil, err
	}
	s.deps.Metrics.RecordPrediction(pred.Label)
	return pred, nil
}

func (s *Service) predict(ctx context.Context, symbol string) (*contracts.Prediction, error) {
	model := s.current()
	if model == nil || model.Model == nil {
		return nil, fmt.Errorf("predict %s: %w", symbol, contracts.ErrModelUnavailable)
	}

	clean := contracts.NormalizeSymbol(symbol)
	if clean == "" {
		return nil, fmt.Errorf("empty symbol: %w", contracts.ErrUnknownSymbol)
	}
	row, err := s.latestRow(ctx, clean)
	if err != nil {
		return nil, err
	}

	vector, missing := alignFeatures(model.Meta.FeatureNames, row.Values())
	if len(missing) > 0 {
		s.logger.WithFields(map[string]interface{}{
			"symbol":  clean,
			"missing": missing,
		}).Warn("Missing features filled with 0")
	}

	prob, err := model.Model.PredictProba(vector)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", clean, err)
	}

	class, label := 0, contracts.LabelSell
	if prob >= s3_model.ClassThreshold {
		class, label = 1, contracts.LabelBuy
	}

	entry := contracts.PredictionLog{
		StockID:        row.StockID,
		Symbol:         clean,
		PredictionDate: row.Date,
		PredictedClass: class,
		Probability:    prob,
		ModelVersion:   model.Meta.Version,
		ExecutionTime:  s.now().UTC(),
	}
	id, err := s.deps.Logs.InsertPredictionLog(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("log prediction %s: %w", clean, err)
	}
	entry.ID = id
	s.publish(ctx, entry)

	features := make(map[string]float64, len(vector))
	for i, name := range model.Meta.FeatureNames {
		features[name] = vector[i]
	}

	return &contracts.Prediction{
		Symbol:        symbol,
		Date:          row.Date,
		Label:         label,
		Class:         class,
		Probability:   prob,
		RSI:           row.RSI14,
		Sentiment:     row.Sentiment,
		ModelVersion:  model.Meta.Version,
		Features:      features,
		MissingFilled: missing,
	}, nil
}

// latestRow reads the cache first, then the feature store
func (s *Service) latestRow(ctx context.Context, symbol string) (*contracts.FeatureStoreRow, error) {
	key := redis.FeatureRowKey(symbol)

	if s.deps.Cache != nil {
		var cached contracts.FeatureStoreRow
		found, err := s.deps.Cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Feature cache read failed")
		} else if found {
			return &cached, nil
		}
	}

	row, err := s.deps.Features.LatestFeatureRow(ctx, symbol)
	if err != nil {
		if errors.Is(err, contracts.ErrNoFeatureData) {
			return nil, err
		}
		return nil, fmt.Errorf("load features %s: %w", symbol, err)
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, key, row, redis.TTLMedium); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Feature cache write failed")
		}
	}
	return row, nil
}

// publish forwards the log entry; failures never fail the prediction
func (s *Service) publish(ctx context.Context, entry contracts.PredictionLog) {
	if s.deps.Stream != nil {
		s.deps.Stream.Broadcast(entry)
	}
	if s.deps.Publisher == nil || s.deps.Topic == "" {
		return
	}
	key := []byte(strconv.Itoa(entry.StockID))
	err := s.deps.Publisher.Publish(ctx, s.deps.Topic, key, entry)
	s.deps.Metrics.RecordPublish(s.deps.Topic, err)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", entry.Symbol).Warn("Prediction publish failed")
	}
}

// alignFeatures orders values by names, filling absent names with 0
func alignFeatures(names []string, values map[string]float64) ([]float64, []string) {
	vector := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		vector[i] = v
	}
	return vector, missing
}
