package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// QualityGate measures per-date store coverage and generates snapshots
type QualityGate struct {
	db     *pgxpool.Pool
	config Config
}

// Config holds quality gate thresholds
type Config struct {
	MinPriceCoverage        float64 `yaml:"min_price_coverage"`
	MinFeatureCoverage      float64 `yaml:"min_feature_coverage"`
	MinFeatureStoreCoverage float64 `yaml:"min_feature_store_coverage"`
}

// DefaultConfig returns the thresholds used by the daily job
func DefaultConfig() Config {
	return Config{
		MinPriceCoverage:        0.95,
		MinFeatureCoverage:      0.90,
		MinFeatureStoreCoverage: 0.90,
	}
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(db *pgxpool.Pool, config Config) *QualityGate {
	return &QualityGate{
		db:     db,
		config: config,
	}
}

// coverageQueries maps a coverage key to the share of active stocks with a row on $1
var coverageQueries = map[string]string{
	"prices": `
		SELECT COALESCE(COUNT(DISTINCT p.stock_id)::FLOAT / NULLIF(COUNT(DISTINCT s.stock_id), 0), 0)
		FROM stocks s
		LEFT JOIN prices p ON p.stock_id = s.stock_id AND p.date = $1
		WHERE s.is_active`,
	"features": `
		SELECT COALESCE(COUNT(DISTINCT f.stock_id)::FLOAT / NULLIF(COUNT(DISTINCT s.stock_id), 0), 0)
		FROM stocks s
		LEFT JOIN features_daily f ON f.stock_id = s.stock_id AND f.date = $1
		WHERE s.is_active`,
	"feature_store": `
		SELECT COALESCE(COUNT(DISTINCT f.stock_id)::FLOAT / NULLIF(COUNT(DISTINCT s.stock_id), 0), 0)
		FROM stocks s
		LEFT JOIN feature_store f ON f.stock_id = s.stock_id AND f.date = $1
		WHERE s.is_active`,
	"news": `
		SELECT CASE WHEN COUNT(*) > 0 THEN 1.0 ELSE 0.0 END
		FROM news WHERE date = $1`,
}

// Check measures coverage for a given date
// ⭐ SSOT: store coverage check before training / serving
func (g *QualityGate) Check(ctx context.Context, date time.Time) (*contracts.DataQualitySnapshot, error) {
	snapshot := &contracts.DataQualitySnapshot{
		Date:     date,
		Coverage: make(map[string]float64, len(coverageQueries)),
	}

	if err := g.db.QueryRow(ctx, `SELECT COUNT(*) FROM stocks WHERE is_active`).Scan(&snapshot.TotalStocks); err != nil {
		return nil, fmt.Errorf("count total stocks: %w", err)
	}

	for key, query := range coverageQueries {
		var cov float64
		if err := g.db.QueryRow(ctx, query, date).Scan(&cov); err != nil {
			return nil, fmt.Errorf("check %s coverage: %w", key, err)
		}
		snapshot.Coverage[key] = cov
	}

	g.Score(snapshot)
	return snapshot, nil
}

// Score fills QualityScore, ValidStocks and Passed from Coverage
func (g *QualityGate) Score(snapshot *contracts.DataQualitySnapshot) {
	weights := map[string]float64{
		"prices":        0.4,
		"features":      0.3,
		"feature_store": 0.2,
		"news":          0.1,
	}

	score := 0.0
	for key, w := range weights {
		score += snapshot.Coverage[key] * w
	}
	snapshot.QualityScore = score
	snapshot.ValidStocks = int(float64(snapshot.TotalStocks) * snapshot.Coverage["prices"])

	snapshot.Passed = snapshot.Coverage["prices"] >= g.config.MinPriceCoverage &&
		snapshot.Coverage["features"] >= g.config.MinFeatureCoverage &&
		snapshot.Coverage["feature_store"] >= g.config.MinFeatureStoreCoverage
}
