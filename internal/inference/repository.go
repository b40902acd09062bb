package inference

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// LogRepository persists prediction_logs
// ⭐ SSOT: prediction_logs is written only here
type LogRepository struct {
	pool *pgxpool.Pool
}

// NewLogRepository creates a new LogRepository
func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// InsertPredictionLog appends one entry and returns its id
func (r *LogRepository) InsertPredictionLog(ctx context.Context, entry contracts.PredictionLog) (int64, error) {
	query := `
		INSERT INTO prediction_logs (stock_id, prediction_date, predicted_class, probability, model_version, execution_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		entry.StockID, entry.PredictionDate, entry.PredictedClass,
		entry.Probability, entry.ModelVersion, entry.ExecutionTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert prediction log: %w: %w", contracts.ErrDatabaseWrite, err)
	}
	return id, nil
}

// RecentPredictions returns the newest entries for symbol, newest first
func (r *LogRepository) RecentPredictions(ctx context.Context, symbol string, limit int) ([]contracts.PredictionLog, error) {
	query := `
		SELECT p.id, p.stock_id, s.symbol, p.prediction_date, p.predicted_class,
		       p.probability, p.model_version, p.execution_time
		FROM prediction_logs p
		JOIN stocks s ON s.stock_id = p.stock_id
		WHERE s.symbol = $1
		ORDER BY p.id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, contracts.NormalizeSymbol(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("query prediction logs: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.PredictionLog, 0, limit)
	for rows.Next() {
		var p contracts.PredictionLog
		if err := rows.Scan(&p.ID, &p.StockID, &p.Symbol, &p.PredictionDate, &p.PredictedClass,
			&p.Probability, &p.ModelVersion, &p.ExecutionTime); err != nil {
			return nil, fmt.Errorf("scan prediction log: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
