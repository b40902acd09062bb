package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/database"
)

// NewsRepository persists headlines and exposes daily sentiment
type NewsRepository struct {
	pool *pgxpool.Pool
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(pool *pgxpool.Pool) *NewsRepository {
	return &NewsRepository{pool: pool}
}

// InsertNews writes headlines in one transaction, skipping (headline, date) duplicates
func (r *NewsRepository) InsertNews(ctx context.Context, items []contracts.NewsItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO news (date, symbol, headline, source, sentiment_score)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5)
		ON CONFLICT (headline, date) DO NOTHING
	`

	inserted := 0
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, n := range items {
			batch.Queue(query, n.Date, n.Symbol, n.Headline, n.Source, n.SentimentScore)
		}

		br := tx.SendBatch(ctx, batch)
		for range items {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("insert news: %w: %w", contracts.ErrDatabaseWrite, err)
	}

	return inserted, nil
}

// DailySentiment averages non-null sentiment scores per date
func (r *NewsRepository) DailySentiment(ctx context.Context) (map[time.Time]float64, error) {
	query := `
		SELECT date, AVG(sentiment_score)
		FROM news
		WHERE sentiment_score IS NOT NULL
		GROUP BY date
		ORDER BY date
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query daily sentiment: %w", err)
	}
	defer rows.Close()

	out := make(map[time.Time]float64)
	for rows.Next() {
		var d time.Time
		var avg float64
		if err := rows.Scan(&d, &avg); err != nil {
			return nil, fmt.Errorf("scan sentiment: %w", err)
		}
		out[d] = avg
	}
	return out, rows.Err()
}

// UnscoredNews lists headlines still waiting for the external scorer
func (r *NewsRepository) UnscoredNews(ctx context.Context, limit int) ([]ScoredHeadline, error) {
	query := `
		SELECT id, headline
		FROM news
		WHERE sentiment_score IS NULL
		ORDER BY date DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unscored news: %w", err)
	}
	defer rows.Close()

	var out []ScoredHeadline
	for rows.Next() {
		var h ScoredHeadline
		if err := rows.Scan(&h.ID, &h.Headline); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ScoredHeadline pairs a news id with its score
type ScoredHeadline struct {
	ID       int64   `json:"id"`
	Headline string  `json:"headline"`
	Score    float64 `json:"score"`
}

// UpdateSentiment stores scores produced by the enrichment pass
func (r *NewsRepository) UpdateSentiment(ctx context.Context, scores []ScoredHeadline) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}

	updated := 0
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range scores {
			batch.Queue(`UPDATE news SET sentiment_score = $2 WHERE id = $1`, s.ID, s.Score)
		}

		br := tx.SendBatch(ctx, batch)
		for range scores {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return err
			}
			updated += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("update sentiment: %w: %w", contracts.ErrDatabaseWrite, err)
	}
	return updated, nil
}
