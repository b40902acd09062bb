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

// PriceRepository persists daily price bars
// ⭐ SSOT: the prices table is read and written only here
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// InsertBars writes one stock's bars in a single transaction.
// Existing (stock_id, date) rows are skipped; returns rows actually inserted.
func (r *PriceRepository) InsertBars(ctx context.Context, stockID int, bars []contracts.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO prices (stock_id, date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stock_id, date) DO NOTHING
	`

	inserted := 0
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range bars {
			batch.Queue(query, stockID, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		}

		br := tx.SendBatch(ctx, batch)
		for range bars {
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
		return 0, fmt.Errorf("insert prices for stock %d: %w: %w", stockID, contracts.ErrDatabaseWrite, err)
	}

	return inserted, nil
}

// GetHistory returns a stock's full price history in chronological order
func (r *PriceRepository) GetHistory(ctx context.Context, stockID int) ([]contracts.PriceBar, error) {
	query := `
		SELECT stock_id, date, open, high, low, close, volume
		FROM prices
		WHERE stock_id = $1
		ORDER BY date ASC
	`

	return r.queryBars(ctx, query, stockID)
}

// GetRecent returns the last n bars of a stock in chronological order
func (r *PriceRepository) GetRecent(ctx context.Context, stockID int, n int) ([]contracts.PriceBar, error) {
	query := `
		SELECT stock_id, date, open, high, low, close, volume
		FROM (
			SELECT stock_id, date, open, high, low, close, volume
			FROM prices
			WHERE stock_id = $1
			ORDER BY date DESC
			LIMIT $2
		) recent
		ORDER BY date ASC
	`

	return r.queryBars(ctx, query, stockID, n)
}

// GetAllHistory returns every stock's history keyed by stock_id
func (r *PriceRepository) GetAllHistory(ctx context.Context) (map[int][]contracts.PriceBar, error) {
	query := `
		SELECT stock_id, date, open, high, low, close, volume
		FROM prices
		ORDER BY stock_id, date ASC
	`

	bars, err := r.queryBars(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make(map[int][]contracts.PriceBar)
	for _, b := range bars {
		out[b.StockID] = append(out[b.StockID], b)
	}
	return out, nil
}

// LatestDate returns the most recent bar date of a stock (zero if none)
func (r *PriceRepository) LatestDate(ctx context.Context, stockID int) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MAX(date) FROM prices WHERE stock_id = $1`, stockID).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest price date: %w", err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

func (r *PriceRepository) queryBars(ctx context.Context, query string, args ...interface{}) ([]contracts.PriceBar, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(&b.StockID, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
