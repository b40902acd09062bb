package s0_data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/database"
)

// IndexRepository persists index masters and daily levels
type IndexRepository struct {
	pool *pgxpool.Pool
}

// NewIndexRepository creates a new index repository
func NewIndexRepository(pool *pgxpool.Pool) *IndexRepository {
	return &IndexRepository{pool: pool}
}

// EnsureIndex upserts the master row and returns its id
func (r *IndexRepository) EnsureIndex(ctx context.Context, symbol, name string) (int, error) {
	query := `
		INSERT INTO indices (symbol, name)
		VALUES ($1, $2)
		ON CONFLICT (symbol) DO UPDATE SET name = EXCLUDED.name
		RETURNING index_id
	`

	var id int
	if err := r.pool.QueryRow(ctx, query, symbol, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure index %s: %w: %w", symbol, contracts.ErrDatabaseWrite, err)
	}
	return id, nil
}

// InsertLevels writes one index's levels in a single transaction, skipping existing dates
func (r *IndexRepository) InsertLevels(ctx context.Context, indexID int, levels []contracts.IndexLevel) (int, error) {
	if len(levels) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO index_prices (index_id, date, close)
		VALUES ($1, $2, $3)
		ON CONFLICT (index_id, date) DO NOTHING
	`

	inserted := 0
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, l := range levels {
			batch.Queue(query, indexID, l.Date, l.Close)
		}

		br := tx.SendBatch(ctx, batch)
		for range levels {
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
		return 0, fmt.Errorf("insert levels for index %d: %w: %w", indexID, contracts.ErrDatabaseWrite, err)
	}

	return inserted, nil
}

// GetLevelsBySymbol returns every index's levels keyed by index symbol, chronological
func (r *IndexRepository) GetLevelsBySymbol(ctx context.Context) (map[string][]contracts.IndexLevel, error) {
	query := `
		SELECT i.symbol, ip.index_id, ip.date, ip.close
		FROM index_prices ip
		JOIN indices i ON i.index_id = ip.index_id
		ORDER BY i.symbol, ip.date ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query index levels: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]contracts.IndexLevel)
	for rows.Next() {
		var symbol string
		var l contracts.IndexLevel
		if err := rows.Scan(&symbol, &l.IndexID, &l.Date, &l.Close); err != nil {
			return nil, fmt.Errorf("scan index level: %w", err)
		}
		out[symbol] = append(out[symbol], l)
	}
	return out, rows.Err()
}
