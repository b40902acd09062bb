package s0_data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// Repository handles stock master persistence for S0
// ⭐ SSOT: the stocks table is read and written only here
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// GetActiveStocks returns every active stock ordered by symbol
func (r *Repository) GetActiveStocks(ctx context.Context) ([]contracts.Stock, error) {
	query := `
		SELECT stock_id, symbol, COALESCE(name, ''), is_active
		FROM stocks
		WHERE is_active = TRUE
		ORDER BY symbol
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active stocks: %w", err)
	}
	defer rows.Close()

	var stocks []contracts.Stock
	for rows.Next() {
		var s contracts.Stock
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Name, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}

	return stocks, rows.Err()
}

// GetStockBySymbol looks a stock up by its normalized symbol.
// Returns contracts.ErrUnknownSymbol when absent.
func (r *Repository) GetStockBySymbol(ctx context.Context, symbol string) (*contracts.Stock, error) {
	query := `
		SELECT stock_id, symbol, COALESCE(name, ''), is_active
		FROM stocks
		WHERE symbol = $1
	`

	var s contracts.Stock
	err := r.db.QueryRow(ctx, query, contracts.NormalizeSymbol(symbol)).Scan(&s.ID, &s.Symbol, &s.Name, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", symbol, contracts.ErrUnknownSymbol)
	}
	if err != nil {
		return nil, fmt.Errorf("query stock %s: %w", symbol, err)
	}
	return &s, nil
}

// UpsertStocks inserts symbols that are not yet tracked.
// Existing rows are left untouched; returns the number of new rows.
func (r *Repository) UpsertStocks(ctx context.Context, symbols []string) (int, error) {
	if len(symbols) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO stocks (symbol, is_active)
		VALUES ($1, TRUE)
		ON CONFLICT (symbol) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, s := range symbols {
		batch.Queue(query, contracts.NormalizeSymbol(s))
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range symbols {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert stock: %w: %w", contracts.ErrDatabaseWrite, err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}
