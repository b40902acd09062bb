package s1_features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/database"
)

var technicalColumns = []string{
	"stock_id", "date",
	"return_1d", "return_5d", "return_20d",
	"sma_20", "sma_50", "ema_20", "rsi_14", "volatility_20d",
	"extra",
}

// Repository persists features_daily and feature_store
// ⭐ SSOT: feature tables are read and written only here
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new feature repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ReplaceFeatures bulk-loads rows into a staging table and swaps it live.
// Readers see either the previous table or the new one, never an empty one.
func (r *Repository) ReplaceFeatures(ctx context.Context, rows []contracts.FeatureRow) (int, error) {
	copyRows := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		extra, err := encodeExtra(row.Extra)
		if err != nil {
			return 0, err
		}
		copyRows = append(copyRows, []interface{}{
			row.StockID, row.Date,
			row.Return1D, row.Return5D, row.Return20D,
			row.SMA20, row.SMA50, row.EMA20, row.RSI14, row.Volatility20D,
			extra,
		})
	}

	var copied int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		prepare := []string{
			`DROP TABLE IF EXISTS features_daily_staging`,
			`CREATE TABLE features_daily_staging (LIKE features_daily INCLUDING ALL)`,
		}
		for _, stmt := range prepare {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("prepare staging: %w", err)
			}
		}

		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"features_daily_staging"},
			technicalColumns,
			pgx.CopyFromRows(copyRows),
		)
		if err != nil {
			return fmt.Errorf("copy features: %w", err)
		}
		copied = n

		swap := []string{
			`ALTER TABLE features_daily RENAME TO features_daily_old`,
			`ALTER TABLE features_daily_staging RENAME TO features_daily`,
			`DROP TABLE features_daily_old`,
		}
		for _, stmt := range swap {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("swap staging: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replace features_daily: %w: %w", contracts.ErrDatabaseWrite, err)
	}

	return int(copied), nil
}

// LoadFeatures returns every features_daily row ordered by (stock_id, date)
func (r *Repository) LoadFeatures(ctx context.Context) ([]contracts.FeatureRow, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM features_daily
		ORDER BY stock_id, date
	`, strings.Join(technicalColumns, ", "))

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var out []contracts.FeatureRow
	for rows.Next() {
		var row contracts.FeatureRow
		if err := rows.Scan(
			&row.StockID, &row.Date,
			&row.Return1D, &row.Return5D, &row.Return20D,
			&row.SMA20, &row.SMA50, &row.EMA20, &row.RSI14, &row.Volatility20D,
			&row.Extra,
		); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		if len(row.Extra) == 0 {
			row.Extra = nil
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertStoreRow writes the serving snapshot of one (stock, date).
// A second write for the same key overwrites every column.
func (r *Repository) UpsertStoreRow(ctx context.Context, row contracts.FeatureStoreRow) error {
	extra, err := encodeExtra(row.Extra)
	if err != nil {
		return err
	}

	macroNames := MacroFeatureNames()
	columns := append(append([]string{}, technicalColumns...), macroNames...)
	columns = append(columns, contracts.FeatureSentiment)

	args := []interface{}{
		row.StockID, row.Date,
		row.Return1D, row.Return5D, row.Return20D,
		row.SMA20, row.SMA50, row.EMA20, row.RSI14, row.Volatility20D,
		extra,
	}
	for _, name := range macroNames {
		args = append(args, row.Macro[name])
	}
	args = append(args, row.Sentiment)

	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "stock_id" && col != "date" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	updates = append(updates, "created_at = NOW()")

	query := fmt.Sprintf(`
		INSERT INTO feature_store (%s)
		VALUES (%s)
		ON CONFLICT (stock_id, date) DO UPDATE SET %s
	`, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert feature_store stock %d: %w: %w", row.StockID, contracts.ErrDatabaseWrite, err)
	}
	return nil
}

// LatestFeatureRow returns the newest feature_store row for a symbol.
// No row yields ErrNoFeatureData.
func (r *Repository) LatestFeatureRow(ctx context.Context, symbol string) (*contracts.FeatureStoreRow, error) {
	symbol = contracts.NormalizeSymbol(symbol)

	macroNames := MacroFeatureNames()
	selectCols := make([]string, 0, len(technicalColumns)+len(macroNames)+2)
	for _, col := range technicalColumns {
		selectCols = append(selectCols, "f."+col)
	}
	for _, col := range macroNames {
		selectCols = append(selectCols, "f."+col)
	}
	selectCols = append(selectCols, "f.sentiment_score", "f.created_at")

	query := fmt.Sprintf(`
		SELECT %s
		FROM feature_store f
		JOIN stocks s ON s.stock_id = f.stock_id
		WHERE s.symbol = $1
		ORDER BY f.date DESC
		LIMIT 1
	`, strings.Join(selectCols, ", "))

	row := contracts.FeatureStoreRow{Symbol: symbol}
	macro := make([]float64, len(macroNames))
	dest := []interface{}{
		&row.StockID, &row.Date,
		&row.Return1D, &row.Return5D, &row.Return20D,
		&row.SMA20, &row.SMA50, &row.EMA20, &row.RSI14, &row.Volatility20D,
		&row.Extra,
	}
	for i := range macro {
		dest = append(dest, &macro[i])
	}
	dest = append(dest, &row.Sentiment, &row.CreatedAt)

	err := r.pool.QueryRow(ctx, query, symbol).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("symbol %s: %w", symbol, contracts.ErrNoFeatureData)
	}
	if err != nil {
		return nil, fmt.Errorf("query feature_store: %w", err)
	}

	row.Macro = make(map[string]float64, len(macroNames))
	for i, name := range macroNames {
		row.Macro[name] = macro[i]
	}
	if len(row.Extra) == 0 {
		row.Extra = nil
	}
	return &row, nil
}

func encodeExtra(extra map[string]float64) ([]byte, error) {
	if len(extra) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("encode extra features: %w", err)
	}
	return data, nil
}
