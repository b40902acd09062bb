package s1_features

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/pkg/config"
	"github.com/adishahh/indian-market-ml-platform/pkg/database"
)

func openTestRepo(t *testing.T) (*Repository, *database.DB) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))

	return NewRepository(db.Pool), db
}

func TestUpsertStoreRowTwiceKeepsSecond(t *testing.T) {
	repo, db := openTestRepo(t)
	ctx := context.Background()
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Cleanup(func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM feature_store WHERE stock_id = 5 AND date = $1`, date)
	})

	row := contracts.FeatureStoreRow{
		FeatureRow: contracts.FeatureRow{StockID: 5, Date: date, RSI14: 40},
		Macro:      map[string]float64{"macro_nifty_50_ret": 0.01},
	}
	require.NoError(t, repo.UpsertStoreRow(ctx, row))

	row.RSI14 = 65
	row.Sentiment = 0.3
	require.NoError(t, repo.UpsertStoreRow(ctx, row))

	var count int
	var rsi, sentiment float64
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(rsi_14), MAX(sentiment_score) FROM feature_store WHERE stock_id = 5 AND date = $1`,
		date,
	).Scan(&count, &rsi, &sentiment)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 65.0, rsi)
	assert.Equal(t, 0.3, sentiment)
}

func TestLatestFeatureRowUnknownSymbol(t *testing.T) {
	repo, _ := openTestRepo(t)

	_, err := repo.LatestFeatureRow(context.Background(), "NO_SUCH_SYMBOL.NS")
	assert.ErrorIs(t, err, contracts.ErrNoFeatureData)
}
