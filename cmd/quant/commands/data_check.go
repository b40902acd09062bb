package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/internal/s0_data/quality"
)

var dataCheckDate string

const keyWidth = 18

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "Show table counts and the data quality gate",
	Long: `Prints row counts per table and runs the quality gate for one day.

Example:
  go run ./cmd/quant data-check
  go run ./cmd/quant data-check --date 2024-06-14`,
	RunE: runDataCheck,
}

func init() {
	rootCmd.AddCommand(dataCheckCmd)
	dataCheckCmd.Flags().StringVar(&dataCheckDate, "date", "", "trading day to check (default latest price date)")
}

// countedTables are reported in this order
var countedTables = []string{
	"stocks",
	"prices",
	"indices",
	"index_prices",
	"news",
	"features_daily",
	"feature_store",
	"prediction_logs",
	"model_manifest",
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	PrintHeader("Table counts")
	for _, table := range countedTables {
		n, err := countRows(ctx, rt.db.Pool, table)
		if err != nil {
			PrintError(fmt.Sprintf("%s: %v", table, err))
			continue
		}
		PrintKeyValue(table, fmt.Sprintf("%d", n), keyWidth)
	}

	var latest *time.Time
	if err := rt.db.Pool.QueryRow(ctx, `SELECT MAX(date) FROM prices`).Scan(&latest); err != nil {
		return fmt.Errorf("latest price date: %w", err)
	}
	if latest == nil && dataCheckDate == "" {
		PrintWarning("No prices stored yet; run `quant ingest all`")
		return nil
	}

	var fallback time.Time
	if latest != nil {
		fallback = *latest
	}
	day, err := parseDate(dataCheckDate, fallback)
	if err != nil {
		return err
	}

	snapshot, err := quality.NewQualityGate(rt.db.Pool, quality.DefaultConfig()).Check(ctx, day)
	if err != nil {
		return fmt.Errorf("quality gate: %w", err)
	}

	PrintHeader("Quality gate " + day.Format(dateLayout))
	PrintKeyValue("Active stocks", fmt.Sprintf("%d", snapshot.TotalStocks), keyWidth)
	PrintKeyValue("Valid stocks", fmt.Sprintf("%d", snapshot.ValidStocks), keyWidth)

	kinds := make([]string, 0, len(snapshot.Coverage))
	for k := range snapshot.Coverage {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		PrintKeyValue("Coverage "+k, pct(snapshot.Coverage[k]), keyWidth)
	}
	PrintKeyValue("Quality score", fmt.Sprintf("%.2f", snapshot.QualityScore), keyWidth)

	if snapshot.Passed {
		PrintSuccess("Quality gate passed")
	} else {
		PrintWarning("Quality gate failed")
	}
	return nil
}

func countRows(ctx context.Context, pool *pgxpool.Pool, table string) (int64, error) {
	var n int64
	// table names come from countedTables only
	err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}
