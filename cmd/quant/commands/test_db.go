package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/pkg/config"
	"github.com/adishahh/indian-market-ml-platform/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Test the PostgreSQL connection",
	Long: `Connects to DATABASE_URL, runs a health check and prints pool statistics.

Example:
  go run ./cmd/quant test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	PrintHeader("Database connection test")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	PrintKeyValue("Env", cfg.Env, keyWidth)
	PrintKeyValue("Database URL", maskPassword(cfg.Database.URL), keyWidth)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	PrintSuccess("Connection established")

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	PrintKeyValue("Response time", status.ResponseTime.String(), keyWidth)

	stats := status.Stats
	PrintHeader("Pool statistics")
	PrintKeyValue("Max conns", fmt.Sprintf("%d", stats.MaxConns), keyWidth)
	PrintKeyValue("Total conns", fmt.Sprintf("%d", stats.TotalConns), keyWidth)
	PrintKeyValue("Idle conns", fmt.Sprintf("%d", stats.IdleConns), keyWidth)
	PrintKeyValue("Acquired conns", fmt.Sprintf("%d", stats.AcquiredConns), keyWidth)
	PrintKeyValue("Acquire count", fmt.Sprintf("%d", stats.AcquireCount), keyWidth)
	PrintKeyValue("Acquire duration", stats.AcquireDuration.String(), keyWidth)

	PrintSuccess("Database is healthy")
	return nil
}

// maskPassword hides the password component of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
