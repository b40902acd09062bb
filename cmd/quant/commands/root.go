package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	modelConfigPath string
	verbose         bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Indian equity ML pipeline",
	Long: `Indian Market ML Platform CLI

Daily NSE data ingestion, technical features, labeled datasets,
gradient-boosted classifiers, walk-forward evaluation and a
prediction API.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant ingest all
  go run ./cmd/quant features build
  go run ./cmd/quant train
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Commands receive a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelConfigPath, "model-config", "", "model pipeline YAML (default from MODEL_CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
