package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/internal/s2_dataset"
)

var datasetOut string

// datasetCmd represents the dataset command
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Assemble the labeled training dataset",
	Long: `Joins features_daily with forward returns and optional macro and
sentiment features, then prints a summary or writes CSV.

Example:
  go run ./cmd/quant dataset
  go run ./cmd/quant dataset --out data/training.csv`,
	RunE: runDataset,
}

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.Flags().StringVar(&datasetOut, "out", "", "write rows as CSV to this path")
}

func runDataset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	PrintHeader("Dataset")
	ds, err := rt.assembler().Build(ctx)
	if err != nil {
		return fmt.Errorf("assemble dataset: %w", err)
	}

	positives := 0
	for _, r := range ds.Rows {
		positives += r.TargetClass
	}

	PrintKeyValue("Rows", fmt.Sprint(len(ds.Rows)), 12)
	PrintKeyValue("Features", fmt.Sprint(len(ds.FeatureNames)), 12)
	PrintKeyValue("Horizon", fmt.Sprintf("%d days", ds.Horizon), 12)
	PrintKeyValue("Label mode", string(ds.Mode), 12)
	if len(ds.Rows) > 0 {
		PrintKeyValue("Range", ds.MinDate().Format(dateLayout)+" ~ "+ds.MaxDate().Format(dateLayout), 12)
		PrintKeyValue("Positive", pct(float64(positives)/float64(len(ds.Rows))), 12)
	}

	if datasetOut == "" {
		return nil
	}

	f, err := os.Create(datasetOut)
	if err != nil {
		return fmt.Errorf("create %s: %w", datasetOut, err)
	}
	defer f.Close()

	if err := s2_dataset.WriteCSV(f, ds); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	PrintSuccess("Dataset written to " + datasetOut)
	return nil
}
