package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// featuresCmd represents the features command
var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Compute technical features",
	Long: `Builds features_daily from stored prices and refreshes the
feature_store serving snapshot.

Example:
  go run ./cmd/quant features build
  go run ./cmd/quant features store`,
}

var (
	featuresBuildCmd = &cobra.Command{
		Use:   "build",
		Short: "Recompute features_daily for every stock",
		RunE:  runFeaturesBuild,
	}

	featuresStoreCmd = &cobra.Command{
		Use:   "store",
		Short: "Upsert the latest feature row per stock into feature_store",
		RunE:  runFeaturesStore,
	}
)

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.AddCommand(featuresBuildCmd, featuresStoreCmd)
}

func runFeaturesBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	PrintHeader("Features: rebuild features_daily")
	n, err := rt.featureBuilder().Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild features: %w", err)
	}
	PrintSuccess(fmt.Sprintf("%d feature rows written", n))
	return nil
}

func runFeaturesStore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	refresher, closeCache, err := rt.storeRefresher()
	if err != nil {
		return err
	}
	defer closeCache()

	PrintHeader("Features: refresh feature_store")
	n, err := refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh feature store: %w", err)
	}
	PrintSuccess(fmt.Sprintf("%d stocks refreshed", n))
	return nil
}
