package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
)

var (
	trainNoActivate bool
	tuneTrials      int
	tuneWrite       bool
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train, persist and activate a classifier",
	Long: `Assembles the dataset, fits the gradient-boosted classifier on the
chronological training split and reports held-out metrics. The artifact
is saved under a new version and activated unless --no-activate is set.

Example:
  go run ./cmd/quant train
  go run ./cmd/quant train --no-activate`,
	RunE: runTrain,
}

// tuneCmd represents the tune command
var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Random search over classifier hyperparameters",
	Long: `Evaluates sampled hyperparameters on the held-out split and
writes the best set as a model config fragment.

Example:
  go run ./cmd/quant tune --trials 50`,
	RunE: runTune,
}

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List or activate model versions",
}

var (
	modelsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved model versions",
		RunE:  runModelsList,
	}

	modelsActivateCmd = &cobra.Command{
		Use:   "activate [version]",
		Short: "Point the manifest at a saved version",
		Args:  cobra.ExactArgs(1),
		RunE:  runModelsActivate,
	}

	modelsExplainCmd = &cobra.Command{
		Use:   "explain [version]",
		Short: "Rank features by split gain (default: active version)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModelsExplain,
	}
)

func init() {
	rootCmd.AddCommand(trainCmd, tuneCmd, modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsActivateCmd, modelsExplainCmd)

	trainCmd.Flags().BoolVar(&trainNoActivate, "no-activate", false, "save without activating")
	tuneCmd.Flags().IntVar(&tuneTrials, "trials", 0, "number of trials (default from model config)")
	tuneCmd.Flags().BoolVar(&tuneWrite, "write", true, "write best params to tuning.output")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	PrintHeader("Train")
	meta, err := rt.pipeline().Run(ctx, !trainNoActivate)
	if err != nil {
		return err
	}

	m := meta.Metrics
	PrintKeyValue("Version", meta.Version, 10)
	PrintKeyValue("Run ID", meta.RunID, 10)
	PrintKeyValue("Rows", fmt.Sprintf("%d train / %d test", m.TrainRows, m.TestRows), 10)
	PrintKeyValue("Features", fmt.Sprint(len(meta.FeatureNames)), 10)
	PrintSeparator()
	PrintKeyValue("Accuracy", fmt.Sprintf("%.4f", m.Accuracy), 10)
	PrintKeyValue("Precision", fmt.Sprintf("%.4f", m.Precision), 10)
	PrintKeyValue("Recall", fmt.Sprintf("%.4f", m.Recall), 10)
	PrintKeyValue("F1", fmt.Sprintf("%.4f", m.F1), 10)
	PrintKeyValue("ROC AUC", fmt.Sprintf("%.4f", m.AUC), 10)

	if trainNoActivate {
		PrintWarning("Saved without activation")
	} else {
		PrintSuccess("Activated " + meta.Version)
	}
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	trials := tuneTrials
	if trials == 0 {
		trials = rt.model.Tuning.Trials
	}

	PrintHeader(fmt.Sprintf("Tune: %d trials", trials))
	ds, err := rt.assembler().Build(ctx)
	if err != nil {
		return fmt.Errorf("assemble dataset: %w", err)
	}

	result, err := s3_model.NewTuner(rt.trainer(), rt.model.Tuning.Seed, rt.log).Tune(ctx, ds, trials)
	if err != nil {
		return err
	}

	best := result.Best
	PrintKeyValue("Best accuracy", fmt.Sprintf("%.4f", result.BestAccuracy), 16)
	PrintKeyValue("n_estimators", fmt.Sprint(best.NEstimators), 16)
	PrintKeyValue("max_depth", fmt.Sprint(best.MaxDepth), 16)
	PrintKeyValue("learning_rate", fmt.Sprintf("%.4f", best.LearningRate), 16)
	PrintKeyValue("subsample", fmt.Sprintf("%.3f", best.Subsample), 16)
	PrintKeyValue("colsample_bytree", fmt.Sprintf("%.3f", best.ColsampleByTree), 16)
	PrintKeyValue("reg_lambda", fmt.Sprintf("%.3g", best.Lambda), 16)
	PrintKeyValue("min_child_weight", fmt.Sprintf("%.2f", best.MinChildWeight), 16)

	if err := rt.experiments().Append(s3_model.ExperimentRecord{
		RunID:      uuid.NewString(),
		Kind:       "tune",
		Timestamp:  time.Now().UTC(),
		ConfigHash: rt.modelHash,
		Horizon:    ds.Horizon,
		LabelMode:  ds.Mode,
		Params:     best,
		Extra:      map[string]float64{"best_accuracy": result.BestAccuracy, "trials": float64(trials)},
	}); err != nil {
		return err
	}

	if tuneWrite {
		if err := s3_model.WriteBestParams(rt.model.Tuning.Output, best); err != nil {
			return err
		}
		PrintSuccess("Best params written to " + rt.model.Tuning.Output)
	}
	return nil
}

func runModelsList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	store := rt.artifacts()
	versions, err := store.Versions()
	if err != nil {
		return err
	}
	active, _ := store.ActiveVersion()

	PrintHeader("Models in " + store.Dir())
	widths := []int{2, 19, 9, 9, 8}
	PrintTableHeader([]string{"", "VERSION", "ACCURACY", "ROC AUC", "HORIZON"}, widths)
	for _, v := range versions {
		a, err := store.Load(v)
		if err != nil {
			PrintTableRow([]string{"", v, "corrupt", "", ""}, widths)
			continue
		}
		marker := ""
		if v == active {
			marker = "*"
		}
		PrintTableRow([]string{
			marker, v,
			fmt.Sprintf("%.4f", a.Meta.Metrics.Accuracy),
			fmt.Sprintf("%.4f", a.Meta.Metrics.AUC),
			fmt.Sprint(a.Meta.Horizon),
		}, widths)
	}
	return nil
}

func runModelsActivate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	version := args[0]
	if _, err := rt.artifacts().Load(version); err != nil {
		return err
	}
	if err := rt.artifacts().Activate(version); err != nil {
		return err
	}
	if err := s3_model.NewManifestRepository(rt.db.Pool).SetActive(ctx, version); err != nil {
		PrintWarning("Manifest mirror not updated: " + err.Error())
	}
	PrintSuccess("Activated " + version)
	return nil
}

func runModelsExplain(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	store := rt.artifacts()
	var artifact *s3_model.Artifact
	if len(args) == 1 {
		artifact, err = store.Load(args[0])
	} else {
		artifact, err = store.LoadActive()
	}
	if err != nil {
		return err
	}

	// older artifacts carry no stored ranking; recompute from the trees
	importance := artifact.Meta.Importance
	if len(importance) == 0 {
		if importance, err = artifact.Model.FeatureImportance(artifact.Meta.FeatureNames); err != nil {
			return err
		}
	}

	PrintHeader("Feature importance: " + artifact.Meta.Version)
	widths := []int{4, 24, 12, 8, 7}
	PrintTableHeader([]string{"RANK", "FEATURE", "GAIN", "SHARE", "SPLITS"}, widths)
	for _, row := range importanceRows(importance) {
		PrintTableRow(row, widths)
	}
	return nil
}

func importanceRows(importance []contracts.FeatureImportance) [][]string {
	rows := make([][]string, len(importance))
	for i, fi := range importance {
		rows[i] = []string{
			fmt.Sprint(i + 1),
			fi.Feature,
			fmt.Sprintf("%.4f", fi.Gain),
			pct(fi.Share),
			fmt.Sprint(fi.Splits),
		}
	}
	return rows
}
