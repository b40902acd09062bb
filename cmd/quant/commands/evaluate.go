package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/internal/backtest"
	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
)

var tradeSymbol string

// walkforwardCmd represents the walkforward command
var walkforwardCmd = &cobra.Command{
	Use:   "walkforward",
	Short: "Rolling train/test evaluation",
	Long: `Retrains a fresh classifier per rolling window and reports the
annualized Sharpe ratio of a long/flat strategy on each test window.

Example:
  go run ./cmd/quant walkforward`,
	RunE: runWalkForward,
}

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Evaluate the held-out split as a portfolio or trade simulation",
	Long: `Trains on the chronological training split and replays the
held-out split.

Subcommands:
  portfolio  - volatility-targeted, cost-aware portfolio metrics
  trades     - single-stock buy/sell simulation

Example:
  go run ./cmd/quant backtest portfolio
  go run ./cmd/quant backtest trades --symbol TCS`,
}

var (
	backtestPortfolioCmd = &cobra.Command{
		Use:   "portfolio",
		Short: "Volatility-targeted portfolio evaluation",
		RunE:  runBacktestPortfolio,
	}

	backtestTradesCmd = &cobra.Command{
		Use:   "trades",
		Short: "Single-stock trade simulation",
		RunE:  runBacktestTrades,
	}
)

func init() {
	rootCmd.AddCommand(walkforwardCmd, backtestCmd)
	backtestCmd.AddCommand(backtestPortfolioCmd, backtestTradesCmd)
	backtestTradesCmd.Flags().StringVar(&tradeSymbol, "symbol", "TCS", "stock to simulate")
}

func runWalkForward(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	PrintHeader("Walk-forward evaluation")
	ds, err := rt.assembler().Build(ctx)
	if err != nil {
		return fmt.Errorf("assemble dataset: %w", err)
	}

	report, err := backtest.NewEvaluator(rt.model.WalkForwardConfig(), rt.trainer(), rt.metrics, rt.log).Run(ctx, ds)
	if err != nil {
		return err
	}

	widths := []int{23, 23, 7, 6, 8}
	PrintTableHeader([]string{"TRAIN", "TEST", "ROWS", "", "SHARPE"}, widths)
	for _, w := range report.Windows {
		sharpe := fmt.Sprintf("%.3f", w.Sharpe)
		if w.Skipped {
			sharpe = "skip: " + w.SkipReason
		}
		PrintTableRow([]string{
			w.TrainStart.Format(dateLayout) + " ~ " + w.TrainEnd.Format(dateLayout),
			w.TestStart.Format(dateLayout) + " ~ " + w.TestEnd.Format(dateLayout),
			fmt.Sprint(w.TrainRows), fmt.Sprint(w.TestRows), sharpe,
		}, widths)
	}
	PrintSeparator()
	PrintKeyValue("Evaluated", fmt.Sprint(report.Evaluated), 11)
	PrintKeyValue("Skipped", fmt.Sprint(report.Skipped), 11)
	PrintKeyValue("Mean Sharpe", fmt.Sprintf("%.3f", report.MeanSharpe), 11)

	return rt.experiments().Append(s3_model.ExperimentRecord{
		RunID:      report.RunID,
		Kind:       "walkforward",
		Timestamp:  time.Now().UTC(),
		ConfigHash: rt.modelHash,
		Horizon:    ds.Horizon,
		LabelMode:  ds.Mode,
		Params:     rt.model.Model.Params,
		Extra: map[string]float64{
			"mean_sharpe": report.MeanSharpe,
			"evaluated":   float64(report.Evaluated),
			"skipped":     float64(report.Skipped),
		},
	})
}

// heldOut trains on the training split and scores the held-out rows
func heldOut(cmd *cobra.Command, rt *runtime) (*contracts.Dataset, []contracts.LabeledRow, []float64, error) {
	ds, err := rt.assembler().Build(cmd.Context())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("assemble dataset: %w", err)
	}

	train, test := s3_model.Split(ds.Rows, rt.model.Model.TestFraction)
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, nil, fmt.Errorf("split left an empty side (%d/%d rows): %w", len(train), len(test), contracts.ErrDataUnavailable)
	}

	model, err := rt.trainer().Fit(cmd.Context(), train)
	if err != nil {
		return nil, nil, nil, err
	}

	X, _ := s3_model.Matrix(test)
	probs, err := model.PredictProbaBatch(X)
	if err != nil {
		return nil, nil, nil, err
	}
	return ds, test, probs, nil
}

func runBacktestPortfolio(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	PrintHeader("Backtest: portfolio")
	ds, test, probs, err := heldOut(cmd, rt)
	if err != nil {
		return err
	}

	res, err := backtest.EvaluatePortfolio(ds.FeatureNames, test, probs, rt.model.PortfolioConfig())
	if err != nil {
		return err
	}

	PrintKeyValue("Test days", fmt.Sprint(res.Days), 20)
	PrintKeyValue("Directional accuracy", pct(res.DirectionalAccuracy), 20)
	PrintKeyValue("Total return", pct(res.TotalReturn), 20)
	PrintKeyValue("Mean daily return", fmt.Sprintf("%.5f", res.MeanDailyReturn), 20)
	PrintKeyValue("Sharpe ratio", fmt.Sprintf("%.3f", res.Sharpe), 20)
	PrintKeyValue("Avg turnover", fmt.Sprintf("%.4f", res.AvgTurnover), 20)
	PrintKeyValue(fmt.Sprintf("VaR %.0f%%", res.Tail.Confidence*100), pct(res.Tail.VaR), 20)
	PrintKeyValue(fmt.Sprintf("CVaR %.0f%%", res.Tail.Confidence*100), pct(res.Tail.CVaR), 20)

	return rt.experiments().Append(s3_model.ExperimentRecord{
		RunID:      uuid.NewString(),
		Kind:       "backtest_portfolio",
		Timestamp:  time.Now().UTC(),
		ConfigHash: rt.modelHash,
		Horizon:    ds.Horizon,
		LabelMode:  ds.Mode,
		Params:     rt.model.Model.Params,
		Extra: map[string]float64{
			"sharpe":       res.Sharpe,
			"total_return": res.TotalReturn,
			"accuracy":     res.DirectionalAccuracy,
			"var":          res.Tail.VaR,
			"cvar":         res.Tail.CVaR,
		},
	})
}

func runBacktestTrades(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	stock, err := rt.stocks.GetStockBySymbol(ctx, tradeSymbol)
	if err != nil {
		return err
	}

	PrintHeader("Backtest: trades " + stock.Symbol)
	ds, test, probs, err := heldOut(cmd, rt)
	if err != nil {
		return err
	}

	var rows []contracts.LabeledRow
	var stockProbs []float64
	for i, r := range test {
		if r.StockID == stock.ID {
			rows = append(rows, r)
			stockProbs = append(stockProbs, probs[i])
		}
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s has no held-out rows: %w", stock.Symbol, contracts.ErrDataUnavailable)
	}

	bars, err := rt.prices.GetHistory(ctx, stock.ID)
	if err != nil {
		return err
	}
	points, err := backtest.SimPoints(ds.FeatureNames, rows, stockProbs, bars)
	if err != nil {
		return err
	}

	res, err := backtest.NewSimulator(rt.model.SimConfig()).Run(points)
	if err != nil {
		return err
	}

	widths := []int{10, 4, 10, 7, 10}
	PrintTableHeader([]string{"DATE", "SIDE", "PRICE", "SHARES", "PROFIT"}, widths)
	for _, t := range res.Trades {
		PrintTableRow([]string{
			t.Date.Format(dateLayout), t.Side, t.Price.StringFixed(2), fmt.Sprint(t.Shares), t.Profit.StringFixed(2),
		}, widths)
	}
	PrintSeparator()
	PrintKeyValue("Final equity", res.FinalEquity.StringFixed(2), 12)
	PrintKeyValue("Total return", pct(res.TotalReturn), 12)
	PrintKeyValue("Round trips", fmt.Sprint(res.RoundTrips), 12)
	PrintKeyValue("Win rate", pct(res.WinRate), 12)
	PrintKeyValue("Max drawdown", pct(res.MaxDrawdown), 12)
	return nil
}
