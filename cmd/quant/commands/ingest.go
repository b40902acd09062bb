package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/internal/s0_data/collector"
)

var (
	ingestFrom      string
	ingestTo        string
	ingestStocksCSV string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch raw market data",
	Long: `Fetches stocks, daily bars, macro indices and headlines into Postgres.

Every insert is idempotent; re-running a range adds only missing rows.
A failing symbol is logged and skipped.

Example:
  go run ./cmd/quant ingest stocks --file data/nifty50.csv
  go run ./cmd/quant ingest prices --from 2018-01-01
  go run ./cmd/quant ingest all`,
}

var (
	ingestStocksCmd = &cobra.Command{
		Use:   "stocks",
		Short: "Load the stock universe from CSV",
		RunE:  runIngest(ingestStocks),
	}

	ingestPricesCmd = &cobra.Command{
		Use:   "prices",
		Short: "Fetch daily OHLCV bars for every active stock",
		RunE:  runIngest(ingestPrices),
	}

	ingestIndicesCmd = &cobra.Command{
		Use:   "indices",
		Short: "Fetch macro index levels",
		RunE:  runIngest(ingestIndices),
	}

	ingestNewsCmd = &cobra.Command{
		Use:   "news",
		Short: "Fetch headlines from the provider and RSS feeds",
		RunE:  runIngest(ingestNews),
	}

	ingestAllCmd = &cobra.Command{
		Use:   "all",
		Short: "Run stocks, prices, indices and news in order",
		RunE: runIngest(func(ctx context.Context, rt *runtime, col *collector.Collector) error {
			for _, step := range []ingestStep{ingestStocks, ingestPrices, ingestIndices, ingestNews} {
				if err := step(ctx, rt, col); err != nil {
					return err
				}
			}
			return nil
		}),
	}
)

type ingestStep func(ctx context.Context, rt *runtime, col *collector.Collector) error

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestStocksCmd, ingestPricesCmd, ingestIndicesCmd, ingestNewsCmd, ingestAllCmd)

	ingestCmd.PersistentFlags().StringVar(&ingestFrom, "from", "", "start date YYYY-MM-DD (default HISTORY_START)")
	ingestCmd.PersistentFlags().StringVar(&ingestTo, "to", "", "end date YYYY-MM-DD (default today)")
	ingestCmd.PersistentFlags().StringVar(&ingestStocksCSV, "file", "", "stock universe CSV (default STOCKS_CSV)")
}

func runIngest(step ingestStep) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		return step(ctx, rt, rt.collector())
	}
}

func ingestRange(rt *runtime) (time.Time, time.Time, error) {
	historyStart, err := parseDate(rt.cfg.Provider.HistoryStart, time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := parseDate(ingestFrom, historyStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate(ingestTo, time.Now().UTC())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to.Format(dateLayout), from.Format(dateLayout))
	}
	return from, to, nil
}

func ingestStocks(ctx context.Context, rt *runtime, col *collector.Collector) error {
	path := ingestStocksCSV
	if path == "" {
		path = rt.cfg.Provider.StocksCSV
	}

	PrintHeader("Ingest: stocks")
	n, err := col.LoadStocksFile(ctx, path)
	if err != nil {
		return fmt.Errorf("load stocks: %w", err)
	}
	PrintSuccess(fmt.Sprintf("%d new stocks from %s", n, path))
	return nil
}

func ingestPrices(ctx context.Context, rt *runtime, col *collector.Collector) error {
	from, to, err := ingestRange(rt)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Ingest: prices %s ~ %s", from.Format(dateLayout), to.Format(dateLayout)))
	results, err := col.FetchAllPrices(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch prices: %w", err)
	}
	printResults(results)
	return nil
}

func ingestIndices(ctx context.Context, rt *runtime, col *collector.Collector) error {
	from, to, err := ingestRange(rt)
	if err != nil {
		return err
	}

	PrintHeader("Ingest: macro indices")
	results, err := col.FetchAllIndices(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch indices: %w", err)
	}
	printResults(results)
	return nil
}

func ingestNews(ctx context.Context, rt *runtime, col *collector.Collector) error {
	PrintHeader("Ingest: news")
	results, err := col.FetchNews(ctx, rt.cfg.News.Symbols)
	if err != nil {
		return fmt.Errorf("fetch news: %w", err)
	}
	printResults(results)
	return nil
}

func printResults(results []collector.FetchResult) {
	widths := []int{14, 8, 9, 40}
	PrintTableHeader([]string{"ENTITY", "FETCHED", "INSERTED", "ERROR"}, widths)
	for _, r := range results {
		errText := ""
		if r.Error != nil {
			errText = r.Error.Error()
			if len(errText) > 40 {
				errText = errText[:37] + "..."
			}
		}
		PrintTableRow([]string{r.Entity, fmt.Sprint(r.Fetched), fmt.Sprint(r.Inserted), errText}, widths)
	}

	s := collector.Summarize(results)
	PrintSeparator()
	PrintSuccess(fmt.Sprintf("%d succeeded, %d failed, %d rows inserted", s.Success, s.Failed, s.Inserted))
}
