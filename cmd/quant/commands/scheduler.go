package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
	_ "time/tzdata" // Asia/Kolkata without system zoneinfo

	"github.com/spf13/cobra"

	"github.com/adishahh/indian-market-ml-platform/internal/scheduler"
	"github.com/adishahh/indian-market-ml-platform/internal/scheduler/jobs"
)

const (
	// marketZone is the NSE trading time zone
	marketZone = "Asia/Kolkata"

	jobRetries    = 2
	jobRetryDelay = 5 * time.Minute
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run or inspect scheduled pipeline jobs",
	Long: `Runs the recurring pipeline in IST.

Jobs:
  daily_ingest           - weekdays 16:30 (prices, indices, news)
  feature_rebuild        - weekdays 17:00
  feature_store_refresh  - weekdays 17:15
  weekly_retrain         - Saturdays 06:00 (train and activate)

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run feature_rebuild`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs and their next run",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd, schedulerListCmd, schedulerRunCmd)
}

// initScheduler registers every pipeline job
func initScheduler(rt *runtime) (*scheduler.Scheduler, func(), error) {
	loc, err := time.LoadLocation(marketZone)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", marketZone, err)
	}

	refresher, closeCache, err := rt.storeRefresher()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(rt.log,
		scheduler.WithLocation(loc),
		scheduler.WithMetrics(rt.metrics),
		scheduler.WithRetry(jobRetries, jobRetryDelay),
	)

	for _, job := range []scheduler.Job{
		jobs.NewDailyIngestJob(rt.collector(), rt.cfg.News.Symbols, rt.log),
		jobs.NewFeatureRebuildJob(rt.featureBuilder(), rt.log),
		jobs.NewFeatureStoreJob(refresher, rt.log),
		jobs.NewRetrainJob(rt.pipeline(), nil, rt.log),
	} {
		if err := sched.AddJob(job); err != nil {
			closeCache()
			return nil, nil, err
		}
	}
	return sched, closeCache, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	sched, closeCache, err := initScheduler(rt)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeCache()

	if rt.cfg.MetricsEnabled {
		srv := &http.Server{Addr: ":" + rt.cfg.MetricsPort, Handler: rt.metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.WithError(err).Error("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sched.Start()

	PrintHeader("Scheduler")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	sched, closeCache, err := initScheduler(rt)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeCache()

	sched.Start()
	defer sched.Stop()

	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	sched, closeCache, err := initScheduler(rt)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer closeCache()

	result, err := sched.RunNow(ctx, args[0])
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("job %s failed: %s", result.JobName, result.Error)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", result.JobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	widths := []int{22, 16, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE", "NEXT RUN"}, widths)
	for _, name := range names {
		next := "-"
		if s := stats[name]; s.NextRun != nil {
			next = s.NextRun.Format("2006-01-02 15:04")
		}
		PrintTableRow([]string{name, stats[name].Schedule, next}, widths)
	}
}
