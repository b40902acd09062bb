package contracts

import "time"

// WindowResult is the outcome of one walk-forward window
type WindowResult struct {
	TrainStart      time.Time `json:"train_start"`
	TrainEnd        time.Time `json:"train_end"`
	TestStart       time.Time `json:"test_start"`
	TestEnd         time.Time `json:"test_end"`
	TrainRows       int       `json:"train_rows"`
	TestRows        int       `json:"test_rows"`
	PurgedRows      int       `json:"purged_rows"`
	Sharpe          float64   `json:"sharpe"`
	MeanDailyReturn float64   `json:"mean_daily_return"`
	Skipped         bool      `json:"skipped,omitempty"`
	SkipReason      string    `json:"skip_reason,omitempty"`
}

// WalkForwardReport aggregates all windows of a run
type WalkForwardReport struct {
	RunID      string         `json:"run_id"`
	Windows    []WindowResult `json:"windows"`
	Evaluated  int            `json:"evaluated"`
	Skipped    int            `json:"skipped"`
	MeanSharpe float64        `json:"mean_sharpe"`
}

// Summarize fills Evaluated, Skipped and MeanSharpe from Windows
func (r *WalkForwardReport) Summarize() {
	r.Evaluated, r.Skipped = 0, 0
	sum := 0.0
	for _, w := range r.Windows {
		if w.Skipped {
			r.Skipped++
			continue
		}
		r.Evaluated++
		sum += w.Sharpe
	}
	r.MeanSharpe = 0
	if r.Evaluated > 0 {
		r.MeanSharpe = sum / float64(r.Evaluated)
	}
}
