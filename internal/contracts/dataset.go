package contracts

import "time"

// LabelMode selects how the regression target is defined
type LabelMode string

const (
	// LabelRaw uses the stock's own forward return
	LabelRaw LabelMode = "raw"
	// LabelExcess subtracts the benchmark's forward return over the same horizon
	LabelExcess LabelMode = "excess"
)

// Valid reports whether m is a known mode
func (m LabelMode) Valid() bool {
	return m == LabelRaw || m == LabelExcess
}

// LabeledRow is one training example.
// Values is aligned with Dataset.FeatureNames.
type LabeledRow struct {
	StockID       int       `json:"stock_id"`
	Date          time.Time `json:"date"`
	Values        []float64 `json:"values"`
	ForwardReturn float64   `json:"forward_return"` // realized raw return, used for P&L
	Target        float64   `json:"target"`
	TargetClass   int       `json:"target_class"` // 1 if Target > 0
}

// Dataset is the assembler output
// ⭐ SSOT: rows are sorted by (date, stock_id)
type Dataset struct {
	FeatureNames []string     `json:"feature_names"`
	Rows         []LabeledRow `json:"rows"`
	Horizon      int          `json:"horizon"`
	Mode         LabelMode    `json:"mode"`
}

// MinDate returns the earliest row date (zero when empty)
func (d *Dataset) MinDate() time.Time {
	if len(d.Rows) == 0 {
		return time.Time{}
	}
	return d.Rows[0].Date
}

// MaxDate returns the latest row date (zero when empty)
func (d *Dataset) MaxDate() time.Time {
	if len(d.Rows) == 0 {
		return time.Time{}
	}
	return d.Rows[len(d.Rows)-1].Date
}

// Slice returns rows with from <= date < to
func (d *Dataset) Slice(from, to time.Time) []LabeledRow {
	var out []LabeledRow
	for _, r := range d.Rows {
		if !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	return out
}
