package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidence is the tail level reported by backtests
const DefaultConfidence = 0.95

// TailRisk summarizes the loss tail of a daily return series.
// Losses are positive numbers; 0 means no loss at that level.
type TailRisk struct {
	Confidence    float64 `json:"confidence"`
	VaR           float64 `json:"var"`
	CVaR          float64 `json:"cvar"`
	ParametricVaR float64 `json:"parametric_var"`
}

// Tail computes historical VaR, expected shortfall and normal VaR
// ⭐ SSOT: tail risk of strategy returns is computed only here
func Tail(returns []float64, confidence float64) TailRisk {
	out := TailRisk{Confidence: confidence}
	if len(returns) == 0 || confidence <= 0 || confidence >= 1 {
		return out
	}

	sorted := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return out
	}
	sort.Float64s(sorted)

	// tail holds the worst ceil((1-confidence)*n) returns, at least one
	idx := int(math.Ceil((1-confidence)*float64(len(sorted))-1e-9)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	out.VaR = loss(sorted[idx])
	out.CVaR = loss(stat.Mean(sorted[:idx+1], nil))

	if len(sorted) > 1 {
		mean, std := stat.MeanStdDev(sorted, nil)
		out.ParametricVaR = Parametric(mean, std, confidence)
	}
	return out
}

// Parametric returns the normal-distribution VaR for a mean and standard deviation
func Parametric(mean, stdDev, confidence float64) float64 {
	if stdDev <= 0 || confidence <= 0 || confidence >= 1 {
		return 0
	}
	z := distuv.UnitNormal.Quantile(confidence)
	return loss(mean - z*stdDev)
}

func loss(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
