package backtest

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/risk"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
)

// PortfolioConfig holds position sizing and cost settings
type PortfolioConfig struct {
	TargetVol float64 // annualized
	CostBps   float64 // per unit of turnover
}

// DefaultPortfolioConfig returns 15% target volatility and 10 bps costs
func DefaultPortfolioConfig() PortfolioConfig {
	return PortfolioConfig{TargetVol: 0.15, CostBps: 10}
}

// PortfolioResult is a cost-aware portfolio-level evaluation
type PortfolioResult struct {
	Days                int           `json:"days"`
	DirectionalAccuracy float64       `json:"directional_accuracy"`
	TotalReturn         float64       `json:"total_return"`
	MeanDailyReturn     float64       `json:"mean_daily_return"`
	Sharpe              float64       `json:"sharpe_ratio"`
	AvgTurnover         float64       `json:"avg_turnover"`
	Tail                risk.TailRisk `json:"tail_risk"`
}

// EvaluatePortfolio sizes long-only positions by volatility and charges turnover costs.
// probs is aligned with rows; featureNames locates volatility_20d in each row.
func EvaluatePortfolio(featureNames []string, rows []contracts.LabeledRow, probs []float64, cfg PortfolioConfig) (*PortfolioResult, error) {
	if len(rows) != len(probs) {
		return nil, fmt.Errorf("%d rows but %d probabilities", len(rows), len(probs))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to evaluate: %w", contracts.ErrDataUnavailable)
	}

	volIdx := -1
	for i, name := range featureNames {
		if name == contracts.FeatureVolatility20D {
			volIdx = i
		}
	}
	if volIdx < 0 {
		return nil, fmt.Errorf("feature %s missing: %w", contracts.FeatureVolatility20D, contracts.ErrSchemaMismatch)
	}

	// turnover is measured per stock in date order
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		if ra.StockID != rb.StockID {
			return ra.StockID < rb.StockID
		}
		return ra.Date.Before(rb.Date)
	})

	cost := cfg.CostBps / 10000
	net := make([]float64, len(rows))
	correct := 0
	turnoverSum := 0.0
	prevStock, prevPos := -1, 0.0
	for _, i := range order {
		r := rows[i]
		signal := 0.0
		if probs[i] >= s3_model.ClassThreshold {
			signal = 1
		}
		if (signal == 1) == (r.ForwardReturn > 0) {
			correct++
		}

		pos := position(signal, r.Values[volIdx], cfg.TargetVol)
		turnover := pos
		if r.StockID == prevStock {
			turnover = math.Abs(pos - prevPos)
		}
		prevStock, prevPos = r.StockID, pos

		turnoverSum += turnover
		net[i] = pos*r.ForwardReturn - turnover*cost
	}

	daily := DailyMeans(rows, net)
	total := 1.0
	for _, d := range daily {
		total *= 1 + d
	}

	return &PortfolioResult{
		Days:                len(daily),
		DirectionalAccuracy: float64(correct) / float64(len(rows)),
		TotalReturn:         total - 1,
		MeanDailyReturn:     stat.Mean(daily, nil),
		Sharpe:              Sharpe(daily),
		AvgTurnover:         turnoverSum / float64(len(rows)),
		Tail:                risk.Tail(daily, risk.DefaultConfidence),
	}, nil
}

// position scales a signal to the target annual volatility, clipped to [0, 1]
func position(signal, dailyVol, targetVol float64) float64 {
	annualVol := dailyVol * math.Sqrt(TradingDays)
	if signal == 0 || annualVol <= 0 || math.IsNaN(annualVol) || math.IsInf(annualVol, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, signal*targetVol/annualVol))
}
