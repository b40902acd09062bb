package backtest

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

func TestEvaluatePortfolio(t *testing.T) {
	daily := func(annual float64) []float64 { return []float64{annual / math.Sqrt(TradingDays)} }
	d0, d1 := date(2024, 1, 1), date(2024, 1, 2)

	rows := []contracts.LabeledRow{
		{StockID: 1, Date: d0, Values: daily(0.15), ForwardReturn: 0.02},
		{StockID: 1, Date: d1, Values: daily(0.15), ForwardReturn: -0.01},
		{StockID: 2, Date: d0, Values: daily(0.30), ForwardReturn: 0.04},
		{StockID: 2, Date: d1, Values: daily(0), ForwardReturn: -0.02},
	}
	probs := []float64{0.8, 0.2, 0.9, 0.9}

	result, err := EvaluatePortfolio([]string{contracts.FeatureVolatility20D}, rows, probs, DefaultPortfolioConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Days)
	assert.InDelta(t, 0.75, result.DirectionalAccuracy, 1e-12)
	assert.InDelta(t, 0.75, result.AvgTurnover, 1e-9)
	assert.InDelta(t, 1.01925*0.99925-1, result.TotalReturn, 1e-9)
	assert.InDelta(t, (0.01925-0.00075)/2, result.MeanDailyReturn, 1e-9)
	assert.InDelta(t, 0.00075, result.Tail.VaR, 1e-9)
	assert.InDelta(t, 0.00075, result.Tail.CVaR, 1e-9)
}

func TestEvaluatePortfolioErrors(t *testing.T) {
	rows := []contracts.LabeledRow{{Values: []float64{0.01}}}

	_, err := EvaluatePortfolio([]string{"rsi_14"}, rows, []float64{0.5}, DefaultPortfolioConfig())
	assert.ErrorIs(t, err, contracts.ErrSchemaMismatch)

	_, err = EvaluatePortfolio([]string{contracts.FeatureVolatility20D}, rows, nil, DefaultPortfolioConfig())
	assert.Error(t, err)
}

func TestPositionClipped(t *testing.T) {
	assert.Equal(t, 0.0, position(0, 0.01, 0.15))
	assert.Equal(t, 0.0, position(1, 0, 0.15))
	assert.Equal(t, 1.0, position(1, 0.0001, 0.15))
	assert.InDelta(t, 0.5, position(1, 0.30/math.Sqrt(TradingDays), 0.15), 1e-9)
}

func TestSimulatorRun(t *testing.T) {
	points := []SimPoint{
		{Date: date(2024, 1, 1), Close: 100, Probability: 0.7, RSI: 50},
		{Date: date(2024, 1, 2), Close: 110, Probability: 0.5, RSI: 60},
		{Date: date(2024, 1, 3), Close: 120, Probability: 0.5, RSI: 75},
		{Date: date(2024, 1, 4), Close: 100, Probability: 0.65, RSI: 72},
		{Date: date(2024, 1, 5), Close: 100, Probability: 0.7, RSI: 40},
		{Date: date(2024, 1, 6), Close: 90, Probability: 0.3, RSI: 40},
	}

	result, err := NewSimulator(DefaultSimConfig()).Run(points)
	require.NoError(t, err)

	require.Len(t, result.Trades, 4)
	assert.Equal(t, "BUY", result.Trades[0].Side)
	assert.Equal(t, int64(200), result.Trades[0].Shares)
	assert.True(t, result.Trades[1].Profit.Equal(decimal.NewFromInt(4000)))
	assert.True(t, result.Trades[3].Profit.Equal(decimal.NewFromInt(-2000)))

	assert.True(t, result.FinalEquity.Equal(decimal.NewFromInt(102000)))
	assert.InDelta(t, 0.02, result.TotalReturn, 1e-12)
	assert.Equal(t, 2, result.RoundTrips)
	assert.Equal(t, 0.5, result.WinRate)
	assert.InDelta(t, 2000.0/104000.0, result.MaxDrawdown, 1e-9)
	assert.Len(t, result.EquityCurve, len(points))
}

func TestSimulatorSkipsUnaffordableTrade(t *testing.T) {
	points := []SimPoint{{Date: date(2024, 1, 1), Close: 50000, Probability: 0.9, RSI: 30}}

	result, err := NewSimulator(DefaultSimConfig()).Run(points)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
	assert.True(t, result.FinalEquity.Equal(decimal.NewFromInt(100000)))
}

func TestSimPoints(t *testing.T) {
	names := []string{contracts.FeatureRSI14}
	rows := []contracts.LabeledRow{
		{Date: date(2024, 1, 2), Values: []float64{65}},
		{Date: date(2024, 1, 1), Values: []float64{55}},
		{Date: date(2024, 1, 3), Values: []float64{45}},
	}
	bars := []contracts.PriceBar{
		{Date: date(2024, 1, 1), Close: 100},
		{Date: date(2024, 1, 2), Close: 101},
	}

	points, err := SimPoints(names, rows, []float64{0.2, 0.1, 0.3}, bars)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, SimPoint{Date: date(2024, 1, 1), Close: 100, Probability: 0.1, RSI: 55}, points[0])
	assert.Equal(t, 101.0, points[1].Close)
}
