package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

// SimConfig holds threshold trading rules
type SimConfig struct {
	InitialCapital decimal.Decimal
	TradeAmount    decimal.Decimal
	BuyThreshold   float64 // buy when probability exceeds this
	SellThreshold  float64 // sell when probability drops below this
	RSIOverbought  float64
}

// DefaultSimConfig returns 1 lakh capital, 20k per trade, 0.6/0.4 thresholds and RSI 70
func DefaultSimConfig() SimConfig {
	return SimConfig{
		InitialCapital: decimal.NewFromInt(100000),
		TradeAmount:    decimal.NewFromInt(20000),
		BuyThreshold:   0.6,
		SellThreshold:  0.4,
		RSIOverbought:  70,
	}
}

// SimPoint is one trading day for the simulated symbol
type SimPoint struct {
	Date        time.Time
	Close       float64
	Probability float64
	RSI         float64
}

// Trade is an executed buy or sell
type Trade struct {
	Date   time.Time       `json:"date"`
	Side   string          `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Shares int64           `json:"shares"`
	Profit decimal.Decimal `json:"profit"`
}

// EquityPoint is the marked-to-market value at a date
type EquityPoint struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

// SimResult is the simulation outcome
type SimResult struct {
	Trades      []Trade         `json:"trades"`
	EquityCurve []EquityPoint   `json:"equity_curve"`
	FinalEquity decimal.Decimal `json:"final_equity"`
	TotalReturn float64         `json:"total_return"` // fraction of initial capital
	RoundTrips  int             `json:"round_trips"`
	WinRate     float64         `json:"win_rate"`
	MaxDrawdown float64         `json:"max_drawdown"`
}

// Simulator replays model probabilities as a single-position strategy
type Simulator struct {
	config SimConfig
}

// NewSimulator creates a new trade simulator
func NewSimulator(config SimConfig) *Simulator {
	return &Simulator{config: config}
}

// Run buys when probability > buy threshold and RSI is not overbought,
// and sells when RSI is overbought or probability < sell threshold.
func (s *Simulator) Run(points []SimPoint) (*SimResult, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to simulate")
	}
	if !s.config.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("initial capital must be positive")
	}

	cash := s.config.InitialCapital
	var shares int64
	var entry decimal.Decimal
	result := &SimResult{}
	wins := 0

	for _, p := range points {
		price := decimal.NewFromFloat(p.Close)

		switch {
		case shares == 0 && p.Probability > s.config.BuyThreshold && p.RSI < s.config.RSIOverbought:
			if !price.IsPositive() {
				break
			}
			qty := s.config.TradeAmount.Div(price).IntPart()
			cost := price.Mul(decimal.NewFromInt(qty))
			if qty == 0 || cost.GreaterThan(cash) {
				break
			}
			shares = qty
			entry = price
			cash = cash.Sub(cost)
			result.Trades = append(result.Trades, Trade{Date: p.Date, Side: "BUY", Price: price, Shares: qty})

		case shares > 0 && (p.RSI > s.config.RSIOverbought || p.Probability < s.config.SellThreshold):
			qty := decimal.NewFromInt(shares)
			profit := price.Sub(entry).Mul(qty)
			cash = cash.Add(price.Mul(qty))
			result.Trades = append(result.Trades, Trade{Date: p.Date, Side: "SELL", Price: price, Shares: shares, Profit: profit})
			result.RoundTrips++
			if profit.IsPositive() {
				wins++
			}
			shares = 0
		}

		equity := cash.Add(price.Mul(decimal.NewFromInt(shares)))
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Date: p.Date, Equity: equity})
	}

	result.FinalEquity = result.EquityCurve[len(result.EquityCurve)-1].Equity
	result.TotalReturn = result.FinalEquity.Sub(s.config.InitialCapital).Div(s.config.InitialCapital).InexactFloat64()
	if result.RoundTrips > 0 {
		result.WinRate = float64(wins) / float64(result.RoundTrips)
	}
	result.MaxDrawdown = maxDrawdown(result.EquityCurve)

	return result, nil
}

// maxDrawdown returns the largest peak-to-trough decline as a fraction
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	worst := decimal.Zero
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
		}
		if !peak.IsPositive() {
			continue
		}
		drawdown := peak.Sub(point.Equity).Div(peak)
		if drawdown.GreaterThan(worst) {
			worst = drawdown
		}
	}
	return worst.InexactFloat64()
}

// SimPoints joins one stock's labeled rows with closing prices and model probabilities.
// Rows without a close on their date are dropped.
func SimPoints(featureNames []string, rows []contracts.LabeledRow, probs []float64, bars []contracts.PriceBar) ([]SimPoint, error) {
	if len(rows) != len(probs) {
		return nil, fmt.Errorf("%d rows but %d probabilities", len(rows), len(probs))
	}

	rsiIdx := -1
	for i, name := range featureNames {
		if name == contracts.FeatureRSI14 {
			rsiIdx = i
		}
	}
	if rsiIdx < 0 {
		return nil, fmt.Errorf("feature %s missing: %w", contracts.FeatureRSI14, contracts.ErrSchemaMismatch)
	}

	closes := make(map[string]float64, len(bars))
	for _, b := range bars {
		closes[b.Date.Format("2006-01-02")] = b.Close
	}

	points := make([]SimPoint, 0, len(rows))
	for i, r := range rows {
		c, ok := closes[r.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		points = append(points, SimPoint{Date: r.Date, Close: c, Probability: probs[i], RSI: r.Values[rsiIdx]})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}
