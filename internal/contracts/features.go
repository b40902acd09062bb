package contracts

import (
	"sort"
	"time"
)

// Feature column names
// ⭐ SSOT: model feature vectors are keyed by these names
const (
	FeatureReturn1D      = "return_1d"
	FeatureReturn5D      = "return_5d"
	FeatureReturn20D     = "return_20d"
	FeatureSMA20         = "sma_20"
	FeatureSMA50         = "sma_50"
	FeatureEMA20         = "ema_20"
	FeatureRSI14         = "rsi_14"
	FeatureVolatility20D = "volatility_20d"
	FeatureSentiment     = "sentiment_score"
)

// TechnicalFeatureNames is the fixed column order of features_daily
var TechnicalFeatureNames = []string{
	FeatureReturn1D,
	FeatureReturn5D,
	FeatureReturn20D,
	FeatureSMA20,
	FeatureSMA50,
	FeatureEMA20,
	FeatureRSI14,
	FeatureVolatility20D,
}

// MacroIndex describes an auxiliary index whose daily return becomes a feature
type MacroIndex struct {
	Symbol  string
	Name    string
	Feature string
}

// MacroIndices are the indices ingested alongside stocks.
// Nifty 50 doubles as the excess-return benchmark.
var MacroIndices = []MacroIndex{
	{Symbol: "^NSEI", Name: "Nifty 50", Feature: "macro_nifty_50_ret"},
	{Symbol: "^NSEBANK", Name: "Nifty Bank", Feature: "macro_nifty_bank_ret"},
	{Symbol: "INR=X", Name: "USD/INR", Feature: "macro_usd_inr_ret"},
	{Symbol: "CL=F", Name: "Crude Oil", Feature: "macro_crude_oil_ret"},
	{Symbol: "GC=F", Name: "Gold", Feature: "macro_gold_ret"},
}

// BenchmarkSymbol is the default benchmark for excess-return labels
const BenchmarkSymbol = "^NSEI"

// FeatureRow holds indicator values for one (stock, date).
// Extra carries lag features and non-default SMA windows.
type FeatureRow struct {
	StockID       int                `json:"stock_id"`
	Date          time.Time          `json:"date"`
	Return1D      float64            `json:"return_1d"`
	Return5D      float64            `json:"return_5d"`
	Return20D     float64            `json:"return_20d"`
	SMA20         float64            `json:"sma_20"`
	SMA50         float64            `json:"sma_50"`
	EMA20         float64            `json:"ema_20"`
	RSI14         float64            `json:"rsi_14"`
	Volatility20D float64            `json:"volatility_20d"`
	Extra         map[string]float64 `json:"extra,omitempty"`
}

// Values returns the row as name -> value
func (r FeatureRow) Values() map[string]float64 {
	out := map[string]float64{
		FeatureReturn1D:      r.Return1D,
		FeatureReturn5D:      r.Return5D,
		FeatureReturn20D:     r.Return20D,
		FeatureSMA20:         r.SMA20,
		FeatureSMA50:         r.SMA50,
		FeatureEMA20:         r.EMA20,
		FeatureRSI14:         r.RSI14,
		FeatureVolatility20D: r.Volatility20D,
	}
	for k, v := range r.Extra {
		out[k] = v
	}
	return out
}

// ExtraNames returns Extra keys in sorted order
func (r FeatureRow) ExtraNames() []string {
	names := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FeatureStoreRow is the latest serving snapshot for one stock
// ⭐ SSOT: inference reads only this shape
type FeatureStoreRow struct {
	FeatureRow
	Symbol    string             `json:"symbol"`
	Macro     map[string]float64 `json:"macro"`
	Sentiment float64            `json:"sentiment_score"`
	CreatedAt time.Time          `json:"created_at"`
}

// Values merges technical, macro and sentiment features
func (r FeatureStoreRow) Values() map[string]float64 {
	out := r.FeatureRow.Values()
	for k, v := range r.Macro {
		out[k] = v
	}
	out[FeatureSentiment] = r.Sentiment
	return out
}
