package contracts

import (
	"strings"
	"time"
)

// Stock is a tracked NSE equity
// ⭐ SSOT: symbol is stored without the exchange suffix (TCS, not TCS.NS)
type Stock struct {
	ID       int    `json:"stock_id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	IsActive bool   `json:"is_active"`
}

// PriceBar is one daily OHLCV observation
type PriceBar struct {
	StockID int       `json:"stock_id"`
	Date    time.Time `json:"date"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  int64     `json:"volume"`
}

// Index is a benchmark or macro series master row
type Index struct {
	ID     int    `json:"index_id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// IndexLevel is one daily close of an index
type IndexLevel struct {
	IndexID int       `json:"index_id"`
	Date    time.Time `json:"date"`
	Close   float64   `json:"close"`
}

// NewsItem is a dated headline.
// SentimentScore stays nil until an external scorer fills it.
type NewsItem struct {
	Date           time.Time `json:"date"`
	Symbol         string    `json:"symbol,omitempty"`
	Headline       string    `json:"headline"`
	Source         string    `json:"source,omitempty"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
}

// DataQualitySnapshot is a per-date coverage summary of the store
// ⭐ SSOT: coverage keys are prices, features, feature_store, news
type DataQualitySnapshot struct {
	Date         time.Time          `json:"date"`
	TotalStocks  int                `json:"total_stocks"`
	ValidStocks  int                `json:"valid_stocks"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"` // 0.0 ~ 1.0
	Passed       bool               `json:"passed"`
}

// IsValid checks if the data quality snapshot meets minimum requirements
func (d *DataQualitySnapshot) IsValid() bool {
	return d.QualityScore >= 0.7 && d.ValidStocks > 0
}

// CoverageRate returns the average coverage rate across all data types
func (d *DataQualitySnapshot) CoverageRate() float64 {
	if len(d.Coverage) == 0 {
		return 0.0
	}

	total := 0.0
	for _, rate := range d.Coverage {
		total += rate
	}

	return total / float64(len(d.Coverage))
}

// NormalizeSymbol strips the exchange suffix and upper-cases.
// "tcs.ns" -> "TCS". A bare suffix is kept as is.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed := strings.TrimSuffix(s, ".NS"); trimmed != "" {
		return trimmed
	}
	return s
}

// ProviderSymbol returns the NSE ticker used by market data providers
func ProviderSymbol(symbol string) string {
	s := NormalizeSymbol(symbol)
	if strings.HasSuffix(s, ".NS") {
		return s
	}
	return s + ".NS"
}
