package modelconfig

import (
	"github.com/shopspring/decimal"

	"github.com/adishahh/indian-market-ml-platform/internal/backtest"
	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/s1_features"
	"github.com/adishahh/indian-market-ml-platform/internal/s2_dataset"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
)

// Config is the model pipeline configuration (config/model.yaml)
// ⭐ SSOT: every indicator window, label policy and hyperparameter comes from here
type Config struct {
	Features    FeatureConfig     `yaml:"features" json:"features"`
	Dataset     DatasetConfig     `yaml:"dataset" json:"dataset"`
	Model       ModelConfig       `yaml:"model" json:"model"`
	WalkForward WalkForwardConfig `yaml:"walk_forward" json:"walk_forward"`
	Portfolio   PortfolioConfig   `yaml:"portfolio" json:"portfolio"`
	Simulation  SimulationConfig  `yaml:"simulation" json:"simulation"`
	Tuning      TuningConfig      `yaml:"tuning" json:"tuning"`
}

// FeatureConfig holds indicator windows
type FeatureConfig struct {
	SMAWindows       []int `yaml:"sma_windows" json:"sma_windows" default:"[20,50]" validate:"dive,min=2"`
	EMASpan          int   `yaml:"ema_span" json:"ema_span" default:"20" validate:"min=2"`
	RSIWindow        int   `yaml:"rsi_window" json:"rsi_window" default:"14" validate:"min=2"`
	VolatilityWindow int   `yaml:"volatility_window" json:"volatility_window" default:"20" validate:"min=2"`
	Lags             []int `yaml:"lags" json:"lags" validate:"dive,min=1"`
}

// DatasetConfig holds the labeling policy
type DatasetConfig struct {
	Horizon          int    `yaml:"horizon" json:"horizon" default:"5" validate:"min=1,max=60"`
	LabelMode        string `yaml:"label_mode" json:"label_mode" default:"raw" validate:"oneof=raw excess"`
	Benchmark        string `yaml:"benchmark" json:"benchmark" default:"^NSEI" validate:"required"`
	IncludeMacro     bool   `yaml:"include_macro" json:"include_macro" default:"true"`
	IncludeSentiment bool   `yaml:"include_sentiment" json:"include_sentiment" default:"true"`
}

// ModelConfig holds the chronological split and classifier parameters
type ModelConfig struct {
	TestFraction float64         `yaml:"test_fraction" json:"test_fraction" default:"0.2" validate:"gt=0,lt=1"`
	Params       s3_model.Params `yaml:"params" json:"params"`
}

// WalkForwardConfig holds rolling window sizes
type WalkForwardConfig struct {
	TrainYears   int `yaml:"train_years" json:"train_years" default:"3" validate:"min=1"`
	TestMonths   int `yaml:"test_months" json:"test_months" default:"6" validate:"min=1"`
	StepMonths   int `yaml:"step_months" json:"step_months" default:"6" validate:"min=1"`
	MinTrainRows int `yaml:"min_train_rows" json:"min_train_rows" default:"1000" validate:"min=1"`
	MinTestRows  int `yaml:"min_test_rows" json:"min_test_rows" default:"200" validate:"min=1"`
}

// PortfolioConfig holds volatility targeting and cost assumptions
type PortfolioConfig struct {
	TargetVol float64 `yaml:"target_vol" json:"target_vol" default:"0.15" validate:"gt=0"`
	CostBps   float64 `yaml:"cost_bps" json:"cost_bps" default:"10" validate:"gte=0"`
}

// SimulationConfig holds trade simulator rules
type SimulationConfig struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" default:"100000" validate:"gt=0"`
	TradeAmount    float64 `yaml:"trade_amount" json:"trade_amount" default:"20000" validate:"gt=0"`
	BuyThreshold   float64 `yaml:"buy_threshold" json:"buy_threshold" default:"0.6" validate:"gte=0,lte=1"`
	SellThreshold  float64 `yaml:"sell_threshold" json:"sell_threshold" default:"0.4" validate:"gte=0,lte=1"`
	RSIOverbought  float64 `yaml:"rsi_overbought" json:"rsi_overbought" default:"70" validate:"gt=0,lte=100"`
}

// TuningConfig holds random search settings
type TuningConfig struct {
	Trials int    `yaml:"trials" json:"trials" default:"50" validate:"min=1"`
	Seed   int64  `yaml:"seed" json:"seed" default:"42"`
	Output string `yaml:"output" json:"output" default:"config/best_params.yaml" validate:"required"`
}

// FeatureConfig converts to the indicator builder config
func (c *Config) FeatureConfig() s1_features.Config {
	return s1_features.Config{
		SMAWindows: append([]int(nil), c.Features.SMAWindows...),
		EMASpan:    c.Features.EMASpan,
		RSIWindow:  c.Features.RSIWindow,
		VolWindow:  c.Features.VolatilityWindow,
		Lags:       append([]int(nil), c.Features.Lags...),
	}
}

// DatasetOptions converts to the assembler options
func (c *Config) DatasetOptions() s2_dataset.Options {
	return s2_dataset.Options{
		Horizon:          c.Dataset.Horizon,
		Mode:             contracts.LabelMode(c.Dataset.LabelMode),
		Benchmark:        c.Dataset.Benchmark,
		IncludeMacro:     c.Dataset.IncludeMacro,
		IncludeSentiment: c.Dataset.IncludeSentiment,
	}
}

// WalkForwardConfig converts to the evaluator config
func (c *Config) WalkForwardConfig() backtest.Config {
	return backtest.Config{
		TrainYears:   c.WalkForward.TrainYears,
		TestMonths:   c.WalkForward.TestMonths,
		StepMonths:   c.WalkForward.StepMonths,
		MinTrainRows: c.WalkForward.MinTrainRows,
		MinTestRows:  c.WalkForward.MinTestRows,
	}
}

// PortfolioConfig converts to the portfolio evaluator config
func (c *Config) PortfolioConfig() backtest.PortfolioConfig {
	return backtest.PortfolioConfig{
		TargetVol: c.Portfolio.TargetVol,
		CostBps:   c.Portfolio.CostBps,
	}
}

// SimConfig converts to the trade simulator config
func (c *Config) SimConfig() backtest.SimConfig {
	return backtest.SimConfig{
		InitialCapital: decimal.NewFromFloat(c.Simulation.InitialCapital),
		TradeAmount:    decimal.NewFromFloat(c.Simulation.TradeAmount),
		BuyThreshold:   c.Simulation.BuyThreshold,
		SellThreshold:  c.Simulation.SellThreshold,
		RSIOverbought:  c.Simulation.RSIOverbought,
	}
}
