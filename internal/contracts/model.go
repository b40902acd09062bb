package contracts

import "time"

// ModelMetrics are held-out classification scores
type ModelMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"roc_auc"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// ArtifactMeta describes a persisted model version
// ⭐ SSOT: Version is the identifier written to prediction logs
type ArtifactMeta struct {
	Version      string              `json:"version"`
	RunID        string              `json:"run_id"`
	CreatedAt    time.Time           `json:"created_at"`
	FeatureNames []string            `json:"feature_names"`
	Horizon      int                 `json:"horizon"`
	LabelMode    LabelMode           `json:"label_mode"`
	ConfigHash   string              `json:"config_hash"`
	Metrics      ModelMetrics        `json:"metrics"`
	Importance   []FeatureImportance `json:"importance,omitempty"`
}

// FeatureImportance is the split gain a model attributes to one feature
type FeatureImportance struct {
	Feature string  `json:"feature"`
	Gain    float64 `json:"gain"`
	Share   float64 `json:"share"`
	Splits  int     `json:"splits"`
}

// PredictionLog is one row of prediction_logs
type PredictionLog struct {
	ID             int64     `json:"id,omitempty"`
	StockID        int       `json:"stock_id"`
	Symbol         string    `json:"symbol"`
	PredictionDate time.Time `json:"prediction_date"`
	PredictedClass int       `json:"predicted_class"`
	Probability    float64   `json:"probability"`
	ModelVersion   string    `json:"model_version"`
	ExecutionTime  time.Time `json:"execution_time"`
}

// Prediction labels
const (
	LabelBuy  = "Buy"
	LabelSell = "Sell"
)

// Prediction is the inference result returned to callers
type Prediction struct {
	Symbol        string             `json:"symbol"`
	Date          time.Time          `json:"date"`
	Label         string             `json:"prediction"`
	Class         int                `json:"predicted_class"`
	Probability   float64            `json:"probability"`
	RSI           float64            `json:"rsi"`
	Sentiment     float64            `json:"sentiment"`
	ModelVersion  string             `json:"model_version"`
	Features      map[string]float64 `json:"features,omitempty"`
	MissingFilled []string           `json:"missing_features,omitempty"`
}
