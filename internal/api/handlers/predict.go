package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/inference"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/validate"
)

// Predictor serves predictions and exposes the loaded model
type Predictor interface {
	Predict(ctx context.Context, symbol string) (*contracts.Prediction, error)
	ModelVersion() (string, bool)
	LoadModel(src inference.ModelSource) error
}

// LogReader reads prediction history
type LogReader interface {
	RecentPredictions(ctx context.Context, symbol string, limit int) ([]contracts.PredictionLog, error)
}

// PredictionHandler handles inference endpoints
// ⭐ SSOT: error kind to HTTP status mapping lives here
type PredictionHandler struct {
	predictor Predictor
	logs      LogReader
	models    inference.ModelSource
	logger    *logger.Logger
}

// NewPredictionHandler creates a new prediction handler.
// logs and models may be nil; their endpoints then answer 503.
func NewPredictionHandler(p Predictor, logs LogReader, models inference.ModelSource, log *logger.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictor: p,
		logs:      logs,
		models:    models,
		logger:    log.Module("api"),
	}
}

// PredictRequest is the body of POST /predict
type PredictRequest struct {
	Symbol string `json:"symbol" default:"TCS.NS" validate:"required,max=32"`
}

// PredictResponse is the body of a successful prediction
type PredictResponse struct {
	Symbol       string             `json:"symbol"`
	Date         string             `json:"date"`
	Prediction   string             `json:"prediction"`
	Probability  float64            `json:"probability"`
	RSI          float64            `json:"rsi"`
	Sentiment    float64            `json:"sentiment"`
	ModelVersion string             `json:"model_version"`
	Features     map[string]float64 `json:"features"`
}

// Predict scores one symbol
// POST /predict
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.DefaultsAndStruct(r.Context(), &req); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Fields: verr.Fields})
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if contracts.NormalizeSymbol(req.Symbol) == "" {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request",
			Fields: []validate.FieldError{{
				Code:    "ERR_REQUIRED",
				Field:   "symbol",
				Message: "symbol is required",
			}},
		})
		return
	}

	pred, err := h.predictor.Predict(r.Context(), req.Symbol)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("symbol", req.Symbol).Error("Prediction failed")
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, PredictResponse{
		Symbol:       pred.Symbol,
		Date:         pred.Date.Format("2006-01-02"),
		Prediction:   pred.Label,
		Probability:  pred.Probability,
		RSI:          pred.RSI,
		Sentiment:    pred.Sentiment,
		ModelVersion: pred.ModelVersion,
		Features:     pred.Features,
	})
}

// defaultRecentLimit applies when ?limit is absent
const defaultRecentLimit = 50

// RecentPredictions lists logged predictions for a symbol
// GET /predictions/{symbol}?limit=N
func (h *PredictionHandler) RecentPredictions(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		respondError(w, http.StatusServiceUnavailable, "Prediction log unavailable")
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	symbol := mux.Vars(r)["symbol"]
	entries, err := h.logs.RecentPredictions(r.Context(), symbol, limit)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to read prediction logs")
		respondError(w, http.StatusInternalServerError, "Failed to read prediction logs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":      contracts.NormalizeSymbol(symbol),
		"limit":       limit,
		"predictions": entries,
	})
}

// ReloadModel reloads the active artifact
// POST /model/reload
func (h *PredictionHandler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	if h.models == nil {
		respondError(w, http.StatusServiceUnavailable, "Artifact store unavailable")
		return
	}

	if err := h.predictor.LoadModel(h.models); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	version, _ := h.predictor.ModelVersion()
	respondJSON(w, http.StatusOK, map[string]string{"model_version": version})
}

// Health reports liveness and model state
// GET /health
func (h *PredictionHandler) Health(w http.ResponseWriter, r *http.Request) {
	version, loaded := h.predictor.ModelVersion()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"model_loaded":  loaded,
		"model_version": version,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, contracts.ErrNoFeatureData), errors.Is(err, contracts.ErrUnknownSymbol):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
