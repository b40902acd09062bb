package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adishahh/indian-market-ml-platform/internal/api/handlers"
	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
	"github.com/adishahh/indian-market-ml-platform/internal/inference"
	"github.com/adishahh/indian-market-ml-platform/internal/realtime"
	"github.com/adishahh/indian-market-ml-platform/internal/s3_model"
	"github.com/adishahh/indian-market-ml-platform/pkg/logger"
	"github.com/adishahh/indian-market-ml-platform/pkg/metrics"
)

type fakePredictor struct {
	version  string
	err      error
	symbols  []string
	panicked bool
}

func (f *fakePredictor) Predict(_ context.Context, symbol string) (*contracts.Prediction, error) {
	if f.panicked {
		panic("boom")
	}
	f.symbols = append(f.symbols, symbol)
	if f.err != nil {
		return nil, f.err
	}
	return &contracts.Prediction{
		Symbol:       symbol,
		Date:         time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Label:        contracts.LabelBuy,
		Class:        1,
		Probability:  0.64,
		RSI:          58.2,
		Sentiment:    0.1,
		ModelVersion: f.version,
		Features:     map[string]float64{"rsi_14": 58.2},
	}, nil
}

func (f *fakePredictor) ModelVersion() (string, bool) { return f.version, f.version != "" }

func (f *fakePredictor) LoadModel(src inference.ModelSource) error {
	a, err := src.LoadActive()
	if err != nil {
		return err
	}
	f.version = a.Meta.Version
	return nil
}

type fakeLogs struct{}

func (fakeLogs) RecentPredictions(_ context.Context, symbol string, limit int) ([]contracts.PredictionLog, error) {
	return []contracts.PredictionLog{{ID: 1, Symbol: contracts.NormalizeSymbol(symbol), ModelVersion: "v"}}, nil
}

type fakeModels struct{ version string }

func (f fakeModels) LoadActive() (*s3_model.Artifact, error) {
	if f.version == "" {
		return nil, fmt.Errorf("no versions: %w", contracts.ErrModelUnavailable)
	}
	return &s3_model.Artifact{Meta: contracts.ArtifactMeta{Version: f.version}}, nil
}

func newTestRouter(p *fakePredictor, models inference.ModelSource) http.Handler {
	h := handlers.NewPredictionHandler(p, fakeLogs{}, models, logger.NewNop())
	return NewRouter(h, nil, metrics.New(prometheus.NewRegistry()), logger.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPredictEndpoint(t *testing.T) {
	p := &fakePredictor{version: "20240601_120000"}
	router := newTestRouter(p, nil)

	rec := do(t, router, http.MethodPost, "/predict", `{"symbol":"INFY.NS"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INFY.NS", resp.Symbol)
	assert.Equal(t, "2024-06-03", resp.Date)
	assert.Equal(t, "Buy", resp.Prediction)
	assert.Equal(t, 0.64, resp.Probability)
	assert.Equal(t, 58.2, resp.RSI)
	assert.Equal(t, "20240601_120000", resp.ModelVersion)
}

func TestPredictDefaultSymbol(t *testing.T) {
	p := &fakePredictor{version: "v1"}
	router := newTestRouter(p, nil)

	for _, body := range []string{"", "{}"} {
		rec := do(t, router, http.MethodPost, "/predict", body)
		require.Equal(t, http.StatusOK, rec.Code, "body %q", body)
	}
	assert.Equal(t, []string{"TCS.NS", "TCS.NS"}, p.symbols)
}

func TestPredictErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"model unavailable", fmt.Errorf("predict: %w", contracts.ErrModelUnavailable), http.StatusServiceUnavailable},
		{"no feature data", fmt.Errorf("TCS: %w", contracts.ErrNoFeatureData), http.StatusNotFound},
		{"unknown symbol", fmt.Errorf("XYZ: %w", contracts.ErrUnknownSymbol), http.StatusNotFound},
		{"database write", fmt.Errorf("log: %w", contracts.ErrDatabaseWrite), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakePredictor{err: tt.err}, nil)
			rec := do(t, router, http.MethodPost, "/predict", `{"symbol":"TCS"}`)
			assert.Equal(t, tt.status, rec.Code)

			var body handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPredictInvalidRequest(t *testing.T) {
	router := newTestRouter(&fakePredictor{version: "v1"}, nil)

	rec := do(t, router, http.MethodPost, "/predict", `{"symbol":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/predict", `{"symbol":"`+strings.Repeat("A", 40)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "symbol", body.Fields[0].Field)

	rec = do(t, router, http.MethodPost, "/predict", `{"symbol":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "symbol", body.Fields[0].Field)

	rec = do(t, router, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	rec := do(t, newTestRouter(&fakePredictor{}, nil), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["model_loaded"])

	rec = do(t, newTestRouter(&fakePredictor{version: "v2"}, nil), http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, "v2", body["model_version"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakePredictor{version: "v1"}, nil)
	do(t, router, http.MethodPost, "/predict", `{}`)

	rec := do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/predict"`)
}

func TestRecentPredictions(t *testing.T) {
	router := newTestRouter(&fakePredictor{}, nil)

	rec := do(t, router, http.MethodGet, "/predictions/tcs.ns?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"TCS"`)

	rec = do(t, router, http.MethodGet, "/predictions/TCS?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/predictions/TCS", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Limit)
}

func TestReloadModel(t *testing.T) {
	p := &fakePredictor{}

	rec := do(t, newTestRouter(p, nil), http.MethodPost, "/model/reload", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, newTestRouter(p, fakeModels{}), http.MethodPost, "/model/reload", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, newTestRouter(p, fakeModels{version: "20240701_000000"}), http.MethodPost, "/model/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20240701_000000", p.version)
}

func TestRecoveryMiddleware(t *testing.T) {
	rec := do(t, newTestRouter(&fakePredictor{panicked: true}, nil), http.MethodPost, "/predict", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNotFound(t *testing.T) {
	rec := do(t, newTestRouter(&fakePredictor{}, nil), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictionStreamThroughMiddleware(t *testing.T) {
	hub := realtime.NewHub(logger.NewNop())
	h := handlers.NewPredictionHandler(&fakePredictor{}, fakeLogs{}, nil, logger.NewNop())
	srv := httptest.NewServer(NewRouter(h, hub, metrics.New(prometheus.NewRegistry()), logger.NewNop()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/predictions?symbol=TCS"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Broadcast(contracts.PredictionLog{ID: 9, Symbol: "TCS", Probability: 0.61})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got contracts.PredictionLog
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, int64(9), got.ID)
}

func TestStreamRouteAbsentWithoutHub(t *testing.T) {
	rec := do(t, newTestRouter(&fakePredictor{}, nil), http.MethodGet, "/ws/predictions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
