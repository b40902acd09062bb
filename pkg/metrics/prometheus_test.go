package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordIngest("prices", "success")
	r.RecordIngest("prices", "success")
	r.RecordIngest("prices", "failed")
	r.RecordRows("prices", 250)
	r.RecordRows("prices", 0)
	r.RecordPrediction("Buy")
	r.RecordInferenceError("no_feature_data")
	r.RecordPublish("prediction-logs", nil)
	r.RecordPublish("prediction-logs", errors.New("broker down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ingestTotal.WithLabelValues("prices", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ingestTotal.WithLabelValues("prices", "failed")))
	assert.Equal(t, 250.0, testutil.ToFloat64(r.rowsWritten.WithLabelValues("prices")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("Buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inferenceErrors.WithLabelValues("no_feature_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.publishTotal.WithLabelValues("prediction-logs", "error")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordIngest("news", "success")
		r.RecordRows("news", 3)
		r.ObserveStage("train", time.Second)
		r.ObserveHTTP("GET", "/health", "200", time.Millisecond)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New(prometheus.NewRegistry())
	r.ObserveStage("features", 2*time.Second)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "imlp_stage_duration_seconds")
}
