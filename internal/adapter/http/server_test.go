package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/JTDingwall/herringspawnprediction/internal/adapter/http"
	"github.com/JTDingwall/herringspawnprediction/internal/domain"
)

type mockProvider struct {
	err   error
	preds []domain.Prediction
}

func (m *mockProvider) CheckReadiness(_ context.Context) error { return m.err }
func (m *mockProvider) Latest() []domain.Prediction            { return m.preds }

func newTestServer(readyErr error, preds ...domain.Prediction) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockProvider{err: readyErr, preds: preds}, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("no forecast run has completed yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no forecast run has completed yet", body["error"])
}

func TestPredictionsReturnsLatestSet(t *testing.T) {
	srv := newTestServer(nil,
		domain.Prediction{LocationCode: "A", TargetYear: 2025, SpawnProbability: 0.7},
		domain.Prediction{LocationCode: "B", TargetYear: 2025, SpawnProbability: 0.3},
	)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/predictions", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count       int                 `json:"count"`
		Predictions []domain.Prediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Predictions, 2)
	assert.Equal(t, "A", body.Predictions[0].LocationCode)
	assert.InDelta(t, 0.7, body.Predictions[0].SpawnProbability, 1e-9)
}

func TestPredictionsReturns503BeforeFirstRun(t *testing.T) {
	srv := newTestServer(fmt.Errorf("no forecast run has completed yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/predictions", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
