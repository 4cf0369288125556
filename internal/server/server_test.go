package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		DataDir: t.TempDir(),
		Analytics: config.AnalyticsConfig{
			RiskFreeRate:           0.045,
			BaseNAV:                100,
			WeightSumTolerance:     0.01,
			SectorOverlapThreshold: 0.30,
			PositionSizeThreshold:  0.20,
			HealthWeights:          [4]float64{0.25, 0.25, 0.25, 0.25},
			ScenarioEstimator:      "linear",
			AttributionWindow:      "90D",
			BatchWorkers:           2,
		},
	}

	container, jobs, err := di.Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	s := New(Config{
		Log:       zerolog.Nop(),
		Container: container,
		Jobs:      jobs,
		Port:      0,
		DevMode:   true,
	})
	s.systemHandlers.systemStats = func() (float64, float64) { return 12.5, 40 }
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "folio", body["service"])
}

func TestHealth_ClosedDatabase(t *testing.T) {
	s := newTestServer(t)
	s.container.HistoryDB.Close()

	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}

func TestSystemStatus(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 12.5, resp.CPUPercent)
	assert.Equal(t, 40.0, resp.MemoryPercent)
	require.Len(t, resp.Databases, 2)
	assert.Equal(t, "portfolio", resp.Databases[0].Name)
	assert.Equal(t, "ledger", resp.Databases[0].Profile)
	assert.Equal(t, "history", resp.Databases[1].Name)
	assert.Equal(t, []string{"analytics-sweep", "maintenance", "wal-checkpoint"}, resp.Jobs)
}

func TestTriggerJob(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/system/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/system/jobs/wal-checkpoint", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "wal_checkpoint triggered")
}

func TestPortfolioAndAnalyticsRoutes(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/portfolios", `{
		"name": "Core",
		"base_currency": "USD",
		"allocation_type": "weight",
		"effective_at": "2024-01-02",
		"positions": [{"symbol": "AAPL", "value": 0.6}, {"symbol": "MSFT", "value": 0.4}]
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)

	w = do(t, s, http.MethodGet, "/api/portfolios/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Data.ID)

	w = do(t, s, http.MethodGet, "/api/portfolios/missing/alerts", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/api/portfolios/"+created.Data.ID+"/metrics?window=2W", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPriceRoutes(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPut, "/api/securities/aapl", `{"name": "Apple", "sector": "Technology"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/prices/AAPL", `[
		{"date": "2024-01-02", "open": 1, "high": 1, "low": 1, "close": 100, "adjusted_close": 100, "volume": 10},
		{"date": "2024-01-03", "open": 1, "high": 1, "low": 1, "close": 101, "adjusted_close": 101, "volume": 10}
	]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"inserted":2`)

	sectors, err := s.container.PriceStore.GetSectors(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "Technology", sectors["AAPL"])
}

func TestAnalyticsBatchRoute(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/analytics/batch", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"succeeded":0`)
}
