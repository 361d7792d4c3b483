package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/memcycle/internal/config"
	"github.com/newthinker/memcycle/internal/core"
	"github.com/newthinker/memcycle/internal/metrics"
	"github.com/newthinker/memcycle/internal/storage/table"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.DataDir = t.TempDir()
	store, err := table.NewStore(cfg.Storage.DataDir)
	require.NoError(t, err)
	return NewServer(cfg, store, metrics.NewRegistry(), zap.NewNop())
}

// seedCycle writes n alternating tight/glut quarters into the store.
func seedCycle(t *testing.T, s *Server, n int) {
	t.Helper()
	date := time.Date(2015, 3, 31, 0, 0, 0, 0, time.UTC)
	price := 100.0
	obs := make([]core.Observation, n)
	for i := range obs {
		wiggle := 0.01 * float64(i%3)
		if i%2 == 0 {
			price *= 1.05 + wiggle
			obs[i] = core.Observation{Date: date, Utilization: 0.90, InventoryWeeks: 8, ContractPriceIndex: price}
		} else {
			price *= 0.93 - wiggle
			obs[i] = core.Observation{Date: date, Utilization: 0.75, InventoryWeeks: 18, ContractPriceIndex: price}
		}
		date = date.AddDate(0, 3, 0)
	}
	require.NoError(t, s.store.SaveObservations(obs))
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func dataField(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, "GET", "/api/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", dataField(t, rec)["status"])
}

func TestRegime_EmptyTable(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, "GET", "/api/regime", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NO_DATA", resp.Error.Code)
}

func TestRegime_WithData(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 24)

	rec := doJSON(t, s, "GET", "/api/regime", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := dataField(t, rec)
	// Last seeded quarter is an odd index: glut state.
	assert.Equal(t, "glut", data["regime"])

	probs := data["probabilities"].(map[string]any)
	sum := probs["glut"].(float64) + probs["balanced"].(float64) + probs["tight"].(float64)
	assert.InDelta(t, 1.0, sum, 1e-9)

	// No capex data in the seeded table, so no intensity in the payload.
	assert.Contains(t, data, "regime_score")
	assert.NotContains(t, data, "capex_intensity")
}

func TestRegime_ScoreAndCapexIntensity(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 24)

	rec := doJSON(t, s, "POST", "/api/observations", map[string]any{
		"date":                      "2021-06-30",
		"utilization_rate":          0.90,
		"inventory_weeks_supplier":  8.0,
		"dram_contract_price_index": 100.0,
		"capex_quarterly_bn_usd":    12.5,
		"dram_revenue_bn_usd":       50.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := dataField(t, doJSON(t, s, "GET", "/api/regime", nil))

	// util 0.90 vs target 0.85 scaled by 0.15 gives 1/3; inventory 8 vs
	// target 12 scaled by 8 gives 1/2; averaged: 5/12.
	assert.InDelta(t, 5.0/12.0, data["regime_score"].(float64), 1e-9)
	assert.InDelta(t, 0.25, data["capex_intensity"].(float64), 1e-9)
}

func TestRegimeHistory(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 8)

	rec := doJSON(t, s, "GET", "/api/regime/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Date   string `json:"date"`
			Regime string `json:"regime"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 8)
	assert.Equal(t, "tight", resp.Data[0].Regime)
	assert.Equal(t, "glut", resp.Data[1].Regime)
}

func TestPredictions(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 24)

	rec := doJSON(t, s, "GET", "/api/predictions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data []struct {
			Date          string   `json:"date"`
			Predicted     string   `json:"predicted"`
			Probabilities probsDTO `json:"probabilities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 24, "one prediction per stored quarter")
	for _, p := range resp.Data {
		sum := p.Probabilities.Glut + p.Probabilities.Balanced + p.Probabilities.Tight
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestTransitions(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 24)

	rec := doJSON(t, s, "GET", "/api/transitions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := dataField(t, rec)
	for _, from := range []string{"glut", "balanced", "tight"} {
		row := data[from].(map[string]any)
		sum := row["glut"].(float64) + row["balanced"].(float64) + row["tight"].(float64)
		assert.InDelta(t, 1.0, sum, 1e-9, "row %s must sum to 1", from)
	}
}

func TestSignal(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 24)

	rec := doJSON(t, s, "GET", "/api/signal", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := dataField(t, rec)
	action := data["action"].(string)
	assert.Contains(t, []string{"BUY", "SELL", "HOLD"}, action)
	assert.NotEmpty(t, data["reason"])
}

func TestForecast(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 24)

	rec := doJSON(t, s, "POST", "/api/forecast", map[string]any{
		"horizon_quarters": 2,
		"simulations":      50,
		"seed":             7,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := dataField(t, rec)
	assert.Equal(t, float64(2), data["horizon_quarters"])
	points := data["points"].([]any)
	require.Len(t, points, 3, "horizon 2 yields steps 0..2")

	first := points[0].(map[string]any)
	assert.Equal(t, data["initial_price"], first["mean"])
}

func TestForecast_Deterministic(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 24)

	body := map[string]any{"horizon_quarters": 3, "simulations": 40, "seed": 11}
	a := dataField(t, doJSON(t, s, "POST", "/api/forecast", body))
	b := dataField(t, doJSON(t, s, "POST", "/api/forecast", body))
	assert.Equal(t, a["points"], b["points"], "same seed must reproduce the run")
}

func TestBacktest(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 32)

	rec := doJSON(t, s, "POST", "/api/backtest", map[string]any{
		"train_start":     "2015-01-01",
		"test_start":      "2021-01-01",
		"include_signals": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := dataField(t, rec)
	train := data["train_periods"].(float64)
	test := data["test_periods"].(float64)
	assert.Equal(t, float64(32), train+test)
	assert.Contains(t, data, "signals")
}

func TestBacktest_InsufficientData(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 10)

	rec := doJSON(t, s, "POST", "/api/backtest", map[string]any{
		"train_start": "2015-01-01",
		"test_start":  "2017-01-01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpsertObservation(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, "POST", "/api/observations", map[string]any{
		"date":                      "2023-03-31",
		"utilization_rate":          0.91,
		"inventory_weeks_supplier":  9.5,
		"dram_contract_price_index": 112.3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), dataField(t, rec)["table_size"])

	list := doJSON(t, s, "GET", "/api/observations", nil)
	var resp struct {
		Data []observationDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 0.91, resp.Data[0].Utilization)
}

func TestUpsertObservation_Invalid(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, "POST", "/api/observations", map[string]any{
		"date":                      "2023-03-31",
		"utilization_rate":          1.4,
		"inventory_weeks_supplier":  9.5,
		"dram_contract_price_index": 112.3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)

	// Generate some traffic first so the middleware has recorded requests.
	doJSON(t, s, "GET", "/api/health", nil)

	rec := doJSON(t, s, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestMethodRouting(t *testing.T) {
	s := testServer(t)
	seedCycle(t, s, 24)

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/regime"},
		{"GET", "/api/forecast"},
		{"DELETE", "/api/observations"},
	} {
		rec := doJSON(t, s, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code,
			fmt.Sprintf("%s %s", tc.method, tc.path))
	}
}
