package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_GathersWithoutError(t *testing.T) {
	reg := NewRegistry()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families, "runtime collectors should be registered")
}

func TestRecordRequest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("GET", "/api/regime", 200, 0.05)
	reg.RecordRequest("GET", "/api/regime", 200, 0.07)
	reg.RecordRequest("POST", "/api/observations", 400, 0.01)

	count := testutil.CollectAndCount(reg.httpRequestsTotal)
	assert.Equal(t, 2, count, "one series per method/path/status combination")

	got := testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("GET", "/api/regime", "2xx"))
	assert.Equal(t, 2.0, got)
	got = testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("POST", "/api/observations", "4xx"))
	assert.Equal(t, 1.0, got)
}

func TestRecordBusinessMetrics(t *testing.T) {
	reg := NewRegistry()

	reg.RecordModelFit("ok", 0.2)
	reg.RecordForecast("ok", 1000)
	reg.RecordForecast("error", 0)
	reg.RecordBacktest("ok", 1.5)
	reg.RecordSignal("BUY")
	reg.RecordSignal("BUY")
	reg.RecordSignal("HOLD")
	reg.RecordObservationStored(41)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.modelFitsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(reg.simulationPaths))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.forecastsTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.signalsGenerated.WithLabelValues("BUY")))
	assert.Equal(t, 41.0, testutil.ToFloat64(reg.observationsTracked))
}

func TestObservationGaugeTracksLatest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordObservationStored(10)
	reg.RecordObservationStored(11)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.observationsStored))
	assert.Equal(t, 11.0, testutil.ToFloat64(reg.observationsTracked))
}

func TestStatusToString(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"}, {201, "2xx"}, {301, "3xx"}, {404, "4xx"}, {500, "5xx"}, {101, "1xx"},
	}
	for _, tt := range tests {
		if got := statusToString(tt.status); got != tt.want {
			t.Errorf("statusToString(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestMetricNamesPrefixed(t *testing.T) {
	reg := NewRegistry()
	reg.RecordSignal("SELL")

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "memcycle_") {
			found = true
			break
		}
	}
	assert.True(t, found, "business metrics must carry the memcycle_ prefix")
}
