package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveCycle("timer", ResultSuccess, 120*time.Millisecond, 8)
	m.ObserveCycle("manual", ResultFailure, time.Second, 0)
	m.SetDeviceState(3, 1, time.Unix(1714557600, 0))
	m.DriftAlert()
	m.SetDashboards(2)

	body := scrape(t, m)
	assert.Contains(t, body, `vital_monitor_poll_cycles_total{reason="timer",result="success"} 1`)
	assert.Contains(t, body, `vital_monitor_poll_cycles_total{reason="manual",result="failure"} 1`)
	assert.Contains(t, body, "vital_monitor_rows_total 8")
	assert.Contains(t, body, "vital_monitor_occupied_devices 3")
	assert.Contains(t, body, "vital_monitor_fall_risk_devices 1")
	assert.Contains(t, body, "vital_monitor_drift_alerts_total 1")
	assert.Contains(t, body, "vital_monitor_dashboards 2")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCycle("timer", ResultSuccess, time.Second, 1)
		m.SetDeviceState(1, 1, time.Now())
		m.DriftAlert()
		m.SetDashboards(1)
	})

	// 两个实例互不冲突
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}
