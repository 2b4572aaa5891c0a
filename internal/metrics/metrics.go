// Package metrics Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 轮询结果标签
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultDiscarded = "discarded"
)

type Metrics struct {
	registry      *prometheus.Registry
	cyclesTotal   *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	rowsTotal     prometheus.Counter
	occupied      prometheus.Gauge
	fallRisk      prometheus.Gauge
	lastSuccess   prometheus.Gauge
	driftAlerts   prometheus.Counter
	dashboards    prometheus.Gauge
}

// NewMetrics 创建指标（独立 registry，便于测试中重复创建）
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vital_monitor_poll_cycles_total",
			Help: "Total poll cycles by trigger reason and result.",
		}, []string{"reason", "result"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vital_monitor_poll_cycle_duration_seconds",
			Help:    "Histogram of poll cycle durations by result.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		rowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vital_monitor_rows_total",
			Help: "Total telemetry rows received from the query endpoint.",
		}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vital_monitor_occupied_devices",
			Help: "Devices with a heart rate reading in the last committed cycle.",
		}),
		fallRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vital_monitor_fall_risk_devices",
			Help: "Devices flagged with fall risk in the last committed cycle.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vital_monitor_last_success_timestamp_seconds",
			Help: "Unix time of the last committed poll cycle.",
		}),
		driftAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vital_monitor_drift_alerts_total",
			Help: "Total vital drift alerts raised.",
		}),
		dashboards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vital_monitor_dashboards",
			Help: "Dashboards available for link resolution.",
		}),
	}

	m.registry.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.rowsTotal,
		m.occupied,
		m.fallRisk,
		m.lastSuccess,
		m.driftAlerts,
		m.dashboards,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle 记录一次轮询
func (m *Metrics) ObserveCycle(reason, result string, duration time.Duration, rows int) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(reason, result).Inc()
	m.cycleDuration.WithLabelValues(result).Observe(duration.Seconds())
	if rows > 0 {
		m.rowsTotal.Add(float64(rows))
	}
}

// SetDeviceState 已提交结果中的在床/跌倒风险设备数
func (m *Metrics) SetDeviceState(occupied, fallRisk int, at time.Time) {
	if m == nil {
		return
	}
	m.occupied.Set(float64(occupied))
	m.fallRisk.Set(float64(fallRisk))
	m.lastSuccess.Set(float64(at.Unix()))
}

func (m *Metrics) DriftAlert() {
	if m == nil {
		return
	}
	m.driftAlerts.Inc()
}

func (m *Metrics) SetDashboards(n int) {
	if m == nil {
		return
	}
	m.dashboards.Set(float64(n))
}
