package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"wisefido-vital-monitor/internal/config"
	"wisefido-vital-monitor/internal/drift"
	"wisefido-vital-monitor/internal/influx"
	"wisefido-vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type execFunc func(ctx context.Context, query string) ([]influx.Row, error)

func (f execFunc) Query(ctx context.Context, query string) ([]influx.Row, error) {
	return f(ctx, query)
}

type fakeDriftEvents struct {
	mu     sync.Mutex
	alerts []drift.Alert
}

func (f *fakeDriftEvents) PublishDriftAlert(ctx context.Context, alert drift.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Influx.URL = "http://influxdb:8086"
	cfg.Influx.Org = "ld6002h"
	cfg.Influx.Bucket = "vitals_data"
	cfg.Influx.Mode = config.InfluxModeDirect
	cfg.Monitor.DeviceSource = config.DeviceSourceEnv
	cfg.Monitor.Devices = devices[:2]
	cfg.Monitor.PollInterval = time.Hour
	cfg.Monitor.QueryTimeout = time.Second
	cfg.Monitor.Fields = models.DefaultMetricFields()
	cfg.Drift.Interval = time.Minute
	return cfg
}

func TestNewVitalMonitorService_EnvDevicesWithoutSideChannels(t *testing.T) {
	cfg := testConfig()
	cfg.Drift.Enabled = true

	svc, err := NewVitalMonitorService(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, devices[:2], svc.Poller().Devices())
	assert.NotNil(t, svc.Metrics())
	assert.NotNil(t, svc.judge)
	assert.Nil(t, svc.redisClient)
	assert.Nil(t, svc.mqttClient)
	assert.Nil(t, svc.poller.deps.Dashboards)
	assert.Nil(t, svc.poller.deps.Cache)
	assert.Nil(t, svc.poller.deps.Publisher)

	require.NoError(t, svc.Stop(context.Background()))
	assert.ErrorIs(t, svc.Poller().Refresh(context.Background()), ErrStopped)
}

func TestNewVitalMonitorService_ProxyModeAndGrafana(t *testing.T) {
	cfg := testConfig()
	cfg.Influx.Mode = config.InfluxModeProxy
	cfg.Influx.ProxyURL = "http://grafana:3000/api/influxdb/query"
	cfg.Grafana.URL = "http://grafana:3000"
	cfg.Grafana.Timeout = time.Second

	svc, err := NewVitalMonitorService(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	_, isProxy := svc.poller.deps.Executor.(*influx.ProxyClient)
	assert.True(t, isProxy)
	assert.NotNil(t, svc.poller.deps.Dashboards)
	assert.Nil(t, svc.judge)
}

func TestVitalMonitorService_RunDriftJudge(t *testing.T) {
	cfg := testConfig()
	cfg.Drift.Enabled = true

	// 基线 70，最近均值 100：每轮心率都异常
	exec := execFunc(func(ctx context.Context, query string) ([]influx.Row, error) {
		if !strings.Contains(query, `"heart_rate_bpm"`) {
			return nil, nil
		}
		if strings.Contains(query, "timedMovingAverage") {
			return []influx.Row{{"_value": "70"}}, nil
		}
		return []influx.Row{{"_value": "100"}}, nil
	})

	events := &fakeDriftEvents{}
	svc := &VitalMonitorService{
		config:      cfg,
		logger:      zap.NewNop(),
		poller:      newTestPoller(exec, PollerDeps{}),
		driftEvents: events,
		judge: drift.NewJudge(drift.Config{
			Bucket:      "vitals_data",
			Fields:      models.DefaultMetricFields(),
			HeartRate:   drift.Thresholds{Abs: 20, Rel: 0.30},
			Respiration: drift.Thresholds{Abs: 5, Rel: 0.35},
		}, exec, zap.NewNop()),
	}

	for i := 0; i < 3; i++ {
		svc.runDriftJudge(context.Background())
	}

	// 四个设备各自连续三次异常
	require.Len(t, events.alerts, 4)
	assert.Equal(t, "dev-1", events.alerts[0].DeviceID)
	assert.Equal(t, 3, events.alerts[0].HeartRateCount)
}
