package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	for _, key := range []string{
		"INFLUXDB_URL", "INFLUXDB_BUCKET", "INFLUX_MODE", "VITALS_POLL_INTERVAL", "VITALS_QUERY_TIMEOUT",
		"VITALS_DEVICE_SOURCE", "VITALS_DEVICES", "VITALS_AMPLITUDE_THRESHOLD", "DRIFT_ENABLED", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://influxdb:8086", cfg.Influx.URL)
	assert.Equal(t, "vitals_data", cfg.Influx.Bucket)
	assert.Equal(t, InfluxModeDirect, cfg.Influx.Mode)
	assert.Equal(t, 10*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.Monitor.QueryTimeout)
	assert.Equal(t, 900.0, cfg.Monitor.AmplitudeThreshold)
	assert.Equal(t, DeviceSourceEnv, cfg.Monitor.DeviceSource)
	assert.Empty(t, cfg.Monitor.Devices)
	assert.Equal(t, "heart_rate_bpm", cfg.Monitor.Fields.HeartRate)
	assert.Equal(t, "movement_amplitude", cfg.Monitor.Fields.MovementAmplitude)
	assert.False(t, cfg.Drift.Enabled)
	assert.Equal(t, 3, cfg.Drift.AlertThreshold)
	assert.Equal(t, 10, cfg.Drift.MiddleN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("INFLUXDB_BUCKET", "radar")
	t.Setenv("VITALS_POLL_INTERVAL", "5")
	t.Setenv("VITALS_QUERY_TIMEOUT", "2500ms")
	t.Setenv("VITALS_DEVICES", "101:84F7035346E0:Bed A, 102:84F70353AAAA")
	t.Setenv("VITALS_FIELD_DISTANCE", "dist_min_cm")
	t.Setenv("DRIFT_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "radar", cfg.Influx.Bucket)
	assert.Equal(t, 5*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 2500*time.Millisecond, cfg.Monitor.QueryTimeout)
	require.Len(t, cfg.Monitor.Devices, 2)
	assert.Equal(t, "84F7035346E0", cfg.Monitor.Devices[0].DeviceID)
	assert.Equal(t, "Bed A", cfg.Monitor.Devices[0].Label)
	assert.Equal(t, "102", cfg.Monitor.Devices[1].Room)
	assert.Equal(t, "dist_min_cm", cfg.Monitor.Fields.DistanceMin)
	assert.True(t, cfg.Drift.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidModes(t *testing.T) {
	t.Setenv("INFLUX_MODE", "grpc")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("INFLUX_MODE", "proxy")
	t.Setenv("INFLUX_PROXY_URL", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("INFLUX_MODE", "")
	t.Setenv("VITALS_DEVICE_SOURCE", "postgres")
	t.Setenv("TENANT_ID", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseDeviceList(t *testing.T) {
	devices, err := ParseDeviceList("")
	require.NoError(t, err)
	assert.Nil(t, devices)

	devices, err = ParseDeviceList("A:dev-1,,B:dev-2:Window")
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "A", devices[0].Room)
	assert.Equal(t, "Window", devices[1].Label)

	_, err = ParseDeviceList("dev-only")
	assert.Error(t, err)

	_, err = ParseDeviceList("A:dev-1,B:dev-1")
	assert.Error(t, err)

	_, err = ParseDeviceList(":dev-1")
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")
	assert.Equal(t, "test-value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default-value", getEnv("NON_EXISTENT_VAR_FOR_TEST", "default-value"))
}
