package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-vital-monitor/internal/drift"
	"wisefido-vital-monitor/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	mu       sync.Mutex
	messages []published
	failOn   string
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failOn {
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, published{topic, qos, retained, payload})
	return nil
}

func hr(v float64) *float64 { return &v }

func TestMQTTPublisher_PublishRecords(t *testing.T) {
	client := &fakeMQTT{}
	pub := NewMQTTPublisher(client, "vital-monitor/", 1, zap.NewNop())

	at := time.Unix(1714557600, 0)
	records := []models.DeviceVitals{
		{DeviceID: "dev-1", Room: "101", MetricSnapshot: models.MetricSnapshot{HeartRate: hr(72)}, Occupied: true},
		{DeviceID: "dev+2", Room: "A/B"},
	}
	require.NoError(t, pub.PublishRecords("cycle-1", records, at))
	require.Len(t, client.messages, 2)

	assert.Equal(t, "vital-monitor/101/dev-1", client.messages[0].topic)
	assert.Equal(t, byte(1), client.messages[0].qos)
	assert.True(t, client.messages[0].retained)
	assert.Equal(t, "vital-monitor/A_B/dev_2", client.messages[1].topic)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(client.messages[0].payload, &decoded))
	assert.Equal(t, "dev-1", decoded["device_id"])
	assert.Equal(t, 72.0, decoded["heart_rate"])
	assert.Equal(t, "cycle-1", decoded["cycle_id"])
	assert.Equal(t, float64(at.Unix()), decoded["timestamp"])
}

func TestMQTTPublisher_ContinuesAfterFailure(t *testing.T) {
	client := &fakeMQTT{failOn: "vm/101/dev-1"}
	pub := NewMQTTPublisher(client, "vm", 0, zap.NewNop())

	err := pub.PublishRecords("c", []models.DeviceVitals{
		{DeviceID: "dev-1", Room: "101"},
		{DeviceID: "dev-2", Room: "102"},
	}, time.Now())
	assert.Error(t, err)
	require.Len(t, client.messages, 1)
	assert.Equal(t, "vm/102/dev-2", client.messages[0].topic)
}

func TestStreamPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewStreamPublisher(client, "vital-monitor:events", 1000, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, pub.PublishFallRisk(ctx, "cycle-1", models.DeviceVitals{
		DeviceID:       "dev-1",
		Room:           "101",
		MetricSnapshot: models.MetricSnapshot{MovementAmplitude: hr(1200)},
		FallRisk:       true,
	}))
	require.NoError(t, pub.PublishDriftAlert(ctx, drift.Alert{DeviceID: "dev-2", HeartRateCount: 3}))

	msgs, err := client.XRange(ctx, "vital-monitor:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, EventFallRisk, msgs[0].Values["type"])
	var fall FallRiskEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &fall))
	assert.Equal(t, "dev-1", fall.DeviceID)
	assert.Equal(t, "cycle-1", fall.CycleID)
	assert.Equal(t, 1200.0, *fall.MovementAmplitude)

	assert.Equal(t, EventDriftAlert, msgs[1].Values["type"])
	var alert drift.Alert
	require.NoError(t, json.Unmarshal([]byte(msgs[1].Values["data"].(string)), &alert))
	assert.Equal(t, 3, alert.HeartRateCount)
}
