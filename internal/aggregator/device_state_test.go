package aggregator

import (
	"testing"

	"wisefido-vital-monitor/internal/influx"
	"wisefido-vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDevices = []models.DeviceConfig{
	{Room: "101", DeviceID: "dev-1"},
	{Room: "102", DeviceID: "dev-2", Label: "Window"},
	{Room: "103", DeviceID: "dev-3"},
}

func TestAggregateDevices_ConfigOrderAndDefaults(t *testing.T) {
	extracted := newTestExtractor().Extract([]influx.Row{
		row("dev-3", "heart_rate_bpm", "65"),
		row("dev-1", "movement_amplitude", "1200"),
		row("dev-1", "movement_amplitude", "10"),
		row("dev-9", "heart_rate_bpm", "80"),
	})

	res := AggregateDevices(testDevices, extracted, NewSnapshotStore())
	require.Len(t, res.Records, 3)

	assert.Equal(t, "dev-1", res.Records[0].DeviceID)
	assert.True(t, res.Records[0].FallRisk)
	assert.False(t, res.Records[0].Occupied)

	// 响应中缺失的设备
	assert.Equal(t, "dev-2", res.Records[1].DeviceID)
	assert.Equal(t, "Window", res.Records[1].Label)
	assert.True(t, res.Records[1].IsEmpty())
	assert.False(t, res.Records[1].Occupied)
	assert.False(t, res.Records[1].FallRisk)

	assert.True(t, res.Records[2].Occupied)

	// 未配置的设备不进入结果
	assert.NotContains(t, res.Snapshots, "dev-9")
	assert.Len(t, res.Snapshots, 3)
}

func TestAggregateDevices_ZeroHeartRateIsOccupied(t *testing.T) {
	extracted := newTestExtractor().Extract([]influx.Row{row("dev-1", "heart_rate_bpm", "0")})
	res := AggregateDevices(testDevices[:1], extracted, nil)
	assert.True(t, res.Records[0].Occupied)
}

func TestAggregateDevices_TrendsAgainstStore(t *testing.T) {
	store := NewSnapshotStore()
	ex := newTestExtractor()

	first := AggregateDevices(testDevices[:1], ex.Extract([]influx.Row{
		row("dev-1", "heart_rate_bpm", "70"),
		row("dev-1", "distance_min", "50"),
		row("dev-1", "respiration_bpm", "16"),
	}), store)
	assert.Equal(t, models.TrendUnchanged, first.Records[0].Trends.HeartRate)
	store.Replace(first.Snapshots)

	second := AggregateDevices(testDevices[:1], ex.Extract([]influx.Row{
		row("dev-1", "heart_rate_bpm", "75"),
		row("dev-1", "distance_min", "50"),
	}), store)
	trends := second.Records[0].Trends
	assert.Equal(t, models.TrendIncreased, trends.HeartRate)
	assert.Equal(t, models.TrendUnchanged, trends.DistanceMin)
	assert.Equal(t, models.TrendUnchanged, trends.RespirationRate)
}

func TestSnapshotStore_ReplaceIsWhole(t *testing.T) {
	store := NewSnapshotStore()
	store.Replace(map[string]models.MetricSnapshot{
		"a": {HeartRate: ptr(1)},
		"b": {HeartRate: ptr(2)},
	})
	assert.Equal(t, 2, store.Len())

	store.Replace(map[string]models.MetricSnapshot{"b": {HeartRate: ptr(3)}})
	assert.Nil(t, store.Get("a"))
	assert.Equal(t, 3.0, *store.Get("b").HeartRate)

	// Get 返回副本
	got := store.Get("b")
	*got.HeartRate = 99
	assert.Equal(t, 3.0, *store.Get("b").HeartRate)
}

func TestOrderByPriority_Stable(t *testing.T) {
	in := []models.DeviceVitals{
		{DeviceID: "A"},
		{DeviceID: "B", FallRisk: true},
		{DeviceID: "C"},
		{DeviceID: "D", FallRisk: true},
	}
	out := OrderByPriority(in)

	ids := make([]string, 0, len(out))
	for _, r := range out {
		ids = append(ids, r.DeviceID)
	}
	assert.Equal(t, []string{"B", "D", "A", "C"}, ids)
	// 入参不变
	assert.Equal(t, "A", in[0].DeviceID)
}
