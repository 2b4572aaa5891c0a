package aggregator

import "wisefido-vital-monitor/internal/models"

// PreviousSnapshots 上一次快照的只读视图
type PreviousSnapshots interface {
	Get(deviceID string) *models.MetricSnapshot
}

// AggregateResult 一轮聚合结果
type AggregateResult struct {
	// Records 按配置顺序排列
	Records []models.DeviceVitals
	// Snapshots 本轮快照，提交时整体写入 SnapshotStore
	Snapshots map[string]models.MetricSnapshot
}

// AggregateDevices 为每个配置设备生成体征记录（按配置顺序）
//
// 响应中缺失的设备得到全空快照、occupied=false、fallRisk=false。
// occupied 只看心率是否有读数（0 也算有读数）。
// fallRisk 直接取解析阶段的异常标记，不从最终读数重新推导。
func AggregateDevices(devices []models.DeviceConfig, extracted map[string]*Extracted, prev PreviousSnapshots) AggregateResult {
	res := AggregateResult{
		Records:   make([]models.DeviceVitals, 0, len(devices)),
		Snapshots: make(map[string]models.MetricSnapshot, len(devices)),
	}

	for _, d := range devices {
		var (
			snap    models.MetricSnapshot
			anomaly bool
		)
		if e, ok := extracted[d.DeviceID]; ok && e != nil {
			snap = e.Snapshot.Clone()
			anomaly = e.Anomaly
		}

		var prevSnap *models.MetricSnapshot
		if prev != nil {
			prevSnap = prev.Get(d.DeviceID)
		}

		res.Records = append(res.Records, models.DeviceVitals{
			DeviceID:       d.DeviceID,
			Room:           d.Room,
			Label:          d.Label,
			MetricSnapshot: snap,
			Occupied:       snap.HeartRate != nil,
			FallRisk:       anomaly,
			Trends:         Trend(prevSnap, snap),
		})
		res.Snapshots[d.DeviceID] = snap
	}

	return res
}
