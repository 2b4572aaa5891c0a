package aggregator

import (
	"sort"

	"wisefido-vital-monitor/internal/models"
)

// OrderByPriority 跌倒风险设备排在前面，同等风险保持原有相对顺序
// 返回新切片，不修改入参
func OrderByPriority(records []models.DeviceVitals) []models.DeviceVitals {
	out := make([]models.DeviceVitals, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FallRisk && !out[j].FallRisk
	})
	return out
}
