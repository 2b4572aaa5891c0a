// Package dashboard 设备详情链接
//
// 设备与仪表盘按列表位置一一对应（第 i 个设备对应第 i 个仪表盘）。
// 已知限制：增删一个仪表盘会让其后所有设备的链接整体错位，两份列表之间没有共同标识。
package dashboard

import "wisefido-vital-monitor/internal/models"

// ResolveLinks 按位置生成 deviceID -> url；仪表盘不足时尾部设备没有链接
func ResolveLinks(devices []models.DeviceConfig, dashboards []models.DashboardSummary) map[string]string {
	links := make(map[string]string, len(devices))
	for i, d := range devices {
		if i >= len(dashboards) {
			break
		}
		if dashboards[i].URL == "" {
			continue
		}
		links[d.DeviceID] = dashboards[i].URL
	}
	return links
}
