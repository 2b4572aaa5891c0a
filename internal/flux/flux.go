// Package flux 构建发往 InfluxDB 的 Flux 查询文本
//
// 本包只负责字符串构建，不执行查询；查询执行见 internal/influx。
package flux

import (
	"fmt"
	"strings"

	"wisefido-vital-monitor/internal/models"
)

// 设备标签列名（雷达写入时使用的 tag）
const deviceTag = "device_id"

// BuildVitalsQuery 构建体征轮询查询
//
// 只选取已配置设备、四个监控字段、最近 rangeStart 时间窗口内的数据。
// 设备列表为空时设备过滤条件恒为真（不过滤），而不是匹配不到任何设备。
func BuildVitalsQuery(bucket, rangeStart string, devices []models.DeviceConfig, fields []string) string {
	deviceIDs := make([]string, 0, len(devices))
	for _, d := range devices {
		deviceIDs = append(deviceIDs, d.DeviceID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", Quote(bucket))
	fmt.Fprintf(&b, "  |> range(start: %s)\n", rangeStart)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", orEquals(deviceTag, deviceIDs))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", orEquals("_field", fields))
	b.WriteString(`  |> keep(columns: ["_time", "_value", "_field", "device_id"])`)
	return b.String()
}

// BuildMovingAverageQuery 单设备单字段的长窗口滑动平均序列
// 过去 12 小时，剔除 0 值，5 分钟步长 10 分钟窗口
func BuildMovingAverageQuery(bucket, deviceID, field string) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: -12h)
  |> filter(fn: (r) => r[%s] == %s)
  |> filter(fn: (r) => r["_field"] == %s)
  |> filter(fn: (r) => r._value != 0)
  |> timedMovingAverage(every: 5m, period: 10m)
  |> filter(fn: (r) => r._value != 0)`,
		Quote(bucket), Quote(deviceTag), Quote(deviceID), Quote(field))
}

// BuildRecentMeanQuery 单设备单字段的短窗口均值（剔除 0 值）
func BuildRecentMeanQuery(bucket, deviceID, field, rangeStart string) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s)
  |> filter(fn: (r) => r[%s] == %s)
  |> filter(fn: (r) => r["_field"] == %s)
  |> filter(fn: (r) => r._value != 0)
  |> mean()`,
		Quote(bucket), rangeStart, Quote(deviceTag), Quote(deviceID), Quote(field))
}

// orEquals 生成 r[col] == v1 or r[col] == v2 ...；values 为空时返回 true
func orEquals(column string, values []string) string {
	if len(values) == 0 {
		return "true"
	}
	terms := make([]string, 0, len(values))
	for _, v := range values {
		terms = append(terms, fmt.Sprintf("r[%s] == %s", Quote(column), Quote(v)))
	}
	return strings.Join(terms, " or ")
}

// Quote 转义为 Flux 字符串字面量
// Flux 字符串中需要转义反斜杠、双引号以及插值起始符 ${
func Quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "${", `\${`)
	return `"` + s + `"`
}
