package aggregator

import (
	"strings"

	"wisefido-vital-monitor/internal/influx"
	"wisefido-vital-monitor/internal/models"

	"go.uber.org/zap"
)

// DefaultAmplitudeThreshold 体动幅度超过该值视为跌倒风险
const DefaultAmplitudeThreshold = 900.0

// 查询结果行中的列名
const (
	columnDeviceID = "device_id"
	columnField    = "_field"
)

// Extracted 单个设备的解析结果
type Extracted struct {
	Snapshot models.MetricSnapshot
	// Anomaly 本批次中是否出现过超阈值的体动幅度（出现即置位，后续行覆盖读数不会清除）
	Anomaly bool
}

// SnapshotExtractor 将查询结果行解析为每个设备的快照
type SnapshotExtractor struct {
	fields             models.MetricFields
	amplitudeThreshold float64
	logger             *zap.Logger
}

// NewSnapshotExtractor 创建解析器；threshold <= 0 时使用默认阈值
func NewSnapshotExtractor(fields models.MetricFields, threshold float64, logger *zap.Logger) *SnapshotExtractor {
	if threshold <= 0 {
		threshold = DefaultAmplitudeThreshold
	}
	return &SnapshotExtractor{
		fields:             fields,
		amplitudeThreshold: threshold,
		logger:             logger,
	}
}

// Extract 按设备分组解析
// 不合法的行（设备/字段为空、值缺失或无法解析）直接跳过，不影响同设备的其它行
func (e *SnapshotExtractor) Extract(rows []influx.Row) map[string]*Extracted {
	result := make(map[string]*Extracted)

	for i, row := range rows {
		deviceID := stringColumn(row, columnDeviceID)
		field := stringColumn(row, columnField)
		if deviceID == "" || field == "" {
			e.logger.Debug("Dropping row without device_id or _field", zap.Int("row", i))
			continue
		}

		value, ok := row.Value()
		if !ok {
			e.logger.Debug("Dropping row with unparseable _value",
				zap.Int("row", i),
				zap.String("device_id", deviceID),
				zap.String("field", field),
			)
			continue
		}

		entry, exists := result[deviceID]
		if !exists {
			entry = &Extracted{}
		}

		v := value
		switch field {
		case e.fields.HeartRate:
			entry.Snapshot.HeartRate = &v
		case e.fields.RespirationRate:
			entry.Snapshot.RespirationRate = &v
		case e.fields.DistanceMin:
			entry.Snapshot.DistanceMin = &v
		case e.fields.MovementAmplitude:
			entry.Snapshot.MovementAmplitude = &v
			if value > e.amplitudeThreshold {
				entry.Anomaly = true
			}
		default:
			e.logger.Debug("Ignoring unknown field",
				zap.String("device_id", deviceID),
				zap.String("field", field),
			)
			continue
		}

		result[deviceID] = entry
	}

	return result
}

func stringColumn(row influx.Row, column string) string {
	s, ok := row[column].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
