package aggregator

import "wisefido-vital-monitor/internal/models"

// Trend 与上一次快照逐项比较；任一侧缺失即为 unchanged（精确比较，无容差）
func Trend(prev *models.MetricSnapshot, cur models.MetricSnapshot) models.MetricTrends {
	if prev == nil {
		prev = &models.MetricSnapshot{}
	}
	return models.MetricTrends{
		HeartRate:         direction(prev.HeartRate, cur.HeartRate),
		RespirationRate:   direction(prev.RespirationRate, cur.RespirationRate),
		DistanceMin:       direction(prev.DistanceMin, cur.DistanceMin),
		MovementAmplitude: direction(prev.MovementAmplitude, cur.MovementAmplitude),
	}
}

func direction(prev, cur *float64) models.TrendDirection {
	switch {
	case prev == nil || cur == nil:
		return models.TrendUnchanged
	case *cur > *prev:
		return models.TrendIncreased
	case *cur < *prev:
		return models.TrendDecreased
	default:
		return models.TrendUnchanged
	}
}
