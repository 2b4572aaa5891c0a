package aggregator

import (
	"testing"

	"wisefido-vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestTrend(t *testing.T) {
	prev := &models.MetricSnapshot{HeartRate: ptr(70), RespirationRate: ptr(16), DistanceMin: ptr(50)}
	cur := models.MetricSnapshot{HeartRate: ptr(75), DistanceMin: ptr(50), MovementAmplitude: ptr(10)}

	trends := Trend(prev, cur)
	assert.Equal(t, models.TrendIncreased, trends.HeartRate)
	assert.Equal(t, models.TrendUnchanged, trends.RespirationRate)
	assert.Equal(t, models.TrendUnchanged, trends.DistanceMin)
	assert.Equal(t, models.TrendUnchanged, trends.MovementAmplitude)

	trends = Trend(&models.MetricSnapshot{HeartRate: ptr(80)}, models.MetricSnapshot{HeartRate: ptr(79.5)})
	assert.Equal(t, models.TrendDecreased, trends.HeartRate)
}

func TestTrend_SameValueAndAbsent(t *testing.T) {
	for _, x := range []float64{0, -1, 72, 1e9} {
		s := models.MetricSnapshot{HeartRate: ptr(x)}
		assert.Equal(t, models.TrendUnchanged, Trend(&s, s).HeartRate)
	}

	assert.Equal(t, models.TrendUnchanged, Trend(nil, models.MetricSnapshot{HeartRate: ptr(70)}).HeartRate)
	assert.Equal(t, models.TrendUnchanged, Trend(&models.MetricSnapshot{HeartRate: ptr(70)}, models.MetricSnapshot{}).HeartRate)
}
