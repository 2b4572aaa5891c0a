package models

import "time"

// DeviceConfig 被监控设备（启动时加载，进程生命周期内不可变）
// 列表顺序有语义：用于与仪表盘列表按位置对应，以及优先级排序前的默认展示顺序
type DeviceConfig struct {
	Room     string `json:"room"`
	DeviceID string `json:"device_id"`
	Label    string `json:"label,omitempty"`
}

// MetricSnapshot 单个设备一次轮询的四项读数
// nil 表示本次轮询无读数（区别于读数为 0）
type MetricSnapshot struct {
	HeartRate         *float64 `json:"heart_rate,omitempty"`         // 心率 (bpm)
	RespirationRate   *float64 `json:"respiration_rate,omitempty"`   // 呼吸频率 (次/分钟)
	DistanceMin       *float64 `json:"distance_min,omitempty"`       // 最小距离
	MovementAmplitude *float64 `json:"movement_amplitude,omitempty"` // 体动幅度
}

// IsEmpty 四项读数是否全部缺失
func (s MetricSnapshot) IsEmpty() bool {
	return s.HeartRate == nil && s.RespirationRate == nil && s.DistanceMin == nil && s.MovementAmplitude == nil
}

// Clone 深拷贝（指针字段各自独立）
func (s MetricSnapshot) Clone() MetricSnapshot {
	return MetricSnapshot{
		HeartRate:         cloneFloat(s.HeartRate),
		RespirationRate:   cloneFloat(s.RespirationRate),
		DistanceMin:       cloneFloat(s.DistanceMin),
		MovementAmplitude: cloneFloat(s.MovementAmplitude),
	}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// TrendDirection 指标变化方向
type TrendDirection string

const (
	TrendIncreased TrendDirection = "increased"
	TrendDecreased TrendDirection = "decreased"
	TrendUnchanged TrendDirection = "unchanged"
)

// MetricTrends 每项指标的变化方向
type MetricTrends struct {
	HeartRate         TrendDirection `json:"heart_rate"`
	RespirationRate   TrendDirection `json:"respiration_rate"`
	DistanceMin       TrendDirection `json:"distance_min"`
	MovementAmplitude TrendDirection `json:"movement_amplitude"`
}

// DeviceVitals 设备体征记录（每个轮询周期完整重算）
type DeviceVitals struct {
	DeviceID string `json:"device_id"`
	Room     string `json:"room"`
	Label    string `json:"label,omitempty"`
	MetricSnapshot
	Occupied bool         `json:"occupied"`
	FallRisk bool         `json:"fall_risk"`
	Trends   MetricTrends `json:"trends"`
	Link     string       `json:"link,omitempty"`
}

// DashboardSummary 仪表盘摘要（来自外部目录列表）
type DashboardSummary struct {
	UID   string `json:"uid"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PollPhase 轮询状态机阶段
type PollPhase string

const (
	PhaseIdle    PollPhase = "idle"
	PhasePolling PollPhase = "polling"
	PhaseSettled PollPhase = "settled"
)

// VitalsView 交给展示层的完整输出
type VitalsView struct {
	Records       []DeviceVitals    `json:"records"`
	Links         map[string]string `json:"links"`
	LastUpdated   *time.Time        `json:"last_updated,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	HasLoadedOnce bool              `json:"has_loaded_once"`
	Loading       bool              `json:"loading"`
	Phase         PollPhase         `json:"phase"`
}

// MetricFields 时序库中四项指标对应的 _field 名称
type MetricFields struct {
	HeartRate         string `json:"heart_rate"`
	RespirationRate   string `json:"respiration_rate"`
	DistanceMin       string `json:"distance_min"`
	MovementAmplitude string `json:"movement_amplitude"`
}

// DefaultMetricFields 雷达上报的默认字段名
func DefaultMetricFields() MetricFields {
	return MetricFields{
		HeartRate:         "heart_rate_bpm",
		RespirationRate:   "respiration_bpm",
		DistanceMin:       "distance_min",
		MovementAmplitude: "movement_amplitude",
	}
}

// All 按固定顺序返回全部字段名
func (f MetricFields) All() []string {
	return []string{f.HeartRate, f.RespirationRate, f.DistanceMin, f.MovementAmplitude}
}
