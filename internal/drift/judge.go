// Package drift 体征漂移判断
//
// 对每个设备分别比较心率、呼吸的长窗口基线（12 小时滑动平均序列取中间 N 个值的均值）
// 与最近 2 分钟均值。偏差超过绝对或相对阈值记一次异常，任一指标连续异常达到阈值次数时告警，
// 告警后两个计数器同时清零。
package drift

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"wisefido-vital-monitor/internal/flux"
	"wisefido-vital-monitor/internal/influx"
	"wisefido-vital-monitor/internal/models"

	"go.uber.org/zap"
)

const (
	MetricHeartRate   = "heart_rate"
	MetricRespiration = "respiration"
)

// QueryExecutor 执行 Flux 查询
type QueryExecutor interface {
	Query(ctx context.Context, query string) ([]influx.Row, error)
}

// Thresholds 单项指标的偏差阈值
type Thresholds struct {
	Abs float64
	Rel float64
}

// Config 判断参数
type Config struct {
	Bucket         string
	RecentRange    string // 短窗口，默认 -2m
	Fields         models.MetricFields
	HeartRate      Thresholds
	Respiration    Thresholds
	AlertThreshold int
	MiddleN        int
}

// MetricResult 单项指标的一次判断
type MetricResult struct {
	Metric       string   `json:"metric"`
	Baseline     *float64 `json:"baseline,omitempty"`
	Recent       *float64 `json:"recent,omitempty"`
	SeriesLen    int      `json:"series_len"`
	AbsDiff      float64  `json:"abs_diff"`
	RelDiff      float64  `json:"rel_diff"`
	Abnormal     bool     `json:"abnormal"`
	NoRecent     bool     `json:"no_recent"`
	Insufficient bool     `json:"insufficient"`
}

// Evaluation 单个设备的一次判断
type Evaluation struct {
	DeviceID    string       `json:"device_id"`
	Room        string       `json:"room"`
	HeartRate   MetricResult `json:"heart_rate"`
	Respiration MetricResult `json:"respiration"`
	// Skipped 两项指标最近都无数据（设备可能离线），不计数
	Skipped bool `json:"skipped"`
}

// Alert 连续异常告警
type Alert struct {
	DeviceID         string       `json:"device_id"`
	Room             string       `json:"room"`
	HeartRateCount   int          `json:"heart_rate_count"`
	RespirationCount int          `json:"respiration_count"`
	HeartRate        MetricResult `json:"heart_rate"`
	Respiration      MetricResult `json:"respiration"`
	Timestamp        time.Time    `json:"timestamp"`
}

type counters struct {
	heartRate   int
	respiration int
}

// Judge 漂移判断器；计数器按设备保存在进程内
type Judge struct {
	cfg    Config
	exec   QueryExecutor
	logger *zap.Logger

	mu       sync.Mutex
	counters map[string]*counters
}

// NewJudge 创建判断器
func NewJudge(cfg Config, exec QueryExecutor, logger *zap.Logger) *Judge {
	if cfg.RecentRange == "" {
		cfg.RecentRange = "-2m"
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 3
	}
	if cfg.MiddleN <= 0 {
		cfg.MiddleN = 10
	}
	return &Judge{
		cfg:      cfg,
		exec:     exec,
		logger:   logger,
		counters: make(map[string]*counters),
	}
}

// Run 对所有设备执行一次判断，返回本轮触发的告警
// 单个设备查询失败只记录日志，不影响其它设备
func (j *Judge) Run(ctx context.Context, devices []models.DeviceConfig) []Alert {
	var alerts []Alert
	for _, d := range devices {
		if ctx.Err() != nil {
			break
		}
		eval, err := j.Evaluate(ctx, d)
		if err != nil {
			j.logger.Error("Drift evaluation failed",
				zap.String("device_id", d.DeviceID),
				zap.Error(err),
			)
			continue
		}
		if alert := j.Record(eval); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

// Evaluate 查询并判断单个设备（不更新计数器）
func (j *Judge) Evaluate(ctx context.Context, device models.DeviceConfig) (*Evaluation, error) {
	hr, err := j.evaluateMetric(ctx, device.DeviceID, MetricHeartRate, j.cfg.Fields.HeartRate, j.cfg.HeartRate)
	if err != nil {
		return nil, err
	}
	rr, err := j.evaluateMetric(ctx, device.DeviceID, MetricRespiration, j.cfg.Fields.RespirationRate, j.cfg.Respiration)
	if err != nil {
		return nil, err
	}

	return &Evaluation{
		DeviceID:    device.DeviceID,
		Room:        device.Room,
		HeartRate:   hr,
		Respiration: rr,
		Skipped:     hr.NoRecent && rr.NoRecent,
	}, nil
}

// Record 根据判断结果更新计数器，达到阈值时返回告警并清零
func (j *Judge) Record(eval *Evaluation) *Alert {
	if eval.Skipped {
		j.logger.Warn("No recent heart rate or respiration data, skipping drift check",
			zap.String("device_id", eval.DeviceID),
		)
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	c, ok := j.counters[eval.DeviceID]
	if !ok {
		c = &counters{}
		j.counters[eval.DeviceID] = c
	}

	if eval.HeartRate.Abnormal {
		c.heartRate++
	} else {
		c.heartRate = 0
	}
	if eval.Respiration.Abnormal {
		c.respiration++
	} else {
		c.respiration = 0
	}

	if c.heartRate < j.cfg.AlertThreshold && c.respiration < j.cfg.AlertThreshold {
		return nil
	}

	alert := &Alert{
		DeviceID:         eval.DeviceID,
		Room:             eval.Room,
		HeartRateCount:   c.heartRate,
		RespirationCount: c.respiration,
		HeartRate:        eval.HeartRate,
		Respiration:      eval.Respiration,
		Timestamp:        time.Now(),
	}
	c.heartRate = 0
	c.respiration = 0

	j.logger.Warn("Vital drift alert",
		zap.String("device_id", alert.DeviceID),
		zap.String("room", alert.Room),
		zap.Int("heart_rate_count", alert.HeartRateCount),
		zap.Int("respiration_count", alert.RespirationCount),
	)
	return alert
}

func (j *Judge) evaluateMetric(ctx context.Context, deviceID, metric, field string, th Thresholds) (MetricResult, error) {
	res := MetricResult{Metric: metric}

	seriesRows, err := j.exec.Query(ctx, flux.BuildMovingAverageQuery(j.cfg.Bucket, deviceID, field))
	if err != nil {
		return res, fmt.Errorf("query %s series: %w", metric, err)
	}
	series := values(seriesRows)
	res.SeriesLen = len(series)
	res.Baseline = MiddleNMean(series, j.cfg.MiddleN)

	recentRows, err := j.exec.Query(ctx, flux.BuildRecentMeanQuery(j.cfg.Bucket, deviceID, field, j.cfg.RecentRange))
	if err != nil {
		return res, fmt.Errorf("query %s recent mean: %w", metric, err)
	}
	if recent := values(recentRows); len(recent) > 0 {
		v := recent[0]
		res.Recent = &v
	}

	res.NoRecent = res.Recent == nil && len(series) == 0
	if res.NoRecent {
		return res, nil
	}
	if res.Baseline == nil || res.Recent == nil {
		res.Insufficient = true
		return res, nil
	}

	res.AbsDiff = math.Abs(*res.Baseline - *res.Recent)
	if *res.Recent != 0 {
		res.RelDiff = res.AbsDiff / *res.Recent
	}
	res.Abnormal = res.AbsDiff > th.Abs || res.RelDiff > th.Rel

	j.logger.Debug("Drift metric compared",
		zap.String("device_id", deviceID),
		zap.String("metric", metric),
		zap.Float64("baseline", *res.Baseline),
		zap.Float64("recent", *res.Recent),
		zap.Float64("abs", res.AbsDiff),
		zap.Float64("rel", res.RelDiff),
		zap.Bool("abnormal", res.Abnormal),
	)
	return res, nil
}

// MiddleNMean 排序后取中间 n 个值求平均；不足 n 个时取全部平均，空序列返回 nil
func MiddleNMean(vals []float64, n int) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	if n <= 0 || len(sorted) <= n {
		m := mean(sorted)
		return &m
	}
	start := (len(sorted) - n) / 2
	m := mean(sorted[start : start+n])
	return &m
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func values(rows []influx.Row) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Value(); ok {
			out = append(out, v)
		}
	}
	return out
}
