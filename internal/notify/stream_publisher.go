package notify

import (
	"context"
	"fmt"

	"wisefido-vital-monitor/internal/drift"
	"wisefido-vital-monitor/internal/models"
	rediscommon "wisefido-vital-monitor/owl-common/redis"

	"go.uber.org/zap"
)

// 事件类型
const (
	EventFallRisk   = "vital.fall_risk"
	EventDriftAlert = "vital.drift_alert"
)

// FallRiskEvent 跌倒风险出现（上一轮无风险，本轮有风险）
type FallRiskEvent struct {
	CycleID           string   `json:"cycle_id"`
	DeviceID          string   `json:"device_id"`
	Room              string   `json:"room"`
	Label             string   `json:"label,omitempty"`
	MovementAmplitude *float64 `json:"movement_amplitude,omitempty"`
	Link              string   `json:"link,omitempty"`
}

// StreamPublisher 将告警类事件写入 Redis Stream，供告警服务消费
type StreamPublisher struct {
	client *rediscommon.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamPublisher 创建事件流发布器
func NewStreamPublisher(client *rediscommon.Client, stream string, maxLen int64, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

// PublishFallRisk 发布跌倒风险事件
func (p *StreamPublisher) PublishFallRisk(ctx context.Context, cycleID string, record models.DeviceVitals) error {
	event := FallRiskEvent{
		CycleID:           cycleID,
		DeviceID:          record.DeviceID,
		Room:              record.Room,
		Label:             record.Label,
		MovementAmplitude: record.MovementAmplitude,
		Link:              record.Link,
	}
	id, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, EventFallRisk, event)
	if err != nil {
		return fmt.Errorf("failed to publish fall risk event: %w", err)
	}

	p.logger.Info("Published fall risk event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("device_id", record.DeviceID),
	)
	return nil
}

// PublishDriftAlert 发布体征漂移告警
func (p *StreamPublisher) PublishDriftAlert(ctx context.Context, alert drift.Alert) error {
	id, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, EventDriftAlert, alert)
	if err != nil {
		return fmt.Errorf("failed to publish drift alert: %w", err)
	}

	p.logger.Info("Published drift alert",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("device_id", alert.DeviceID),
	)
	return nil
}
