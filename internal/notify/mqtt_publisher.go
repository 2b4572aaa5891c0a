package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wisefido-vital-monitor/internal/models"

	"go.uber.org/zap"
)

// MessagePublisher MQTT 发布接口（owl-common/mqtt.Client 满足该接口）
type MessagePublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// recordMessage 单设备体征消息
type recordMessage struct {
	models.DeviceVitals
	CycleID   string `json:"cycle_id"`
	Timestamp int64  `json:"timestamp"`
}

// MQTTPublisher 按设备发布最新体征
// 主题：{prefix}/{room}/{device_id}，retained 消息，订阅者上线即可拿到最新一条
type MQTTPublisher struct {
	client      MessagePublisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTPublisher 创建 MQTT 发布器
func NewMQTTPublisher(client MessagePublisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:      client,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		qos:         qos,
		logger:      logger,
	}
}

// Topic 设备主题
func (p *MQTTPublisher) Topic(record models.DeviceVitals) string {
	return fmt.Sprintf("%s/%s/%s", p.topicPrefix, topicSegment(record.Room), topicSegment(record.DeviceID))
}

// PublishRecords 发布本轮所有设备记录；单个失败不影响其它设备，返回最后一个错误
func (p *MQTTPublisher) PublishRecords(cycleID string, records []models.DeviceVitals, at time.Time) error {
	var lastErr error
	for _, record := range records {
		payload, err := json.Marshal(recordMessage{
			DeviceVitals: record,
			CycleID:      cycleID,
			Timestamp:    at.Unix(),
		})
		if err != nil {
			lastErr = fmt.Errorf("failed to marshal record %s: %w", record.DeviceID, err)
			continue
		}

		topic := p.Topic(record)
		if err := p.client.Publish(topic, p.qos, true, payload); err != nil {
			p.logger.Warn("Failed to publish vitals record",
				zap.String("topic", topic),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	return lastErr
}

// topicSegment MQTT 主题层级中不允许出现 / + #
func topicSegment(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
