package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-vital-monitor/internal/models"

	"go.uber.org/zap"
)

// CacheManager 将最新体征视图写入 Redis，供其它服务直接读取
type CacheManager struct {
	kv        KVStore
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(kv KVStore, keyPrefix string, ttl time.Duration, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		kv:        kv,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// ViewKey 完整视图的缓存 key
func (c *CacheManager) ViewKey() string {
	return c.keyPrefix + "view"
}

// DeviceKey 单设备记录的缓存 key
func (c *CacheManager) DeviceKey(deviceID string) string {
	return fmt.Sprintf("%sdevice:%s", c.keyPrefix, deviceID)
}

// UpdateView 写入完整视图以及每个设备的记录
func (c *CacheManager) UpdateView(ctx context.Context, view *models.VitalsView) error {
	jsonData, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal vitals view: %w", err)
	}
	if err := c.kv.Set(ctx, c.ViewKey(), string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	for i := range view.Records {
		record := &view.Records[i]
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal device record %s: %w", record.DeviceID, err)
		}
		if err := c.kv.Set(ctx, c.DeviceKey(record.DeviceID), string(data), c.ttl); err != nil {
			return fmt.Errorf("failed to set device cache %s: %w", record.DeviceID, err)
		}
	}

	c.logger.Debug("Updated vitals cache",
		zap.String("key", c.ViewKey()),
		zap.Int("device_count", len(view.Records)),
	)
	return nil
}

// GetView 读取缓存的完整视图
func (c *CacheManager) GetView(ctx context.Context) (*models.VitalsView, error) {
	raw, err := c.kv.Get(ctx, c.ViewKey())
	if err != nil {
		return nil, err
	}
	var view models.VitalsView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vitals view: %w", err)
	}
	return &view, nil
}

// GetDevice 读取单设备记录
func (c *CacheManager) GetDevice(ctx context.Context, deviceID string) (*models.DeviceVitals, error) {
	raw, err := c.kv.Get(ctx, c.DeviceKey(deviceID))
	if err != nil {
		return nil, err
	}
	var record models.DeviceVitals
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device record: %w", err)
	}
	return &record, nil
}
