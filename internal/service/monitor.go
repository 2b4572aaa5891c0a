package service

import (
	"context"
	"fmt"
	"time"

	"wisefido-vital-monitor/internal/aggregator"
	"wisefido-vital-monitor/internal/config"
	"wisefido-vital-monitor/internal/dashboard"
	"wisefido-vital-monitor/internal/drift"
	"wisefido-vital-monitor/internal/influx"
	"wisefido-vital-monitor/internal/metrics"
	"wisefido-vital-monitor/internal/models"
	"wisefido-vital-monitor/internal/notify"
	"wisefido-vital-monitor/internal/repository"
	"wisefido-vital-monitor/owl-common/database"
	mqttcommon "wisefido-vital-monitor/owl-common/mqtt"
	rediscommon "wisefido-vital-monitor/owl-common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DriftAlertPublisher 漂移告警发布
type DriftAlertPublisher interface {
	PublishDriftAlert(ctx context.Context, alert drift.Alert) error
}

// VitalMonitorService 体征监控服务
type VitalMonitorService struct {
	config      *config.Config
	logger      *zap.Logger
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	poller      *Poller
	judge       *drift.Judge
	driftEvents DriftAlertPublisher
	metrics     *metrics.Metrics
}

// NewVitalMonitorService 创建体征监控服务
func NewVitalMonitorService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*VitalMonitorService, error) {
	// 加载设备列表（启动后不再变化）
	devices, err := loadDevices(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		logger.Warn("No devices configured, polling will not filter by device")
	}

	// 时序库查询
	var executor QueryExecutor
	switch cfg.Influx.Mode {
	case config.InfluxModeProxy:
		executor = influx.NewProxyClient(cfg.Influx.ProxyURL, cfg.Influx.Token, logger)
	default:
		executor = influx.NewClient(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, logger)
	}

	m := metrics.NewMetrics()
	deps := PollerDeps{
		Executor: executor,
		Metrics:  m,
	}
	if cfg.Grafana.URL != "" {
		deps.Dashboards = dashboard.NewGrafanaClient(cfg.Grafana.URL, cfg.Grafana.Token, cfg.Grafana.Timeout, logger)
	}

	svc := &VitalMonitorService{
		config:  cfg,
		logger:  logger,
		metrics: m,
	}

	// Redis：最新视图缓存 + 告警事件流
	if cfg.Cache.Enabled {
		redisClient := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		svc.redisClient = redisClient

		kv := aggregator.NewRedisKVStore(redisClient)
		deps.Cache = aggregator.NewCacheManager(kv, cfg.Cache.KeyPrefix, cfg.Cache.TTL, logger)

		events := notify.NewStreamPublisher(redisClient, cfg.Cache.EventStream, cfg.Cache.StreamMaxLen, logger)
		deps.Events = events
		svc.driftEvents = events
	}

	// MQTT：按设备发布记录，并接收刷新指令
	if cfg.Publish.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			svc.closeClients()
			return nil, fmt.Errorf("failed to connect to mqtt: %w", err)
		}
		svc.mqttClient = mqttClient
		deps.Publisher = notify.NewMQTTPublisher(mqttClient, cfg.Publish.TopicPrefix, byte(cfg.MQTT.QoS), logger)
	}

	svc.poller = NewPoller(PollerOptions{
		Devices:            devices,
		Bucket:             cfg.Influx.Bucket,
		QueryRange:         cfg.Monitor.QueryRange,
		Fields:             cfg.Monitor.Fields,
		AmplitudeThreshold: cfg.Monitor.AmplitudeThreshold,
		PollInterval:       cfg.Monitor.PollInterval,
		QueryTimeout:       cfg.Monitor.QueryTimeout,
	}, deps, logger)

	if cfg.Drift.Enabled {
		svc.judge = drift.NewJudge(drift.Config{
			Bucket:         cfg.Influx.Bucket,
			Fields:         cfg.Monitor.Fields,
			HeartRate:      drift.Thresholds{Abs: cfg.Drift.HRAbs, Rel: cfg.Drift.HRRel},
			Respiration:    drift.Thresholds{Abs: cfg.Drift.RRAbs, Rel: cfg.Drift.RRRel},
			AlertThreshold: cfg.Drift.AlertThreshold,
			MiddleN:        cfg.Drift.MiddleN,
		}, executor, logger)
	}

	return svc, nil
}

// loadDevices 按配置来源加载设备列表
func loadDevices(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]models.DeviceConfig, error) {
	if cfg.Monitor.DeviceSource != config.DeviceSourcePostgres {
		return cfg.Monitor.Devices, nil
	}

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	repo := repository.NewDeviceRepository(db, logger)
	devices, err := repo.ListMonitoredDevices(ctx, cfg.Monitor.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load devices: %w", err)
	}
	return devices, nil
}

// Poller 调度器（HTTP 层使用）
func (s *VitalMonitorService) Poller() *Poller {
	return s.poller
}

// Metrics 指标
func (s *VitalMonitorService) Metrics() *metrics.Metrics {
	return s.metrics
}

// Start 启动服务（阻塞直到 ctx 取消或 Stop）
func (s *VitalMonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting vital monitor service",
		zap.String("influx_mode", s.config.Influx.Mode),
		zap.String("device_source", s.config.Monitor.DeviceSource),
		zap.Bool("cache_enabled", s.config.Cache.Enabled),
		zap.Bool("publish_enabled", s.config.Publish.Enabled),
		zap.Bool("drift_enabled", s.judge != nil),
	)

	if s.mqttClient != nil && s.config.Publish.RefreshTopic != "" {
		if err := s.subscribeRefresh(ctx); err != nil {
			s.logger.Error("Failed to subscribe refresh topic", zap.Error(err))
		}
	}

	if s.judge != nil {
		go s.startDriftJudge(ctx)
	}

	return s.poller.Run(ctx)
}

// subscribeRefresh 收到刷新指令后执行一轮（与定时轮询串行）
func (s *VitalMonitorService) subscribeRefresh(ctx context.Context) error {
	topic := s.config.Publish.RefreshTopic
	err := s.mqttClient.Subscribe(topic, byte(s.config.MQTT.QoS), func(_ string, _ []byte) error {
		// 不阻塞 MQTT 回调
		go func() {
			if err := s.poller.runCycle(ctx, ReasonMQTT, true); err != nil {
				s.logger.Debug("Refresh from MQTT did not commit", zap.Error(err))
			}
		}()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Subscribed to refresh topic", zap.String("topic", topic))
	return nil
}

// startDriftJudge 定时执行体征漂移判断
func (s *VitalMonitorService) startDriftJudge(ctx context.Context) {
	ticker := time.NewTicker(s.config.Drift.Interval)
	defer ticker.Stop()

	s.logger.Info("Starting drift judge", zap.Duration("interval", s.config.Drift.Interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.poller.stopCtx.Done():
			return
		case <-ticker.C:
			s.runDriftJudge(ctx)
		}
	}
}

func (s *VitalMonitorService) runDriftJudge(ctx context.Context) {
	alerts := s.judge.Run(ctx, s.poller.Devices())
	for _, alert := range alerts {
		s.metrics.DriftAlert()
		if s.driftEvents == nil {
			continue
		}
		if err := s.driftEvents.PublishDriftAlert(ctx, alert); err != nil {
			s.logger.Warn("Failed to publish drift alert",
				zap.String("device_id", alert.DeviceID),
				zap.Error(err),
			)
		}
	}
}

// Stop 停止服务
func (s *VitalMonitorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping vital monitor service")

	s.poller.Stop()

	if s.mqttClient != nil && s.config.Publish.RefreshTopic != "" {
		if err := s.mqttClient.Unsubscribe(s.config.Publish.RefreshTopic); err != nil {
			s.logger.Warn("Failed to unsubscribe refresh topic", zap.Error(err))
		}
	}
	s.closeClients()

	return nil
}

func (s *VitalMonitorService) closeClients() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
}
