package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wisefido-vital-monitor/internal/models"
	"wisefido-vital-monitor/owl-common/config"
)

const (
	DeviceSourceEnv      = "env"
	DeviceSourcePostgres = "postgres"

	InfluxModeDirect = "direct"
	InfluxModeProxy  = "proxy"
)

// Config 体征监控服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// InfluxDB 时序库（直接访问或经由查询代理）
	Influx struct {
		URL      string
		Token    string
		Org      string
		Bucket   string
		Mode     string // "direct" 或 "proxy"
		ProxyURL string
	}

	// Grafana 仪表盘目录（用于设备详情链接）
	Grafana struct {
		URL     string
		Token   string
		Timeout time.Duration
	}

	// 体征轮询配置
	Monitor struct {
		TenantID           string
		DeviceSource       string // "env" 或 "postgres"
		Devices            []models.DeviceConfig
		PollInterval       time.Duration
		QueryTimeout       time.Duration
		QueryRange         string // Flux range start，如 "-1m"
		AmplitudeThreshold float64
		Fields             models.MetricFields
	}

	// 体征漂移判断（心率/呼吸长短窗口对比）
	Drift struct {
		Enabled        bool
		Interval       time.Duration
		HRAbs          float64
		HRRel          float64
		RRAbs          float64
		RRRel          float64
		AlertThreshold int // 连续异常次数阈值
		MiddleN        int // 长窗口取中间 N 个值求平均
	}

	// Redis 缓存与事件流
	Cache struct {
		Enabled      bool
		KeyPrefix    string
		TTL          time.Duration
		EventStream  string
		StreamMaxLen int64
	}

	// MQTT 发布/刷新指令
	Publish struct {
		Enabled      bool
		TopicPrefix  string
		RefreshTopic string
	}

	HTTP struct {
		Addr           string
		AllowedOrigins []string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-vital-monitor"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	// InfluxDB
	cfg.Influx.URL = getEnv("INFLUXDB_URL", "http://influxdb:8086")
	cfg.Influx.Token = getEnv("INFLUXDB_TOKEN", "")
	cfg.Influx.Org = getEnv("INFLUXDB_ORG", "ld6002h")
	cfg.Influx.Bucket = getEnv("INFLUXDB_BUCKET", "vitals_data")
	cfg.Influx.Mode = strings.ToLower(getEnv("INFLUX_MODE", InfluxModeDirect))
	cfg.Influx.ProxyURL = getEnv("INFLUX_PROXY_URL", "")
	if cfg.Influx.Mode != InfluxModeDirect && cfg.Influx.Mode != InfluxModeProxy {
		return nil, fmt.Errorf("unsupported INFLUX_MODE: %s", cfg.Influx.Mode)
	}
	if cfg.Influx.Mode == InfluxModeProxy && cfg.Influx.ProxyURL == "" {
		return nil, fmt.Errorf("INFLUX_PROXY_URL is required when INFLUX_MODE=proxy")
	}

	// Grafana
	cfg.Grafana.URL = strings.TrimRight(getEnv("GRAFANA_URL", ""), "/")
	cfg.Grafana.Token = getEnv("GRAFANA_TOKEN", "")
	cfg.Grafana.Timeout = getEnvDuration("GRAFANA_TIMEOUT", 10*time.Second)

	// 轮询
	cfg.Monitor.TenantID = getEnv("TENANT_ID", "")
	cfg.Monitor.DeviceSource = strings.ToLower(getEnv("VITALS_DEVICE_SOURCE", DeviceSourceEnv))
	cfg.Monitor.PollInterval = getEnvDuration("VITALS_POLL_INTERVAL", 10*time.Second)
	cfg.Monitor.QueryTimeout = getEnvDuration("VITALS_QUERY_TIMEOUT", 15*time.Second)
	cfg.Monitor.QueryRange = getEnv("VITALS_QUERY_RANGE", "-1m")
	cfg.Monitor.AmplitudeThreshold = getEnvFloat("VITALS_AMPLITUDE_THRESHOLD", 900)

	fields := models.DefaultMetricFields()
	fields.HeartRate = getEnv("VITALS_FIELD_HEART_RATE", fields.HeartRate)
	fields.RespirationRate = getEnv("VITALS_FIELD_RESPIRATION", fields.RespirationRate)
	fields.DistanceMin = getEnv("VITALS_FIELD_DISTANCE", fields.DistanceMin)
	fields.MovementAmplitude = getEnv("VITALS_FIELD_AMPLITUDE", fields.MovementAmplitude)
	cfg.Monitor.Fields = fields

	switch cfg.Monitor.DeviceSource {
	case DeviceSourceEnv:
		devices, err := ParseDeviceList(getEnv("VITALS_DEVICES", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid VITALS_DEVICES: %w", err)
		}
		cfg.Monitor.Devices = devices
	case DeviceSourcePostgres:
		if cfg.Monitor.TenantID == "" {
			return nil, fmt.Errorf("TENANT_ID is required when VITALS_DEVICE_SOURCE=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported VITALS_DEVICE_SOURCE: %s", cfg.Monitor.DeviceSource)
	}

	// 漂移判断（默认值与原巡检脚本一致）
	cfg.Drift.Enabled = getEnv("DRIFT_ENABLED", "false") == "true"
	cfg.Drift.Interval = getEnvDuration("DRIFT_INTERVAL", 60*time.Second)
	cfg.Drift.HRAbs = getEnvFloat("DRIFT_HR_ABS", 20)
	cfg.Drift.HRRel = getEnvFloat("DRIFT_HR_REL", 0.30)
	cfg.Drift.RRAbs = getEnvFloat("DRIFT_RR_ABS", 5)
	cfg.Drift.RRRel = getEnvFloat("DRIFT_RR_REL", 0.35)
	cfg.Drift.AlertThreshold = getEnvInt("DRIFT_ALERT_THRESHOLD", 3)
	cfg.Drift.MiddleN = getEnvInt("DRIFT_MIDDLE_N", 10)

	// 缓存
	cfg.Cache.Enabled = getEnv("CACHE_ENABLED", "true") == "true"
	cfg.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", "vital-monitor:")
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 30*time.Second)
	cfg.Cache.EventStream = getEnv("CACHE_EVENT_STREAM", "vital-monitor:events")
	cfg.Cache.StreamMaxLen = int64(getEnvInt("CACHE_STREAM_MAXLEN", 10000))

	// MQTT 发布
	cfg.Publish.Enabled = getEnv("MQTT_PUBLISH_ENABLED", "false") == "true"
	cfg.Publish.TopicPrefix = strings.TrimRight(getEnv("MQTT_TOPIC_PREFIX", "vital-monitor"), "/")
	cfg.Publish.RefreshTopic = getEnv("MQTT_REFRESH_TOPIC", "vital-monitor/cmd/refresh")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")
	cfg.HTTP.AllowedOrigins = splitList(getEnv("HTTP_ALLOWED_ORIGINS", "*"))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// ParseDeviceList 解析设备列表
// 格式：room:device_id[:label]，多个设备以逗号分隔，保持书写顺序
func ParseDeviceList(raw string) ([]models.DeviceConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var devices []models.DeviceConfig
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("entry %q: expected room:device_id[:label]", entry)
		}
		device := models.DeviceConfig{
			Room:     strings.TrimSpace(parts[0]),
			DeviceID: strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			device.Label = strings.TrimSpace(parts[2])
		}
		if device.Room == "" || device.DeviceID == "" {
			return nil, fmt.Errorf("entry %q: room and device_id must not be empty", entry)
		}
		if seen[device.DeviceID] {
			return nil, fmt.Errorf("duplicate device_id %s", device.DeviceID)
		}
		seen[device.DeviceID] = true
		devices = append(devices, device)
	}
	return devices, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration 支持 "10s" 形式，也兼容纯数字（按秒）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
