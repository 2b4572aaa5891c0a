package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-vital-monitor/internal/models"

	"go.uber.org/zap"
)

// DeviceRepository 被监控设备查询
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

// ListMonitoredDevices 获取租户下需要体征轮询的雷达设备
//
// 条件：monitoring_enabled = TRUE 且未禁用；设备标识优先用 serial_number，为空时用 uid
// （雷达写入时序库的 device_id 即序列号）。
// 房间取设备直接绑定的房间，绑定到床时取床所在房间；按房间名、设备名排序，
// 这个顺序就是展示顺序以及与仪表盘对应的顺序。
func (r *DeviceRepository) ListMonitoredDevices(ctx context.Context, tenantID string) ([]models.DeviceConfig, error) {
	query := `
		SELECT
			COALESCE(NULLIF(d.serial_number, ''), d.uid) AS device_key,
			COALESCE(r1.room_name, r2.room_name) AS room_name,
			d.device_name
		FROM devices d
		LEFT JOIN device_store ds ON d.device_store_id = ds.device_store_id
		LEFT JOIN rooms r1 ON d.bound_room_id = r1.room_id
		LEFT JOIN beds  b  ON d.bound_bed_id  = b.bed_id
		LEFT JOIN rooms r2 ON b.room_id = r2.room_id
		WHERE d.tenant_id = $1
		  AND d.monitoring_enabled = TRUE
		  AND d.status <> 'disabled'
		  AND COALESCE(ds.device_type, 'Radar') = 'Radar'
		ORDER BY COALESCE(r1.room_name, r2.room_name), d.device_name
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitored devices: %w", err)
	}
	defer rows.Close()

	var devices []models.DeviceConfig
	seen := make(map[string]bool)
	for rows.Next() {
		var (
			deviceKey  sql.NullString
			roomName   sql.NullString
			deviceName sql.NullString
		)
		if err := rows.Scan(&deviceKey, &roomName, &deviceName); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}

		if !deviceKey.Valid || deviceKey.String == "" {
			r.logger.Warn("Skipping device without serial_number and uid",
				zap.String("device_name", deviceName.String),
			)
			continue
		}
		if seen[deviceKey.String] {
			continue
		}
		seen[deviceKey.String] = true

		room := roomName.String
		if room == "" {
			room = "unassigned"
		}
		devices = append(devices, models.DeviceConfig{
			Room:     room,
			DeviceID: deviceKey.String,
			Label:    deviceName.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	r.logger.Info("Loaded monitored devices",
		zap.String("tenant_id", tenantID),
		zap.Int("device_count", len(devices)),
	)
	return devices, nil
}
