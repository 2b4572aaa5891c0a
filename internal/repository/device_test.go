package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *DeviceRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewDeviceRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestListMonitoredDevices_Success(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"device_key", "room_name", "device_name"}).
		AddRow("84F7035346E0", "101", "Radar01").
		AddRow("84F70353AAAA", nil, "Radar02").
		AddRow(nil, "102", "Broken").
		AddRow("84F7035346E0", "101", "Radar01-dup")

	mock.ExpectQuery(`SELECT\s+COALESCE\(NULLIF\(d.serial_number`).
		WithArgs("tenant-1").
		WillReturnRows(rows)

	devices, err := repo.ListMonitoredDevices(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "84F7035346E0", devices[0].DeviceID)
	assert.Equal(t, "101", devices[0].Room)
	assert.Equal(t, "Radar01", devices[0].Label)
	assert.Equal(t, "unassigned", devices[1].Room)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMonitoredDevices_QueryError(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("tenant-1").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.ListMonitoredDevices(context.Background(), "tenant-1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
