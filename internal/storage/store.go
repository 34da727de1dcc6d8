package storage

import (
	"context"
	"errors"
	"time"

	"upmon/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate")
)

// ListCheckLogsParams filters and limits check log listings.
type ListCheckLogsParams struct {
	MonitorID string
	Since     *time.Time
	Limit     int
}

// Store is the persistence boundary for the check cycle and the
// operational read endpoints. The external CRUD layer uses the Create
// and Delete methods; the scheduler only loads, saves cycle results and
// updates email quotas.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	UpdateUserEmailQuota(ctx context.Context, userID string, count int, at time.Time) error

	CreateMonitor(ctx context.Context, m *models.Monitor) error
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	// LoadActiveMonitors returns all active monitors with their owners
	// and maintenance windows attached.
	LoadActiveMonitors(ctx context.Context) ([]models.Monitor, error)
	// DeleteMonitor removes a monitor and cascades its check logs and
	// maintenance windows.
	DeleteMonitor(ctx context.Context, id string) error

	CreateMaintenanceWindow(ctx context.Context, w *models.MaintenanceWindow) error

	// SaveCycleResults persists one cycle's check logs and monitor
	// status mutations in a single transaction. A failure rolls the
	// whole batch back.
	SaveCycleResults(ctx context.Context, logs []models.CheckLog, updates []models.StatusUpdate) error
	ListCheckLogs(ctx context.Context, params ListCheckLogsParams) ([]models.CheckLog, error)

	MonitorStats(ctx context.Context, monitorID string) (*models.MonitorStats, error)
	CountActiveMonitors(ctx context.Context) (int, error)

	Close() error
}
