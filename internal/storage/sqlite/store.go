package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"upmon/internal/models"
	"upmon/internal/storage"
)

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens the database file, enables foreign keys and WAL, and runs
// migrations.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// Foreign key enforcement is per-connection in SQLite; the DSN flag
	// alone is not honored by every driver version.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
	id                            TEXT PRIMARY KEY,
	telegram_id                   INTEGER NOT NULL UNIQUE,
	email                         TEXT NOT NULL DEFAULT '',
	is_notification_enabled       INTEGER NOT NULL DEFAULT 1,
	is_email_notification_enabled INTEGER NOT NULL DEFAULT 0,
	email_limit                   INTEGER NOT NULL DEFAULT 4,
	email_notification_count      INTEGER NOT NULL DEFAULT 0,
	last_email_notification_date  TEXT,
	created_at                    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS monitors (
	id                        TEXT PRIMARY KEY,
	owner_id                  TEXT NOT NULL,
	url                       TEXT NOT NULL,
	name                      TEXT NOT NULL,
	interval_seconds          INTEGER NOT NULL,
	timeout_seconds           INTEGER NOT NULL,
	expected_status           INTEGER NOT NULL DEFAULT 0,
	is_active                 INTEGER NOT NULL DEFAULT 1,
	check_ssl                 INTEGER NOT NULL DEFAULT 0,
	ssl_expiry_threshold_days INTEGER NOT NULL DEFAULT 14,
	keyword_include           TEXT NOT NULL DEFAULT '',
	keyword_exclude           TEXT NOT NULL DEFAULT '',
	max_response_time         REAL NOT NULL DEFAULT 0,
	consecutive_checks        INTEGER NOT NULL DEFAULT 1,
	last_status               INTEGER,
	last_checked_at           TEXT,
	created_at                TEXT NOT NULL,
	FOREIGN KEY(owner_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_monitors_owner_id ON monitors (owner_id);

CREATE TABLE IF NOT EXISTS maintenance_windows (
	id          TEXT PRIMARY KEY,
	monitor_id  TEXT NOT NULL,
	start_time  TEXT NOT NULL,
	end_time    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	FOREIGN KEY(monitor_id) REFERENCES monitors(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_maintenance_windows_monitor_id ON maintenance_windows (monitor_id);

CREATE TABLE IF NOT EXISTS check_logs (
	id            TEXT PRIMARY KEY,
	monitor_id    TEXT NOT NULL,
	status_code   INTEGER,
	response_time REAL NOT NULL,
	is_up         INTEGER NOT NULL,
	error_message TEXT,
	checked_at    TEXT NOT NULL,
	FOREIGN KEY(monitor_id) REFERENCES monitors(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_check_logs_monitor_id_checked_at ON check_logs (monitor_id, checked_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func randomID(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return prefix + time.Now().UTC().Format("20060102150405.000000000")
	}
	return prefix + hex.EncodeToString(b)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateUser inserts a new notification target.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = randomID("usr_")
	}
	if u.EmailLimit <= 0 {
		u.EmailLimit = 4
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	var lastDate interface{}
	if u.LastEmailNotificationDate != nil {
		lastDate = formatTime(*u.LastEmailNotificationDate)
	}
	query := `
INSERT INTO users (id, telegram_id, email, is_notification_enabled, is_email_notification_enabled,
	email_limit, email_notification_count, last_email_notification_date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.TelegramID, u.Email,
		boolToInt(u.IsNotificationEnabled), boolToInt(u.IsEmailNotificationEnabled),
		u.EmailLimit, u.EmailNotificationCount, lastDate, formatTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var notif, emailNotif int
	var lastDate sql.NullString
	var createdAt string
	err := row.Scan(&u.ID, &u.TelegramID, &u.Email, &notif, &emailNotif,
		&u.EmailLimit, &u.EmailNotificationCount, &lastDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.IsNotificationEnabled = notif != 0
	u.IsEmailNotificationEnabled = emailNotif != 0
	if lastDate.Valid {
		t := parseTime(lastDate.String)
		u.LastEmailNotificationDate = &t
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

const userColumns = `id, telegram_id, email, is_notification_enabled, is_email_notification_enabled,
	email_limit, email_notification_count, last_email_notification_date, created_at`

// GetUserByTelegramID retrieves a user by the Telegram chat identity.
func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, telegramID))
}

// UpdateUserEmailQuota records the email counter and the last send date
// after a successful delivery.
func (s *Store) UpdateUserEmailQuota(ctx context.Context, userID string, count int, at time.Time) error {
	query := `UPDATE users SET email_notification_count = ?, last_email_notification_date = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, count, formatTime(at), userID)
	if err != nil {
		return fmt.Errorf("update email quota: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateMonitor inserts a new monitor.
func (s *Store) CreateMonitor(ctx context.Context, m *models.Monitor) error {
	if m.ID == "" {
		m.ID = randomID("mon_")
	}
	if m.ConsecutiveChecks < 1 {
		m.ConsecutiveChecks = 1
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var lastStatus interface{}
	if m.LastStatus != nil {
		lastStatus = boolToInt(*m.LastStatus)
	}
	var lastChecked interface{}
	if m.LastCheckedAt != nil {
		lastChecked = formatTime(*m.LastCheckedAt)
	}
	query := `
INSERT INTO monitors (id, owner_id, url, name, interval_seconds, timeout_seconds, expected_status,
	is_active, check_ssl, ssl_expiry_threshold_days, keyword_include, keyword_exclude,
	max_response_time, consecutive_checks, last_status, last_checked_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.OwnerID, m.URL, m.Name, m.Interval, m.Timeout, m.ExpectedStatus,
		boolToInt(m.IsActive), boolToInt(m.CheckSSL), m.SSLExpiryThresholdDays,
		m.KeywordInclude, m.KeywordExclude, m.MaxResponseTime, m.ConsecutiveChecks,
		lastStatus, lastChecked, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert monitor: %w", err)
	}
	return nil
}

const monitorColumns = `id, owner_id, url, name, interval_seconds, timeout_seconds, expected_status,
	is_active, check_ssl, ssl_expiry_threshold_days, keyword_include, keyword_exclude,
	max_response_time, consecutive_checks, last_status, last_checked_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMonitor(row rowScanner) (*models.Monitor, error) {
	var m models.Monitor
	var active, checkSSL int
	var lastStatus sql.NullInt64
	var lastChecked sql.NullString
	var createdAt string
	err := row.Scan(&m.ID, &m.OwnerID, &m.URL, &m.Name, &m.Interval, &m.Timeout, &m.ExpectedStatus,
		&active, &checkSSL, &m.SSLExpiryThresholdDays, &m.KeywordInclude, &m.KeywordExclude,
		&m.MaxResponseTime, &m.ConsecutiveChecks, &lastStatus, &lastChecked, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan monitor: %w", err)
	}
	m.IsActive = active != 0
	m.CheckSSL = checkSSL != 0
	if lastStatus.Valid {
		up := lastStatus.Int64 != 0
		m.LastStatus = &up
	}
	if lastChecked.Valid {
		t := parseTime(lastChecked.String)
		m.LastCheckedAt = &t
	}
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

// GetMonitor retrieves a single monitor by id, without owner or windows.
func (s *Store) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE id = ?`
	return scanMonitor(s.db.QueryRowContext(ctx, query, id))
}

// LoadActiveMonitors returns all active monitors with owners and
// maintenance windows attached, ready for one scheduler cycle.
func (s *Store) LoadActiveMonitors(ctx context.Context) ([]models.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE is_active = 1 ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active monitors: %w", err)
	}
	defer rows.Close()

	var monitors []models.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitors: %w", err)
	}

	for i := range monitors {
		owner, err := s.getUserByID(ctx, monitors[i].OwnerID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		monitors[i].Owner = owner

		windows, err := s.listMaintenanceWindows(ctx, monitors[i].ID)
		if err != nil {
			return nil, err
		}
		monitors[i].MaintenanceWindows = windows
	}
	return monitors, nil
}

func (s *Store) getUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// DeleteMonitor removes a monitor; check logs and maintenance windows
// cascade via foreign keys.
func (s *Store) DeleteMonitor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateMaintenanceWindow inserts a suppression window for a monitor.
func (s *Store) CreateMaintenanceWindow(ctx context.Context, w *models.MaintenanceWindow) error {
	if w.ID == "" {
		w.ID = randomID("mw_")
	}
	query := `INSERT INTO maintenance_windows (id, monitor_id, start_time, end_time, description) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, w.ID, w.MonitorID, formatTime(w.StartTime), formatTime(w.EndTime), w.Description)
	if err != nil {
		return fmt.Errorf("insert maintenance window: %w", err)
	}
	return nil
}

func (s *Store) listMaintenanceWindows(ctx context.Context, monitorID string) ([]models.MaintenanceWindow, error) {
	query := `SELECT id, monitor_id, start_time, end_time, description FROM maintenance_windows WHERE monitor_id = ? ORDER BY start_time`
	rows, err := s.db.QueryContext(ctx, query, monitorID)
	if err != nil {
		return nil, fmt.Errorf("query maintenance windows: %w", err)
	}
	defer rows.Close()

	var windows []models.MaintenanceWindow
	for rows.Next() {
		var w models.MaintenanceWindow
		var start, end string
		if err := rows.Scan(&w.ID, &w.MonitorID, &start, &end, &w.Description); err != nil {
			return nil, fmt.Errorf("scan maintenance window: %w", err)
		}
		w.StartTime = parseTime(start)
		w.EndTime = parseTime(end)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// SaveCycleResults commits one cycle's check logs and status updates
// atomically.
func (s *Store) SaveCycleResults(ctx context.Context, logs []models.CheckLog, updates []models.StatusUpdate) error {
	if len(logs) == 0 && len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertLog := `INSERT INTO check_logs (id, monitor_id, status_code, response_time, is_up, error_message, checked_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i := range logs {
		l := &logs[i]
		if l.ID == "" {
			l.ID = randomID("chk_")
		}
		var code interface{}
		if l.StatusCode != nil {
			code = *l.StatusCode
		}
		var errMsg interface{}
		if l.ErrorMessage != nil {
			errMsg = *l.ErrorMessage
		}
		if _, err := tx.ExecContext(ctx, insertLog, l.ID, l.MonitorID, code, l.ResponseTime,
			boolToInt(l.IsUp), errMsg, formatTime(l.CheckedAt)); err != nil {
			return fmt.Errorf("insert check log: %w", err)
		}
	}

	updateMonitor := `UPDATE monitors SET last_status = ?, last_checked_at = ? WHERE id = ?`
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, updateMonitor, boolToInt(u.IsUp), formatTime(u.CheckedAt), u.MonitorID); err != nil {
			return fmt.Errorf("update monitor status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cycle results: %w", err)
	}
	return nil
}

// ListCheckLogs retrieves recent check logs for a monitor, newest first.
func (s *Store) ListCheckLogs(ctx context.Context, params storage.ListCheckLogsParams) ([]models.CheckLog, error) {
	args := []interface{}{params.MonitorID}
	qb := strings.Builder{}
	qb.WriteString(`SELECT id, monitor_id, status_code, response_time, is_up, error_message, checked_at FROM check_logs WHERE monitor_id = ?`)
	if params.Since != nil {
		args = append(args, formatTime(*params.Since))
		qb.WriteString(" AND checked_at > ?")
	}
	qb.WriteString(" ORDER BY checked_at DESC LIMIT ?")
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query check logs: %w", err)
	}
	defer rows.Close()

	var logs []models.CheckLog
	for rows.Next() {
		var l models.CheckLog
		var code sql.NullInt64
		var isUp int
		var errMsg sql.NullString
		var checkedAt string
		if err := rows.Scan(&l.ID, &l.MonitorID, &code, &l.ResponseTime, &isUp, &errMsg, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan check log: %w", err)
		}
		if code.Valid {
			c := int(code.Int64)
			l.StatusCode = &c
		}
		l.IsUp = isUp != 0
		if errMsg.Valid {
			m := errMsg.String
			l.ErrorMessage = &m
		}
		l.CheckedAt = parseTime(checkedAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// MonitorStats computes simple aggregate counts for one monitor: failing
// checks over the trailing 24h and 7d, and the most recent failure.
func (s *Store) MonitorStats(ctx context.Context, monitorID string) (*models.MonitorStats, error) {
	m, err := s.GetMonitor(ctx, monitorID)
	if err != nil {
		return nil, err
	}

	stats := &models.MonitorStats{
		Name:          m.Name,
		URL:           m.URL,
		CurrentStatus: m.LastStatus,
		LastChecked:   m.LastCheckedAt,
	}

	now := time.Now().UTC()
	countSince := `SELECT COUNT(*) FROM check_logs WHERE monitor_id = ? AND is_up = 0 AND checked_at >= ?`
	if err := s.db.QueryRowContext(ctx, countSince, monitorID, formatTime(now.Add(-24*time.Hour))).Scan(&stats.Incidents24h); err != nil {
		return nil, fmt.Errorf("count 24h incidents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, countSince, monitorID, formatTime(now.Add(-7*24*time.Hour))).Scan(&stats.Incidents7d); err != nil {
		return nil, fmt.Errorf("count 7d incidents: %w", err)
	}

	var lastDown sql.NullString
	lastDownQuery := `SELECT checked_at FROM check_logs WHERE monitor_id = ? AND is_up = 0 ORDER BY checked_at DESC LIMIT 1`
	err = s.db.QueryRowContext(ctx, lastDownQuery, monitorID).Scan(&lastDown)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query last incident: %w", err)
	}
	if lastDown.Valid {
		t := parseTime(lastDown.String)
		stats.LastIncident = &t
	}
	return stats, nil
}

// CountActiveMonitors returns the number of active monitors.
func (s *Store) CountActiveMonitors(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM monitors WHERE is_active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count monitors: %w", err)
	}
	return n, nil
}
