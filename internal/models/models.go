package models

import "time"

// Monitor is a user-registered HTTP(S) endpoint under periodic observation.
// Config fields are owned by the external CRUD layer; LastStatus and
// LastCheckedAt are mutated by the check cycle.
type Monitor struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	URL     string `json:"url"`
	Name    string `json:"name"`

	Interval       int  `json:"interval_seconds"`
	Timeout        int  `json:"timeout_seconds"`
	ExpectedStatus int  `json:"expected_status"` // 0 = any 2xx
	IsActive       bool `json:"is_active"`

	CheckSSL               bool   `json:"check_ssl"`
	SSLExpiryThresholdDays int    `json:"ssl_expiry_threshold_days"`
	KeywordInclude         string `json:"keyword_include,omitempty"`
	KeywordExclude         string `json:"keyword_exclude,omitempty"`

	// MaxResponseTime is a latency ceiling in seconds; exceeding it only
	// produces a warning, never a DOWN verdict. 0 disables the check.
	MaxResponseTime float64 `json:"max_response_time"`

	// ConsecutiveChecks is the retry budget per cycle, at least 1.
	ConsecutiveChecks int `json:"consecutive_checks"`

	// LastStatus is nil until the first check completes.
	LastStatus    *bool      `json:"last_status"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
	CreatedAt     time.Time  `json:"created_at"`

	Owner              *User               `json:"-"`
	MaintenanceWindows []MaintenanceWindow `json:"-"`
}

// MaintenanceWindow suppresses a monitor's checks while now falls inside
// the closed interval [StartTime, EndTime].
type MaintenanceWindow struct {
	ID          string    `json:"id"`
	MonitorID   string    `json:"monitor_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Description string    `json:"description,omitempty"`
}

// CheckLog is an immutable record of one executed probe cycle.
type CheckLog struct {
	ID        string `json:"id"`
	MonitorID string `json:"-"`
	// StatusCode is nil when the request never produced a response.
	StatusCode *int `json:"status_code"`
	// ResponseTime is in seconds, 0 if the connection was never made.
	ResponseTime float64 `json:"response_time"`
	IsUp         bool    `json:"is_up"`
	// ErrorMessage holds the primary failure reason, possibly with
	// appended advisory warnings.
	ErrorMessage *string   `json:"error_message"`
	CheckedAt    time.Time `json:"checked_at"`
}

// StatusUpdate carries one monitor's post-check state mutation, persisted
// together with the cycle's check logs.
type StatusUpdate struct {
	MonitorID string
	IsUp      bool
	CheckedAt time.Time
}

// User is a notification target. The record is owned by the external CRUD
// layer; only the email quota fields are mutated here.
type User struct {
	ID                         string     `json:"id"`
	TelegramID                 int64      `json:"telegram_id"`
	Email                      string     `json:"email,omitempty"`
	IsNotificationEnabled      bool       `json:"is_notification_enabled"`
	IsEmailNotificationEnabled bool       `json:"is_email_notification_enabled"`
	EmailLimit                 int        `json:"email_limit"`
	EmailNotificationCount     int        `json:"email_notification_count"`
	LastEmailNotificationDate  *time.Time `json:"last_email_notification_date"`
	CreatedAt                  time.Time  `json:"created_at"`
}

// MonitorStats holds simple aggregate counts for one monitor.
type MonitorStats struct {
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	CurrentStatus *bool      `json:"current_status"`
	LastChecked   *time.Time `json:"last_checked"`
	Incidents24h  int        `json:"incidents_24h"`
	Incidents7d   int        `json:"incidents_7d"`
	LastIncident  *time.Time `json:"last_incident"`
}
