package config

import (
	"errors"
	"fmt"
	"strings"
)

const CurrentConfigVersion = 1

// Config is the root configuration structure persisted in config.json.
type Config struct {
	Version  int            `json:"version"`
	System   SystemConfig   `json:"system"`
	Database DatabaseConfig `json:"database"`
	Telegram TelegramConfig `json:"telegram"`
	SMTP     SMTPConfig     `json:"smtp"`
	Ops      OpsConfig      `json:"ops"`
}

type SystemConfig struct {
	BindAddress string `json:"bind_address"`
	// TickInterval is the scheduler wake-up period in seconds. It is
	// deliberately finer-grained than the monitor interval floor so due
	// monitors are picked up promptly.
	TickInterval int `json:"tick_interval"`
	// MinMonitorInterval is the floor, in seconds, below which a
	// monitor's own interval is clamped at scheduling time.
	MinMonitorInterval  int    `json:"min_monitor_interval"`
	MaxConcurrentChecks int    `json:"max_concurrent_checks"`
	LogLevel            string `json:"log_level"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type TelegramConfig struct {
	BotToken string `json:"bot_token,omitempty"`
}

type SMTPConfig struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from,omitempty"`
}

// OpsConfig protects the read-only operational endpoints. An empty
// password hash leaves them unprotected (useful behind a trusted proxy).
type OpsConfig struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash,omitempty"` // bcrypt
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version: CurrentConfigVersion,
		System: SystemConfig{
			BindAddress:         ":8080",
			TickInterval:        10,
			MinMonitorInterval:  180,
			MaxConcurrentChecks: 16,
			LogLevel:            "info",
		},
		Database: DatabaseConfig{
			Path: "upmon.db",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Ops: OpsConfig{
			Username: "ops",
		},
	}
}

// ApplyDefaults fills zero-value fields with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.System.BindAddress == "" {
		c.System.BindAddress = d.System.BindAddress
	}
	if c.System.TickInterval <= 0 {
		c.System.TickInterval = d.System.TickInterval
	}
	if c.System.MinMonitorInterval <= 0 {
		c.System.MinMonitorInterval = d.System.MinMonitorInterval
	}
	if c.System.MaxConcurrentChecks <= 0 {
		c.System.MaxConcurrentChecks = d.System.MaxConcurrentChecks
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = d.System.LogLevel
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = d.SMTP.Port
	}
	if c.Ops.Username == "" {
		c.Ops.Username = d.Ops.Username
	}
}

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	var errs []string

	if c.System.TickInterval < 1 {
		errs = append(errs, "system.tick_interval must be >= 1 second")
	}
	if c.System.MinMonitorInterval < c.System.TickInterval {
		errs = append(errs, "system.min_monitor_interval must be >= system.tick_interval")
	}
	if c.System.MaxConcurrentChecks < 1 {
		errs = append(errs, "system.max_concurrent_checks must be >= 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.System.LogLevel] {
		errs = append(errs, fmt.Sprintf("system.log_level must be one of: debug, info, warn, error (got %q)", c.System.LogLevel))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, "smtp.from is required when smtp.host is set")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
