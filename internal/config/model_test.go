package config

import (
	"strings"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()

	if c.System.TickInterval != 10 {
		t.Errorf("want tick 10, got %d", c.System.TickInterval)
	}
	if c.System.MinMonitorInterval != 180 {
		t.Errorf("want interval floor 180, got %d", c.System.MinMonitorInterval)
	}
	if c.System.MaxConcurrentChecks != 16 {
		t.Errorf("want 16 concurrent checks, got %d", c.System.MaxConcurrentChecks)
	}
	if c.Database.Path == "" {
		t.Error("database path should default")
	}
	if c.SMTP.Port != 587 {
		t.Errorf("want smtp port 587, got %d", c.SMTP.Port)
	}
}

func TestValidate(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	c = DefaultConfig()
	c.System.LogLevel = "verbose"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "log_level") {
		t.Errorf("want log level error, got %v", err)
	}

	c = DefaultConfig()
	c.System.MinMonitorInterval = 5
	c.System.TickInterval = 10
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "min_monitor_interval") {
		t.Errorf("want interval floor error, got %v", err)
	}

	c = DefaultConfig()
	c.SMTP.Host = "smtp.example.com"
	c.SMTP.From = ""
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "smtp.from") {
		t.Errorf("want smtp.from error, got %v", err)
	}
}
