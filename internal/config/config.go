// Package config provides configuration loading for reportd.
//
// Configuration is read from a YAML file and overridden by environment
// variables, with sensible defaults for everything that is not security
// sensitive.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete reportd configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	NATS     NATSConfig     `koanf:"nats"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Report   ReportConfig   `koanf:"report"`
	Vacation VacationConfig `koanf:"vacation"`
	Roster   RosterConfig   `koanf:"roster"`
	Workday  WorkdayConfig  `koanf:"workday"`
	Alerts   []AlertRule    `koanf:"alerts"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NATSConfig controls the event bus connection.
type NATSConfig struct {
	URL      string `koanf:"url"`
	Embedded bool   `koanf:"embedded"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host        string   `koanf:"host"`
	Port        int      `koanf:"port"`
	Username    string   `koanf:"username"`
	Password    Secret   `koanf:"password"`
	FromAddress string   `koanf:"from_address"`
	FromName    string   `koanf:"from_name"`
	StartTLS    bool     `koanf:"starttls"`
	Timeout     Duration `koanf:"timeout"`
}

// ReportConfig controls collection and dispatch of daily reports.
type ReportConfig struct {
	// Mode is one of realtime, manual, scheduled, auto.
	Mode string `koanf:"mode"`

	// GracePeriod is the quiet window after the last submission before an
	// automatic dispatch in auto mode.
	GracePeriod Duration `koanf:"grace_period"`

	// ExpectedHeadcount overrides the roster-derived headcount when > 0.
	ExpectedHeadcount int `koanf:"expected_headcount"`

	StoragePath   string `koanf:"storage_path"`
	SubjectPrefix string `koanf:"subject_prefix"`

	Recipients []string `koanf:"recipients"`
	Cc         []string `koanf:"cc"`
	Bcc        []string `koanf:"bcc"`

	// Clock times in 15:04 form, local time. Empty disables the job.
	ScheduleTime string `koanf:"schedule_time"`
	ReminderTime string `koanf:"reminder_time"`
	CatchupTime  string `koanf:"catchup_time"`

	// ChatID is the group that reminders and command replies go to.
	ChatID string `koanf:"chat_id"`
}

// VacationConfig controls the vacation store.
type VacationConfig struct {
	Path string `koanf:"path"`
}

// RosterConfig controls the membership list.
type RosterConfig struct {
	Path      string   `koanf:"path"`
	Required  []string `koanf:"required"`
	Protected []string `koanf:"protected"`
	Watch     bool     `koanf:"watch"`
}

// WorkdayConfig controls holiday lookups.
type WorkdayConfig struct {
	APIBaseURL    string   `koanf:"api_base_url"`
	CachePath     string   `koanf:"cache_path"`
	Holidays      []string `koanf:"holidays"`
	ExtraWorkdays []string `koanf:"extra_workdays"`
}

// AlertRule maps message keywords to escalation recipients.
type AlertRule struct {
	Name       string   `koanf:"name"`
	Keywords   []string `koanf:"keywords"`
	Recipients []string `koanf:"recipients"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Report.Mode {
	case "realtime", "manual", "scheduled", "auto":
	default:
		return fmt.Errorf("invalid report mode: %q", c.Report.Mode)
	}
	if c.Report.GracePeriod.Duration() <= 0 {
		return errors.New("grace period must be positive")
	}
	if c.Report.StoragePath == "" {
		return errors.New("report storage path is required")
	}
	for _, field := range []struct {
		name, value string
	}{
		{"schedule_time", c.Report.ScheduleTime},
		{"reminder_time", c.Report.ReminderTime},
		{"catchup_time", c.Report.CatchupTime},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.Parse("15:04", field.value); err != nil {
			return fmt.Errorf("invalid %s: %q (expected HH:MM)", field.name, field.value)
		}
	}

	if c.SMTP.Host != "" {
		if c.SMTP.FromAddress == "" {
			return errors.New("smtp from_address is required when smtp host is set")
		}
		if len(c.Report.Recipients) == 0 {
			return errors.New("report recipients are required when smtp host is set")
		}
	}

	if len(c.Alerts) > 0 && c.SMTP.Host == "" {
		return errors.New("alert rules require smtp to be configured")
	}
	for i, rule := range c.Alerts {
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("alert rule %d has no keywords", i)
		}
		if len(rule.Recipients) == 0 {
			return fmt.Errorf("alert rule %d has no recipients", i)
		}
	}
	return nil
}
