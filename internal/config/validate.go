package config

import (
	"errors"
	"fmt"
	"strings"

	"scriptorium/internal/timespan"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if err := validateTimespan("scheduler.tick_interval", c.Scheduler.TickInterval); err != nil {
		return err
	}
	if err := validateTimespan("scheduler.heartbeat_interval", c.Scheduler.HeartbeatInterval); err != nil {
		return err
	}
	if err := validateTimespan("scheduler.heartbeat_timeout", c.Scheduler.HeartbeatTimeout); err != nil {
		return err
	}
	if c.Scheduler.ExecutionTimeout != "" {
		if err := validateTimespan("scheduler.execution_timeout", c.Scheduler.ExecutionTimeout); err != nil {
			return err
		}
	}
	if c.Scheduler.Workers < 1 {
		return errors.New("scheduler.workers must be at least 1")
	}
	if c.Scheduler.BatchSize < 1 {
		return errors.New("scheduler.batch_size must be at least 1")
	}
	if c.HeartbeatTimeout() <= c.HeartbeatInterval() {
		return errors.New("scheduler.heartbeat_timeout must be greater than scheduler.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Import.Action == "" {
		if c.Import.Parameters != "" || c.Import.Delay != "" {
			return errors.New("import.parameters and import.delay require import.action")
		}
		return nil
	}
	if c.Import.Delay != "" {
		if err := validateTimespan("import.delay", c.Import.Delay); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if err := validateTimespan("notifications.request_timeout", c.Notifications.RequestTimeout); err != nil {
		return err
	}
	if c.Notifications.NATSURL != "" && c.Notifications.NATSSubject == "" {
		return errors.New("notifications.nats_subject must be set when notifications.nats_url is configured")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be 0 or greater")
	}
	return nil
}

func validateTimespan(field, value string) error {
	if _, err := timespan.Parse(value); err != nil {
		return fmt.Errorf("%s: %w (use a whole number with an optional s, m, h, or d suffix)", field, err)
	}
	return nil
}
