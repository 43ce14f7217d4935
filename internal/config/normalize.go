package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	envNATSURL   = "SCRIPTORIUM_NATS_URL"
	envNtfyTopic = "SCRIPTORIUM_NTFY_TOPIC"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeImport()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	c.Scheduler.TickInterval = strings.TrimSpace(c.Scheduler.TickInterval)
	if c.Scheduler.TickInterval == "" {
		c.Scheduler.TickInterval = defaultTickInterval
	}
	c.Scheduler.HeartbeatInterval = strings.TrimSpace(c.Scheduler.HeartbeatInterval)
	if c.Scheduler.HeartbeatInterval == "" {
		c.Scheduler.HeartbeatInterval = defaultHeartbeatInterval
	}
	c.Scheduler.HeartbeatTimeout = strings.TrimSpace(c.Scheduler.HeartbeatTimeout)
	if c.Scheduler.HeartbeatTimeout == "" {
		c.Scheduler.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	c.Scheduler.ExecutionTimeout = strings.TrimSpace(c.Scheduler.ExecutionTimeout)
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = defaultWorkers
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = defaultBatchSize
	}
}

func (c *Config) normalizeImport() {
	c.Import.Action = strings.TrimSpace(c.Import.Action)
	c.Import.Parameters = strings.TrimSpace(c.Import.Parameters)
	c.Import.Delay = strings.TrimSpace(c.Import.Delay)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.NATSURL = strings.TrimSpace(c.Notifications.NATSURL)
	if c.Notifications.NATSURL == "" {
		if value, ok := os.LookupEnv(envNATSURL); ok {
			c.Notifications.NATSURL = strings.TrimSpace(value)
		}
	}
	c.Notifications.NATSSubject = strings.TrimSpace(c.Notifications.NATSSubject)
	if c.Notifications.NATSSubject == "" {
		c.Notifications.NATSSubject = defaultNATSSubject
	}
	c.Notifications.RequestTimeout = strings.TrimSpace(c.Notifications.RequestTimeout)
	if c.Notifications.RequestTimeout == "" {
		c.Notifications.RequestTimeout = defaultNotificationRequestLimit
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "text":
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		level = defaultLogLevel
	case "warning":
		level = "warn"
	}
	c.Logging.Level = level
}
