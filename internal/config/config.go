package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"scriptorium/internal/timespan"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Scheduler contains dispatch loop cadence and pool sizing. Interval fields
// use the timespan grammar.
type Scheduler struct {
	TickInterval      string `toml:"tick_interval"`
	Workers           int    `toml:"workers"`
	BatchSize         int    `toml:"batch_size"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	HeartbeatTimeout  string `toml:"heartbeat_timeout"`
	// ExecutionTimeout bounds a single executor invocation. Empty disables it.
	ExecutionTimeout string `toml:"execution_timeout"`
}

// Import describes the action enqueued after every successful import.
type Import struct {
	Action     string `toml:"action"`
	Parameters string `toml:"parameters"`
	Delay      string `toml:"delay"`
}

// Notifications contains configuration for ntfy and NATS event delivery.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	NATSURL        string `toml:"nats_url"`
	NATSSubject    string `toml:"nats_subject"`
	RequestTimeout string `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Scriptorium.
//
// Configuration sections by subsystem:
//   - Paths: queue database and log directories
//   - Scheduler: tick cadence, worker pool, heartbeats, execution deadline
//   - Import: optional post-import action
//   - Notifications: ntfy topic and NATS publisher
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Import        Import        `toml:"import"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory or
// next to the config file is loaded first so environment fallbacks can see it.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(filepath.Dir(resolvedPath))

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv loads the first .env file found. Variables already present in
// the environment are never overridden.
func loadDotEnv(configDir string) {
	candidates := []string{".env"}
	if configDir != "" && configDir != "." {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scriptorium.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the SQLite queue database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scriptorium.lock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "scriptorium.pid")
}

// TickInterval returns the scheduler dispatch cadence.
func (c *Config) TickInterval() time.Duration {
	return durationOrZero(c.Scheduler.TickInterval)
}

// HeartbeatInterval returns how often running records refresh their heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return durationOrZero(c.Scheduler.HeartbeatInterval)
}

// HeartbeatTimeout returns the age after which a running record is considered stale.
func (c *Config) HeartbeatTimeout() time.Duration {
	return durationOrZero(c.Scheduler.HeartbeatTimeout)
}

// ExecutionTimeout returns the per-invocation deadline, or zero when disabled.
func (c *Config) ExecutionTimeout() time.Duration {
	return durationOrZero(c.Scheduler.ExecutionTimeout)
}

// NotificationTimeout returns the per-request timeout for notification backends.
func (c *Config) NotificationTimeout() time.Duration {
	return durationOrZero(c.Notifications.RequestTimeout)
}

// ImportEnabled reports whether a post-import action is configured.
func (c *Config) ImportEnabled() bool {
	return strings.TrimSpace(c.Import.Action) != ""
}

// durationOrZero is only used on values Validate has already accepted.
func durationOrZero(value string) time.Duration {
	if strings.TrimSpace(value) == "" {
		return 0
	}
	d, err := timespan.Duration(value)
	if err != nil {
		return 0
	}
	return d
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
