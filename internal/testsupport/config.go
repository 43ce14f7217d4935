package testsupport

import (
	"path/filepath"
	"testing"

	"scriptorium/internal/config"
)

// ConfigOption adjusts the generated test configuration before validation.
type ConfigOption func(*config.Config)

// NewConfig returns a validated config rooted in a fresh temp directory, with
// second-scale scheduler intervals so daemon tests settle quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Scheduler.TickInterval = "1s"
	cfg.Scheduler.HeartbeatInterval = "1s"
	cfg.Scheduler.HeartbeatTimeout = "30s"

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithWorkers sets the scheduler pool size.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.Workers = n
	}
}

// WithBatchSize sets how many due records one dispatch cycle considers.
func WithBatchSize(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.BatchSize = n
	}
}

// WithExecutionTimeout sets the per-invocation deadline.
func WithExecutionTimeout(span string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.ExecutionTimeout = span
	}
}

// WithImportAction configures the post-import action.
func WithImportAction(action, parameters, delay string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Import = config.Import{Action: action, Parameters: parameters, Delay: delay}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
