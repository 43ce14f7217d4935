package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"scriptorium/internal/actions"
	"scriptorium/internal/config"
	"scriptorium/internal/daemon"
	"scriptorium/internal/ingest"
	"scriptorium/internal/logging"
	"scriptorium/internal/notifications"
	"scriptorium/internal/preflight"
	"scriptorium/internal/queue"
	"scriptorium/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Register adds executors beyond the built-ins before the scheduler starts.
	Register func(*actions.Registry, notifications.Service) error
}

// Run starts the scriptorium daemon runtime loop and blocks until the context
// is cancelled or SIGINT/SIGTERM arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := logging.DaemonLogPath(cfg.Paths.LogDir, time.Now())
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		SessionID:   uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update scriptoriumd.log link: %v\n", err)
	}
	if removed := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.DaemonRetentionTarget(cfg.Paths.LogDir, logPath),
	); removed > 0 {
		logger.Info("pruned old daemon logs", logging.Int("removed", removed))
	}
	logPreflight(signalCtx, logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open queue store failed", "queue_open_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check data_dir permissions and database file"),
		)
		return err
	}

	notifier, err := notifications.NewService(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "notifications disabled", "notifications_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy_topic and nats_url settings"),
			logging.String(logging.FieldImpact, "imports and action outcomes will not be announced"),
		)
		notifier = notifications.NewNoop()
	}

	registry := actions.NewRegistry()
	if err := actions.RegisterBuiltins(registry, notifier); err != nil {
		_ = store.Close()
		return fmt.Errorf("register builtin actions: %w", err)
	}
	if opts.Register != nil {
		if err := opts.Register(registry, notifier); err != nil {
			_ = store.Close()
			return fmt.Errorf("register actions: %w", err)
		}
	}

	scheduler := workflow.New(store, registry, notifier, logger, workflow.OptionsFromConfig(cfg))
	pipeline := ingest.NewPipeline(store, registry, notifier, logger)

	d, err := daemon.New(cfg, daemon.Options{
		Store:     store,
		Scheduler: scheduler,
		Pipeline:  pipeline,
		Notifier:  notifier,
		Logger:    logger,
		LogPath:   logPath,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon shutdown incomplete", logging.Error(err))
		}
	}()

	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return err
		}
		if signalCtx.Err() != nil {
			logger.Info("scriptorium daemon interrupted during startup", logging.Error(err))
			return nil
		}
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "daemon will not dispatch actions"),
		)
		return err
	}

	logger.Info("scriptorium daemon running",
		logging.String("queue_db", cfg.DatabasePath()),
		logging.Any("actions", registry.Names()),
	)
	<-signalCtx.Done()
	logger.Info("scriptorium daemon shutting down")
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'scriptorium status' for details"),
		)
	}
	logger.Info("preflight complete",
		logging.String(logging.FieldEventType, "preflight_complete"),
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
	)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logging.CurrentDaemonLogPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon, or 0 when no pid
// file exists.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
