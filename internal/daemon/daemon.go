package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scriptorium/internal/config"
	"scriptorium/internal/ingest"
	"scriptorium/internal/logging"
	"scriptorium/internal/notifications"
	"scriptorium/internal/queue"
	"scriptorium/internal/workflow"
)

// RestartReason is recorded on records a previous daemon left running.
const RestartReason = "interrupted: daemon restarted"

// startupResetTimeout bounds the interrupted-record sweep at startup, which
// runs to completion even if shutdown is requested meanwhile.
const startupResetTimeout = 30 * time.Second

// ErrAlreadyRunning reports that another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another scriptorium daemon instance is already running")

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	scheduler *workflow.Scheduler
	pipeline  *ingest.Pipeline
	notifier  notifications.Service
	logPath   string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt atomic.Int64
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                   `json:"running"`
	StartedAt    time.Time              `json:"started_at,omitzero"`
	Scheduler    workflow.StatusSummary `json:"scheduler"`
	QueueDBPath  string                 `json:"queue_db_path"`
	LockFilePath string                 `json:"lock_file_path"`
	LogPath      string                 `json:"log_path,omitempty"`
}

// Options carries the collaborators a daemon coordinates.
type Options struct {
	Store     *queue.Store
	Scheduler *workflow.Scheduler
	Pipeline  *ingest.Pipeline
	Notifier  notifications.Service
	Logger    *slog.Logger
	LogPath   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil || opts.Store == nil || opts.Scheduler == nil || opts.Pipeline == nil {
		return nil, errors.New("daemon requires config, store, scheduler, and import pipeline")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(opts.Logger, "daemon"),
		store:     opts.Store,
		scheduler: opts.Scheduler,
		pipeline:  opts.Pipeline,
		notifier:  notifier,
		logPath:   opts.LogPath,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, fails records a previous instance left
// running, and launches the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), startupResetTimeout)
	ids, err := d.store.ResetStuck(resetCtx, RestartReason)
	cancel()
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset interrupted records: %w", err)
	}
	if len(ids) > 0 {
		logging.WarnWithContext(d.logger, "failed records interrupted by previous daemon", "records_interrupted",
			logging.Int("count", len(ids)),
			logging.Any("action_ids", ids),
			logging.String(logging.FieldErrorHint, "use 'scriptorium actions retry' to run them again"),
		)
	}

	if err := d.scheduler.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}

	d.startedAt.Store(time.Now().UnixNano())
	d.running.Store(true)
	d.logger.Info("scriptorium daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.scheduler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("scriptorium daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.notifier != nil {
		errs = append(errs, d.notifier.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// Import registers a work through the import pipeline using the configured
// post-import action.
func (d *Daemon) Import(ctx context.Context, candidate *queue.Work, onImport *ingest.OnImportAction) (*queue.Work, error) {
	return d.pipeline.Import(ctx, candidate, onImport)
}

// RetryFailed enqueues fresh copies of failed records (optionally a subset).
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) ([]*queue.ActionRecord, error) {
	return d.store.RetryFailed(ctx, time.Now(), ids...)
}

// CancelPending cancels the given pending records.
func (d *Daemon) CancelPending(ctx context.Context, ids []int64) (int64, error) {
	return d.store.CancelPending(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification publishes a test event through the configured backends.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" && d.cfg.Notifications.NATSURL == "" {
		return false, "no notification backend configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, notifications.Payload{"source": "daemon"}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Scheduler:    d.scheduler.Status(ctx),
		QueueDBPath:  d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
	}
	if status.Running {
		status.StartedAt = time.Unix(0, d.startedAt.Load())
	}
	return status
}
