package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"scriptorium/internal/actions"
	"scriptorium/internal/config"
	"scriptorium/internal/ingest"
	"scriptorium/internal/logging"
	"scriptorium/internal/notifications"
	"scriptorium/internal/queue"
)

// Store is the storage capability the scheduler needs. queue.Store
// implements it.
type Store interface {
	ingest.WorkStore
	heartbeatStore
	Stats(ctx context.Context) (map[queue.Status]int, error)
}

// Options tunes the dispatch loop.
type Options struct {
	TickInterval      time.Duration
	Workers           int
	BatchSize         int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	// ExecutionTimeout bounds each Perform call. Zero disables it.
	ExecutionTimeout time.Duration
}

// OptionsFromConfig extracts scheduler options from validated configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TickInterval:      cfg.TickInterval(),
		Workers:           cfg.Scheduler.Workers,
		BatchSize:         cfg.Scheduler.BatchSize,
		HeartbeatInterval: cfg.HeartbeatInterval(),
		HeartbeatTimeout:  cfg.HeartbeatTimeout(),
		ExecutionTimeout:  cfg.ExecutionTimeout(),
	}
}

// Scheduler runs the periodic dispatch loop over a bounded worker pool.
type Scheduler struct {
	store    Store
	registry *actions.Registry
	notifier notifications.Service
	logger   *slog.Logger
	opts     Options

	heartbeat *HeartbeatMonitor
	slots     chan struct{}
	tasks     sync.WaitGroup
	now       func() time.Time

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	cron       *cron.Cron
	lastErr    error
	lastRecord *queue.ActionRecord
	counters   Counters
}

// New constructs a scheduler. notifier and logger default to no-ops.
func New(store Store, registry *actions.Registry, notifier notifications.Service, logger *slog.Logger, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = opts.Workers
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	logger = logging.NewComponentLogger(logger, "scheduler")
	return &Scheduler{
		store:     store,
		registry:  registry,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
		heartbeat: NewHeartbeatMonitor(store, logger, opts.HeartbeatInterval, opts.HeartbeatTimeout),
		slots:     make(chan struct{}, opts.Workers),
		now:       time.Now,
	}
}

// SetClock overrides the time source used to select due records.
func (s *Scheduler) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.now = now
	s.heartbeat.now = now
}

func (s *Scheduler) acquire(ctx context.Context) bool {
	select {
	case s.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) release() {
	<-s.slots
}
