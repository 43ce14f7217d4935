package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"scriptorium/internal/logging"
)

type heartbeatStore interface {
	UpdateHeartbeat(ctx context.Context, id int64) error
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// HeartbeatMonitor refreshes heartbeats of running records and reclaims
// records whose heartbeat stopped.
type HeartbeatMonitor struct {
	store    heartbeatStore
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store heartbeatStore, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")),
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// ReclaimStale fails running records whose last heartbeat is older than the
// timeout and returns their ids.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) ([]int64, error) {
	if h == nil || h.timeout <= 0 {
		return nil, nil
	}
	ids, err := h.store.ReclaimStale(ctx, h.now().Add(-h.timeout))
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		logging.WarnWithContext(h.logger, "reclaimed stale action records", "heartbeat_reclaimed",
			logging.Int("count", len(ids)),
			logging.Any("action_ids", ids),
			logging.String(logging.FieldErrorHint, "an executor stopped reporting; check for crashed or hung workers"),
		)
	}
	return ids, nil
}

// StartLoop refreshes the heartbeat of actionID until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, actionID int64) {
	defer wg.Done()
	if h == nil || h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, actionID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
