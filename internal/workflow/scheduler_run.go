package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"scriptorium/internal/logging"
)

// Start begins ticking. Each tick runs one dispatch cycle; a tick that fires
// while the previous cycle is still dispatching is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.opts.TickInterval <= 0 {
		return errors.New("scheduler tick interval must be positive")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLogger := logging.CronLogger(s.logger)
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	schedule := fmt.Sprintf("@every %s", s.opts.TickInterval)
	if _, err := c.AddFunc(schedule, func() { s.tick(runCtx) }); err != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("schedule dispatch %q: %w", schedule, err)
	}

	s.cancel = cancel
	s.cron = c
	s.running = true
	s.mu.Unlock()

	c.Start()
	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "scheduler_started"),
		logging.Duration("tick_interval", s.opts.TickInterval),
		logging.Int("workers", s.opts.Workers),
		logging.Int("batch_size", s.opts.BatchSize),
	)
	return nil
}

// Stop halts ticking, cancels in-flight executions, and waits for them to
// record their outcome.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	c := s.cron
	s.running = false
	s.cancel = nil
	s.cron = nil
	s.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	s.tasks.Wait()
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stopped"))
}

// Wait blocks until every claimed record has finished executing.
func (s *Scheduler) Wait() {
	s.tasks.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Dispatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(s.logger, "dispatch cycle failed; retrying next tick", "dispatch_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
}

// Dispatch runs one cycle and returns how many records it claimed. Claimed
// records execute asynchronously; use Wait to block until they finish. A
// storage error while selecting records aborts the cycle and is returned.
// Errors on individual records are logged and never stop the cycle.
func (s *Scheduler) Dispatch(ctx context.Context) (int, error) {
	if _, err := s.heartbeat.ReclaimStale(ctx); err != nil {
		logging.WarnWithContext(s.logger, "reclaim stale records failed; stuck records may remain", "heartbeat_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}

	due, err := s.store.FindDueActions(ctx, s.now(), s.opts.BatchSize)
	if err != nil {
		s.setLastError(err)
		return 0, fmt.Errorf("find due actions: %w", err)
	}

	claimed := 0
	for _, record := range due {
		if !s.acquire(ctx) {
			return claimed, ctx.Err()
		}
		ok, err := s.claim(ctx, record)
		if err != nil || !ok {
			s.release()
			if err != nil {
				s.setLastError(err)
				logging.ErrorWithContext(s.logger, "claim failed", "claim_failed",
					logging.Int64(logging.FieldActionID, record.ID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
			continue
		}
		claimed++
		s.tasks.Add(1)
		go s.execute(ctx, record)
	}
	if claimed > 0 {
		s.logger.Debug("dispatch cycle claimed records",
			logging.Int("due", len(due)),
			logging.Int("claimed", claimed),
		)
	}
	return claimed, nil
}
