package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scriptorium/internal/actions"
	"scriptorium/internal/logging"
	"scriptorium/internal/notifications"
	"scriptorium/internal/queue"
	"scriptorium/internal/services"
)

// persistTimeout bounds outcome writes, which outlive the dispatch context so
// a stopping scheduler still records what happened.
const persistTimeout = 10 * time.Second

func (s *Scheduler) claim(ctx context.Context, record *queue.ActionRecord) (bool, error) {
	record.CorrelationID = uuid.NewString()
	ok, err := s.store.CompareAndSetStatus(ctx, record, queue.StatusPending, queue.StatusRunning)
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.Debug("claim lost to another dispatcher", logging.Int64(logging.FieldActionID, record.ID))
	}
	return ok, nil
}

func (s *Scheduler) execute(ctx context.Context, record *queue.ActionRecord) {
	defer s.tasks.Done()
	defer s.release()

	ctx = services.WithActionID(ctx, record.ID)
	ctx = services.WithWorkID(ctx, record.WorkID)
	ctx = services.WithAction(ctx, record.Action)
	ctx = services.WithRequestID(ctx, record.CorrelationID)
	logger := logging.WithContext(ctx, s.logger)

	s.recordStarted(record)
	logger.Info("action started",
		logging.String(logging.FieldEventType, "action_start"),
		logging.Time("scheduled_at", record.ScheduledAt),
	)
	start := time.Now()

	executor, err := s.registry.Resolve(record.Action)
	if err != nil {
		s.finish(ctx, logger, record, nil, "", err)
		return
	}

	work, err := s.store.FindWork(ctx, record.WorkID)
	if err == nil && work == nil {
		err = services.Wrap(services.ErrNotFound, "scheduler", "load work", record.WorkID, nil)
	}
	if err != nil {
		s.finish(ctx, logger, record, nil, "", err)
		return
	}

	result, err := s.perform(ctx, executor, work, record)
	s.finish(ctx, logger, record, work, result, err)
	logger.Debug("action finished", logging.Duration("duration", time.Since(start)))
}

// perform runs the executor under the heartbeat loop and the optional
// execution deadline. Panics are converted to execution failures.
func (s *Scheduler) perform(ctx context.Context, executor actions.Executor, work *queue.Work, record *queue.ActionRecord) (result string, err error) {
	execCtx := ctx
	if s.opts.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.opts.ExecutionTimeout)
		defer cancel()
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go s.heartbeat.StartLoop(hbCtx, &hbWG, record.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrExecutionFailed, record.Action, "perform", fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	params := record.Parameters
	if params == nil {
		params = map[string]string{}
	}
	result, err = executor.Perform(execCtx, work, params)
	if s.opts.ExecutionTimeout > 0 && ctx.Err() == nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, record.Action, "perform",
			fmt.Sprintf("timed out after %s", s.opts.ExecutionTimeout), err)
	}
	return result, err
}

func (s *Scheduler) finish(ctx context.Context, logger *slog.Logger, record *queue.ActionRecord, work *queue.Work, result string, execErr error) {
	switch {
	case execErr == nil:
		record.Status = queue.StatusSucceeded
		record.Result = result
		record.ErrorKind = ""
	case ctx.Err() != nil:
		record.Status = queue.StatusFailed
		record.Result = queue.DaemonStopReason
		record.ErrorKind = string(services.KindExecutionFailed)
	default:
		record.Status = queue.StatusFailed
		record.Result = failureText(execErr)
		record.ErrorKind = string(failureKind(execErr))
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if _, err := s.store.SaveAction(persistCtx, record); err != nil {
		s.setLastError(err)
		if errors.Is(err, queue.ErrInvalidTransition) {
			logging.WarnWithContext(logger, "action outcome discarded; record no longer running", "outcome_discarded",
				logging.String("status", string(record.Status)),
				logging.String(logging.FieldErrorHint, "the record was reclaimed after its heartbeat expired"),
			)
		} else {
			logging.ErrorWithContext(logger, "failed to persist action outcome", "outcome_persist_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	s.recordFinished(record)

	if record.Status == queue.StatusSucceeded {
		logger.Info("action succeeded",
			logging.String(logging.FieldEventType, "action_succeeded"),
			logging.String("result", record.Result),
		)
	} else {
		s.setLastError(execErr)
		logging.WarnWithContext(logger, "action failed", "action_failed",
			logging.String(logging.FieldErrorKind, record.ErrorKind),
			logging.String("result", record.Result),
			logging.String(logging.FieldErrorHint, hintForKind(services.Kind(record.ErrorKind))),
		)
	}
	s.notifyOutcome(persistCtx, logger, record, work)
}

func (s *Scheduler) notifyOutcome(ctx context.Context, logger *slog.Logger, record *queue.ActionRecord, work *queue.Work) {
	event := notifications.EventActionSucceeded
	if record.Status != queue.StatusSucceeded {
		event = notifications.EventActionFailed
	}
	payload := notifications.Payload{
		"action_id": record.ID,
		"work_id":   record.WorkID,
		"action":    record.Action,
		"result":    record.Result,
	}
	if work != nil && work.Title != "" {
		payload["title"] = work.Title
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logger.Warn("outcome notification failed", logging.Error(err))
	}
}

func failureText(err error) string {
	if err == nil {
		return ""
	}
	text := strings.TrimSpace(err.Error())
	if text == "" {
		return "failed without error detail"
	}
	return text
}

// failureKind maps an executor error onto the taxonomy. Errors that carry no
// kind are execution failures.
func failureKind(err error) services.Kind {
	kind := services.KindOf(err)
	if kind == "" || kind == services.KindUnknown {
		return services.KindExecutionFailed
	}
	return kind
}

func hintForKind(kind services.Kind) string {
	switch kind {
	case services.KindUnknownAction:
		return "register the action or cancel the record"
	case services.KindTimeout:
		return "raise scheduler.execution_timeout or investigate the slow executor"
	case services.KindNotFound:
		return "the target work is missing from the queue database"
	case services.KindStorageUnavailable:
		return "check queue database access"
	default:
		return "inspect the record result and retry with 'scriptorium actions retry'"
	}
}
