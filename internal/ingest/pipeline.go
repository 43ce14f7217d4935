package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scriptorium/internal/actions"
	"scriptorium/internal/config"
	"scriptorium/internal/logging"
	"scriptorium/internal/notifications"
	"scriptorium/internal/queue"
	"scriptorium/internal/services"
	"scriptorium/internal/timespan"
)

// OnImportAction describes the action enqueued after a successful import.
// Delay uses the timespan grammar; empty means run at the next tick.
type OnImportAction struct {
	Action     string
	Parameters map[string]string
	Delay      string
}

// DuplicateError reports an import of an identifier that is already
// registered. Existing is the stored work.
type DuplicateError struct {
	Existing *queue.Work
}

func (e *DuplicateError) Error() string {
	if e == nil || e.Existing == nil {
		return "work already exists"
	}
	return fmt.Sprintf("work already exists: %s", e.Existing.ID)
}

// ErrorKind implements services.ErrorClassifier.
func (e *DuplicateError) ErrorKind() string {
	return string(services.KindWorkExists)
}

// Is lets errors.Is match services.ErrWorkExists.
func (e *DuplicateError) Is(target error) bool {
	return target == services.ErrWorkExists
}

// Pipeline registers works and enqueues their post-import action.
type Pipeline struct {
	store    WorkStore
	checker  *Checker
	registry *actions.Registry
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline wires a pipeline. registry may be nil when no post-import
// actions are used; notifier and logger default to no-ops.
func NewPipeline(store WorkStore, registry *actions.Registry, notifier notifications.Service, logger *slog.Logger) *Pipeline {
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	return &Pipeline{
		store:    store,
		checker:  NewChecker(store),
		registry: registry,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		now:      time.Now,
	}
}

// SetClock overrides the time source used to compute scheduled times.
func (p *Pipeline) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Checker returns the duplicate checker used by the pipeline.
func (p *Pipeline) Checker() *Checker {
	return p.checker
}

// Import registers candidate. An already registered identifier fails with a
// *DuplicateError carrying the stored work and nothing is written. When
// onImport is non-nil its delay and action name are validated before the
// work is saved, then a pending record is enqueued at now + delay.
func (p *Pipeline) Import(ctx context.Context, candidate *queue.Work, onImport *OnImportAction) (*queue.Work, error) {
	var delay time.Duration
	if onImport != nil {
		var err error
		if delay, err = p.validateOnImport(onImport); err != nil {
			return nil, err
		}
	}

	existing, err := p.checker.Check(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicateError{Existing: existing}
	}

	work, err := p.store.SaveWork(ctx, candidate)
	if err != nil {
		if errors.Is(err, queue.ErrDuplicateWork) {
			// Lost a race with a concurrent import of the same id.
			if existing, findErr := p.checker.Check(ctx, candidate); findErr == nil && existing != nil {
				return nil, &DuplicateError{Existing: existing}
			}
			return nil, &DuplicateError{Existing: &queue.Work{ID: candidate.ID}}
		}
		return nil, err
	}

	ctx = services.WithWorkID(ctx, work.ID)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("work imported",
		logging.String(logging.FieldEventType, "work_imported"),
		logging.String("title", work.Title),
	)

	payload := notifications.Payload{"work_id": work.ID, "title": work.Title}
	if onImport != nil {
		record, err := p.store.SaveAction(ctx, &queue.ActionRecord{
			WorkID:      work.ID,
			Action:      strings.TrimSpace(onImport.Action),
			Parameters:  onImport.Parameters,
			ScheduledAt: p.now().Add(delay),
		})
		if err != nil {
			return work, fmt.Errorf("enqueue post-import action for %s: %w", work.ID, err)
		}
		payload["action"] = record.Action
		logger.Info("post-import action enqueued",
			logging.String(logging.FieldEventType, "action_enqueued"),
			logging.Int64(logging.FieldActionID, record.ID),
			logging.String(logging.FieldAction, record.Action),
			logging.Time("scheduled_at", record.ScheduledAt),
		)
	}

	if err := p.notifier.Publish(ctx, notifications.EventWorkImported, payload); err != nil {
		logging.WarnWithContext(logger, "import notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy_topic and nats_url settings"),
		)
	}
	return work, nil
}

func (p *Pipeline) validateOnImport(onImport *OnImportAction) (time.Duration, error) {
	var delay time.Duration
	if span := strings.TrimSpace(onImport.Delay); span != "" {
		d, err := timespan.Duration(span)
		if err != nil {
			return 0, fmt.Errorf("post-import delay: %w", err)
		}
		delay = d
	}
	name := strings.TrimSpace(onImport.Action)
	if name == "" {
		return 0, services.Wrap(services.ErrValidation, "ingest", "import", "post-import action name is required", nil)
	}
	if p.registry != nil {
		if _, err := p.registry.Resolve(name); err != nil {
			return 0, err
		}
	}
	return delay, nil
}

// OnImportFromConfig builds the configured post-import action, or nil when
// none is configured. Parameters are parsed against the executor's declared
// keys.
func OnImportFromConfig(cfg *config.Config, registry *actions.Registry) (*OnImportAction, error) {
	if cfg == nil || !cfg.ImportEnabled() {
		return nil, nil
	}
	name := strings.TrimSpace(cfg.Import.Action)
	executor, err := registry.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("import.action: %w", err)
	}
	params, err := actions.ParseParameters(executor, cfg.Import.Parameters)
	if err != nil {
		return nil, fmt.Errorf("import.parameters: %w", err)
	}
	return &OnImportAction{
		Action:     name,
		Parameters: params,
		Delay:      cfg.Import.Delay,
	}, nil
}
