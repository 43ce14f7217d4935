package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scriptorium/internal/actions"
	"scriptorium/internal/ingest"
	"scriptorium/internal/notifications"
	"scriptorium/internal/queue"
	"scriptorium/internal/services"
	"scriptorium/internal/testsupport"
	"scriptorium/internal/timespan"
)

func newPipeline(t *testing.T) (*ingest.Pipeline, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry := actions.NewRegistry()
	if err := actions.RegisterBuiltins(registry, nil); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return ingest.NewPipeline(store, registry, nil, nil), store
}

func TestImportTwiceReportsDuplicate(t *testing.T) {
	pipeline, store := newPipeline(t)
	ctx := context.Background()

	first, err := pipeline.Import(ctx, &queue.Work{ID: "ms-1", Title: "Gradual"}, nil)
	if err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	_, err = pipeline.Import(ctx, &queue.Work{ID: "ms-1", Title: "Other"}, nil)
	var dup *ingest.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.Existing == nil || dup.Existing.ID != first.ID || dup.Existing.Title != "Gradual" {
		t.Fatalf("duplicate must carry the first work, got %#v", dup.Existing)
	}
	if !errors.Is(err, services.ErrWorkExists) {
		t.Fatal("expected errors.Is to match ErrWorkExists")
	}
	if services.ExitCode(err) != 3 {
		t.Fatalf("expected exit code 3, got %d", services.ExitCode(err))
	}

	works, err := store.ListWorks(ctx, 0)
	if err != nil {
		t.Fatalf("ListWorks: %v", err)
	}
	if len(works) != 1 {
		t.Fatalf("expected exactly one stored work, got %d", len(works))
	}
}

func TestConcurrentImportsOfSameID(t *testing.T) {
	pipeline, store := newPipeline(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dups      int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pipeline.Import(ctx, &queue.Work{ID: "race"}, nil)
			mu.Lock()
			defer mu.Unlock()
			var dup *ingest.DuplicateError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &dup):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || dups != attempts-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d/%d", attempts-1, succeeded, dups)
	}
	count, err := store.CountWorks(ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected one stored work, got %d (err=%v)", count, err)
	}
}

func TestImportEnqueuesDelayedAction(t *testing.T) {
	pipeline, store := newPipeline(t)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	pipeline.SetClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := pipeline.Import(ctx, &queue.Work{ID: "ms-2"}, &ingest.OnImportAction{
		Action:     actions.ValidateMetadataAction,
		Parameters: map[string]string{"require": "title"},
		Delay:      "2h",
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	records, err := store.ListActions(ctx, queue.ActionFilter{WorkID: "ms-2"})
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one enqueued record, got %d", len(records))
	}
	record := records[0]
	if record.Status != queue.StatusPending || record.Action != actions.ValidateMetadataAction {
		t.Fatalf("unexpected record %#v", record)
	}
	if want := now.Add(2 * time.Hour); !record.ScheduledAt.Equal(want) {
		t.Fatalf("expected scheduled_at %s, got %s", want, record.ScheduledAt)
	}
	if record.Parameters["require"] != "title" {
		t.Fatalf("unexpected parameters %#v", record.Parameters)
	}
}

func TestImportRejectsBadOnImportBeforeSaving(t *testing.T) {
	pipeline, store := newPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Import(ctx, &queue.Work{ID: "ms-3"}, &ingest.OnImportAction{Action: "noop", Delay: "1.5h"})
	if !errors.Is(err, timespan.ErrInvalidFormat) {
		t.Fatalf("expected invalid timespan, got %v", err)
	}
	if services.KindOf(err) != services.KindInvalidTimespan {
		t.Fatalf("unexpected kind %s", services.KindOf(err))
	}

	_, err = pipeline.Import(ctx, &queue.Work{ID: "ms-3"}, &ingest.OnImportAction{Action: "derive-jp2"})
	if !errors.Is(err, services.ErrUnknownAction) {
		t.Fatalf("expected unknown action, got %v", err)
	}

	if work, _ := store.FindWork(ctx, "ms-3"); work != nil {
		t.Fatal("work must not be saved when the post-import action is invalid")
	}
}

type failingStore struct {
	ingest.WorkStore
}

func (failingStore) FindWork(context.Context, string) (*queue.Work, error) {
	return nil, errors.New("disk I/O error")
}

func TestCheckSurfacesStorageFailure(t *testing.T) {
	checker := ingest.NewChecker(failingStore{})
	work, err := checker.Check(context.Background(), &queue.Work{ID: "ms-4"})
	if work != nil {
		t.Fatalf("expected no work, got %#v", work)
	}
	if !errors.Is(err, services.ErrStorageUnavailable) {
		t.Fatalf("expected storage_unavailable, got %v", err)
	}
	if services.ExitCode(err) != 4 {
		t.Fatalf("expected exit code 4, got %d", services.ExitCode(err))
	}

	pipeline := ingest.NewPipeline(failingStore{}, nil, nil, nil)
	if _, err := pipeline.Import(context.Background(), &queue.Work{ID: "ms-4"}, nil); !errors.Is(err, services.ErrStorageUnavailable) {
		t.Fatalf("expected import to propagate storage failure, got %v", err)
	}
}

func TestCheckValidatesCandidate(t *testing.T) {
	checker := ingest.NewChecker(failingStore{})
	if _, err := checker.Check(context.Background(), nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for nil candidate, got %v", err)
	}
	if _, err := checker.Check(context.Background(), &queue.Work{ID: " "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
}

func TestSimilarFindsNearDuplicateTitles(t *testing.T) {
	pipeline, store := newPipeline(t)
	ctx := context.Background()
	for _, work := range []*queue.Work{
		{ID: "a", Title: "Book of Hours, Use of Rome"},
		{ID: "b", Title: "Herbal"},
	} {
		if _, err := pipeline.Import(ctx, work, nil); err != nil {
			t.Fatalf("Import %s: %v", work.ID, err)
		}
	}

	matches, err := pipeline.Checker().Similar(ctx, store, &queue.Work{ID: "c", Title: "Book of Hours (Use of Rome)"}, 0)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(matches) != 1 || matches[0].Work.ID != "a" {
		t.Fatalf("expected match on work a, got %#v", matches)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return errors.New("offline")
}

func (r *recordingNotifier) Close() error { return nil }

func TestImportNotificationFailureDoesNotFailImport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	pipeline := ingest.NewPipeline(store, actions.NewRegistry(), notifier, nil)

	if _, err := pipeline.Import(context.Background(), &queue.Work{ID: "ms-5"}, nil); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventWorkImported {
		t.Fatalf("unexpected events %v", notifier.events)
	}
}

func TestOnImportFromConfig(t *testing.T) {
	registry := actions.NewRegistry()
	if err := actions.RegisterBuiltins(registry, nil); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	cfg := testsupport.NewConfig(t)
	if got, err := ingest.OnImportFromConfig(cfg, registry); err != nil || got != nil {
		t.Fatalf("expected nil without import.action, got %#v err=%v", got, err)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithImportAction("validate-metadata", "require:title,creator", "1d"))
	got, err := ingest.OnImportFromConfig(cfg, registry)
	if err != nil {
		t.Fatalf("OnImportFromConfig: %v", err)
	}
	if got.Action != "validate-metadata" || got.Delay != "1d" || got.Parameters["require"] != "title,creator" {
		t.Fatalf("unexpected on-import action %#v", got)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithImportAction("validate-metadata", "colour:red", ""))
	if _, err := ingest.OnImportFromConfig(cfg, registry); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
