package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scriptorium/internal/queue"
	"scriptorium/internal/services"
	"scriptorium/internal/testsupport"
)

func TestSaveAndFindWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	saved, err := store.SaveWork(ctx, &queue.Work{
		ID:       "  ms-0042 ",
		Title:    "Book of Hours",
		Metadata: map[string]string{"creator": "Unknown"},
	})
	if err != nil {
		t.Fatalf("SaveWork failed: %v", err)
	}
	if saved.ID != "ms-0042" {
		t.Fatalf("expected normalized id, got %q", saved.ID)
	}

	found, err := store.FindWork(ctx, "ms-0042")
	if err != nil {
		t.Fatalf("FindWork failed: %v", err)
	}
	if found == nil || found.Title != "Book of Hours" || found.Metadata["creator"] != "Unknown" {
		t.Fatalf("unexpected work %#v", found)
	}
	if found.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	missing, err := store.FindWork(ctx, "nope")
	if err != nil {
		t.Fatalf("FindWork(missing) failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing work, got %#v", missing)
	}
}

func TestSaveWorkRejectsDuplicateIdentifiers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewWork(t, store, "Codéx-1", "first")
	_, err := store.SaveWork(ctx, &queue.Work{ID: "Code\u0301x-1", Title: "second"})
	if !errors.Is(err, queue.ErrDuplicateWork) {
		t.Fatalf("expected ErrDuplicateWork for NFC-equivalent id, got %v", err)
	}
	works, err := store.ListWorks(ctx, 0)
	if err != nil {
		t.Fatalf("ListWorks failed: %v", err)
	}
	if len(works) != 1 || works[0].Title != "first" {
		t.Fatalf("expected exactly the first work, got %#v", works)
	}
}

func TestSaveWorkValidatesIdentifier(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.SaveWork(context.Background(), &queue.Work{ID: "has space"}); err == nil {
		t.Fatal("expected invalid identifier error")
	}
}

func TestEnqueueRequiresExistingWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.EnqueueAction(context.Background(), "ghost", "noop", nil, time.Now())
	if !errors.Is(err, queue.ErrWorkNotFound) {
		t.Fatalf("expected ErrWorkNotFound, got %v", err)
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not_found marker, got %v", err)
	}
}

func TestEnqueueRoundTripsParameters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")

	at := time.Date(2026, 5, 1, 12, 0, 0, 750_000_000, time.UTC)
	record := testsupport.Enqueue(t, store, "w1", "validate-metadata", map[string]string{"require": "title,creator"}, at)
	if record.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}

	fetched, err := store.GetAction(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetAction failed: %v", err)
	}
	if fetched.Parameters["require"] != "title,creator" {
		t.Fatalf("unexpected parameters %#v", fetched.Parameters)
	}
	if !fetched.ScheduledAt.Equal(at.Truncate(time.Second)) {
		t.Fatalf("expected scheduled_at truncated to seconds, got %s", fetched.ScheduledAt)
	}
	if fetched.Result != "" {
		t.Fatalf("expected no result before a terminal status, got %q", fetched.Result)
	}
}

func TestFindDueActionsOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := testsupport.Enqueue(t, store, "w1", "noop", nil, base.Add(2*time.Minute))
	firstSame := testsupport.Enqueue(t, store, "w1", "noop", nil, base)
	secondSame := testsupport.Enqueue(t, store, "w1", "noop", nil, base)
	future := testsupport.Enqueue(t, store, "w1", "noop", nil, base.Add(time.Hour))

	due, err := store.FindDueActions(ctx, base.Add(5*time.Minute), 0)
	if err != nil {
		t.Fatalf("FindDueActions failed: %v", err)
	}
	want := []int64{firstSame.ID, secondSame.ID, late.ID}
	if len(due) != len(want) {
		t.Fatalf("expected %d due records, got %d", len(want), len(due))
	}
	for i, id := range want {
		if due[i].ID != id {
			t.Fatalf("due[%d] = %d, want %d", i, due[i].ID, id)
		}
		if due[i].ID == future.ID {
			t.Fatal("future record must not be due")
		}
	}

	limited, err := store.FindDueActions(ctx, base.Add(5*time.Minute), 1)
	if err != nil {
		t.Fatalf("FindDueActions(limit) failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != firstSame.ID {
		t.Fatalf("unexpected limited result %#v", limited)
	}
}

func TestCompareAndSetStatusClaimsOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")
	record := testsupport.Enqueue(t, store, "w1", "noop", nil, time.Now())

	const contenders = 16
	var (
		wg    sync.WaitGroup
		wins  atomic.Int32
		start = make(chan struct{})
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copyRecord := *record
			<-start
			ok, err := store.CompareAndSetStatus(ctx, &copyRecord, queue.StatusPending, queue.StatusRunning)
			if err != nil {
				t.Errorf("CompareAndSetStatus failed: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one claim to win, got %d", wins.Load())
	}
	stored, err := store.GetAction(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetAction failed: %v", err)
	}
	if stored.Status != queue.StatusRunning || stored.StartedAt == nil || stored.LastHeartbeat == nil {
		t.Fatalf("unexpected claimed record %#v", stored)
	}
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")
	record := testsupport.Enqueue(t, store, "w1", "noop", nil, time.Now())

	if _, err := store.CompareAndSetStatus(ctx, record, queue.StatusPending, queue.StatusSucceeded); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected pending -> succeeded to be rejected, got %v", err)
	}
	// Finishing a record that is not running must not write anything.
	record.Status = queue.StatusSucceeded
	if _, err := store.SaveAction(ctx, record); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected save of non-running record to fail, got %v", err)
	}

	record.Status = queue.StatusPending
	if ok, err := store.CompareAndSetStatus(ctx, record, queue.StatusPending, queue.StatusRunning); err != nil || !ok {
		t.Fatalf("claim failed: ok=%v err=%v", ok, err)
	}
	record.Status = queue.StatusSucceeded
	record.Result = "done"
	if _, err := store.SaveAction(ctx, record); err != nil {
		t.Fatalf("SaveAction(succeeded) failed: %v", err)
	}

	record.Status = queue.StatusFailed
	if _, err := store.SaveAction(ctx, record); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected terminal record to stay terminal, got %v", err)
	}
	if ok, err := store.CompareAndSetStatus(ctx, record, queue.StatusRunning, queue.StatusFailed); err != nil || ok {
		t.Fatalf("expected CAS from stale running to lose, ok=%v err=%v", ok, err)
	}

	stored, err := store.GetAction(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetAction failed: %v", err)
	}
	if stored.Status != queue.StatusSucceeded || stored.Result != "done" || stored.FinishedAt == nil {
		t.Fatalf("unexpected terminal record %#v", stored)
	}
}

func TestCancelPendingSkipsRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")
	pending := testsupport.Enqueue(t, store, "w1", "noop", nil, time.Now())
	running := testsupport.Enqueue(t, store, "w1", "noop", nil, time.Now())
	if ok, err := store.CompareAndSetStatus(ctx, running, queue.StatusPending, queue.StatusRunning); err != nil || !ok {
		t.Fatalf("claim failed: ok=%v err=%v", ok, err)
	}

	cancelled, err := store.CancelPending(ctx, pending.ID, running.ID)
	if err != nil {
		t.Fatalf("CancelPending failed: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("expected 1 cancelled record, got %d", cancelled)
	}
	got, _ := store.GetAction(ctx, pending.ID)
	if got.Status != queue.StatusCancelled || got.Result != queue.CancelledResult {
		t.Fatalf("unexpected cancelled record %#v", got)
	}
	got, _ = store.GetAction(ctx, running.ID)
	if got.Status != queue.StatusRunning {
		t.Fatalf("running record must not be cancelled, got %s", got.Status)
	}
}

func TestRetryFailedCopiesOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")
	record := testsupport.Enqueue(t, store, "w1", "announce", map[string]string{"message": "hi"}, time.Now())
	if ok, err := store.CompareAndSetStatus(ctx, record, queue.StatusPending, queue.StatusRunning); err != nil || !ok {
		t.Fatalf("claim failed: ok=%v err=%v", ok, err)
	}
	record.Status = queue.StatusFailed
	record.Result = "boom"
	record.ErrorKind = string(services.KindExecutionFailed)
	if _, err := store.SaveAction(ctx, record); err != nil {
		t.Fatalf("SaveAction failed: %v", err)
	}

	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	retried, err := store.RetryFailed(ctx, now)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if len(retried) != 1 {
		t.Fatalf("expected one retry, got %d", len(retried))
	}
	copyRecord := retried[0]
	if copyRecord.RetryOf != record.ID || copyRecord.Status != queue.StatusPending || copyRecord.Parameters["message"] != "hi" {
		t.Fatalf("unexpected retry record %#v", copyRecord)
	}
	if !copyRecord.ScheduledAt.Equal(now) {
		t.Fatalf("expected retry scheduled at %s, got %s", now, copyRecord.ScheduledAt)
	}

	original, _ := store.GetAction(ctx, record.ID)
	if original.Status != queue.StatusFailed {
		t.Fatalf("original must stay failed, got %s", original.Status)
	}
	again, err := store.RetryFailed(ctx, now, record.ID)
	if err != nil {
		t.Fatalf("RetryFailed(again) failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected failed record to be retried only once, got %d", len(again))
	}
}

func TestReclaimStaleAndResetStuck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	clock := testsupport.FixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")

	stale := testsupport.Enqueue(t, store, "w1", "noop", nil, clock.Now())
	fresh := testsupport.Enqueue(t, store, "w1", "noop", nil, clock.Now())
	if ok, err := store.CompareAndSetStatus(ctx, stale, queue.StatusPending, queue.StatusRunning); err != nil || !ok {
		t.Fatalf("claim stale failed: ok=%v err=%v", ok, err)
	}
	clock.Advance(5 * time.Minute)
	if ok, err := store.CompareAndSetStatus(ctx, fresh, queue.StatusPending, queue.StatusRunning); err != nil || !ok {
		t.Fatalf("claim fresh failed: ok=%v err=%v", ok, err)
	}
	clock.Advance(30 * time.Second)
	if err := store.UpdateHeartbeat(ctx, fresh.ID); err != nil {
		t.Fatalf("UpdateHeartbeat failed: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, clock.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0] != stale.ID {
		t.Fatalf("expected only the stale record reclaimed, got %v", reclaimed)
	}
	got, _ := store.GetAction(ctx, stale.ID)
	if got.Status != queue.StatusFailed || got.Result != queue.HeartbeatExpiredResult || got.ErrorKind != string(services.KindTimeout) {
		t.Fatalf("unexpected reclaimed record %#v", got)
	}

	reset, err := store.ResetStuck(ctx, "")
	if err != nil {
		t.Fatalf("ResetStuck failed: %v", err)
	}
	if len(reset) != 1 || reset[0] != fresh.ID {
		t.Fatalf("expected fresh record reset, got %v", reset)
	}
}

func TestHealthAndCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")
	testsupport.NewWork(t, store, "w2", "")
	first := testsupport.Enqueue(t, store, "w1", "noop", nil, time.Now())
	testsupport.Enqueue(t, store, "w2", "noop", nil, time.Now())
	if _, err := store.CancelPending(ctx, first.ID); err != nil {
		t.Fatalf("CancelPending failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Works != 2 || health.Total != 2 || health.Pending != 1 || health.Cancelled != 1 {
		t.Fatalf("unexpected health %+v", health)
	}

	db, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !db.DatabaseExists || !db.DatabaseReadable || !db.IntegrityCheck || len(db.MissingTables) != 0 {
		t.Fatalf("unexpected database health %+v", db)
	}
	if db.SchemaVersion != 1 || db.TotalWorks != 2 || db.TotalActions != 2 {
		t.Fatalf("unexpected database counts %+v", db)
	}
}

func TestListActionsFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	testsupport.NewWork(t, store, "w1", "")
	testsupport.NewWork(t, store, "w2", "")
	testsupport.Enqueue(t, store, "w1", "noop", nil, time.Now())
	second := testsupport.Enqueue(t, store, "w2", "announce", nil, time.Now())
	third := testsupport.Enqueue(t, store, "w2", "noop", nil, time.Now())
	if _, err := store.CancelPending(ctx, third.ID); err != nil {
		t.Fatalf("CancelPending failed: %v", err)
	}

	records, err := store.ListActions(ctx, queue.ActionFilter{WorkID: "w2", Statuses: []queue.Status{queue.StatusPending}})
	if err != nil {
		t.Fatalf("ListActions failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != second.ID {
		t.Fatalf("unexpected filtered records %#v", records)
	}
	all, err := store.ListActions(ctx, queue.ActionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListActions(limit) failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != third.ID {
		t.Fatalf("expected newest first, got %#v", all)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.NewWork(t, store, "w1", "kept")
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	work, err := reopened.FindWork(context.Background(), "w1")
	if err != nil || work == nil || work.Title != "kept" {
		t.Fatalf("expected persisted work, got %#v err=%v", work, err)
	}
}

func TestStatusHelpers(t *testing.T) {
	if !queue.CanTransition(queue.StatusPending, queue.StatusCancelled) {
		t.Fatal("pending -> cancelled must be allowed")
	}
	if queue.CanTransition(queue.StatusSucceeded, queue.StatusPending) {
		t.Fatal("succeeded -> pending must be rejected")
	}
	if status, ok := queue.ParseStatus(" Failed "); !ok || status != queue.StatusFailed {
		t.Fatalf("ParseStatus = %q %v", status, ok)
	}
	if _, ok := queue.ParseStatus("review"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if !queue.StatusCancelled.Terminal() || queue.StatusRunning.Terminal() {
		t.Fatal("unexpected Terminal results")
	}
}
