package testsupport

import (
	"context"
	"testing"
	"time"

	"scriptorium/internal/config"
	"scriptorium/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewWork registers a work for tests using the provided store.
func NewWork(t testing.TB, store *queue.Store, id, title string) *queue.Work {
	t.Helper()

	work, err := store.SaveWork(context.Background(), &queue.Work{ID: id, Title: title})
	if err != nil {
		t.Fatalf("store.SaveWork: %v", err)
	}
	return work
}

// Enqueue creates a pending action record for tests.
func Enqueue(t testing.TB, store *queue.Store, workID, action string, params map[string]string, at time.Time) *queue.ActionRecord {
	t.Helper()

	record, err := store.EnqueueAction(context.Background(), workID, action, params, at)
	if err != nil {
		t.Fatalf("store.EnqueueAction: %v", err)
	}
	return record
}
