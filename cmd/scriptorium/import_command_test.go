package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"scriptorium/internal/actions"
	"scriptorium/internal/ingest"
	"scriptorium/internal/logging"
	"scriptorium/internal/queue"
	"scriptorium/internal/services"
	"scriptorium/internal/testsupport"
)

func TestImportSchedulesConfiguredAction(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithImportAction("validate-metadata", "require:title", "1h"))

	out, _, err := runCLI(t, []string{"import", "ms-0042", "--title", "Book of Hours", "--meta", "creator=Unknown"}, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "Imported ms-0042")
	requireContains(t, out, "validate-metadata")

	store := env.openStore(t)
	work, err := store.FindWork(context.Background(), "ms-0042")
	if err != nil || work == nil {
		t.Fatalf("FindWork: %v %v", work, err)
	}
	if work.Metadata["creator"] != "Unknown" {
		t.Fatalf("unexpected metadata %v", work.Metadata)
	}
	records, err := store.ListActions(context.Background(), queue.ActionFilter{WorkID: "ms-0042"})
	if err != nil || len(records) != 1 {
		t.Fatalf("ListActions: %v %v", records, err)
	}
	record := records[0]
	if record.Action != "validate-metadata" || record.Parameters["require"] != "title" {
		t.Fatalf("unexpected record %#v", record)
	}
	if until := time.Until(record.ScheduledAt); until < 58*time.Minute || until > time.Hour+time.Second {
		t.Fatalf("expected record due in about an hour, got %s", until)
	}
}

func TestImportDuplicateExitCode(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"import", "ms-1"}, env.configPath); err != nil {
		t.Fatalf("first import: %v", err)
	}
	out, _, err := runCLI(t, []string{"import", "ms-1", "--title", "Again"}, env.configPath)
	if err == nil {
		t.Fatal("expected duplicate import to fail")
	}
	if code := services.ExitCode(err); code != 3 {
		t.Fatalf("expected exit code 3, got %d (%v)", code, err)
	}
	requireContains(t, out, "Skipped ms-1: already registered")
}

func TestImportRejectsBadDelay(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"import", "ms-2", "--action", "noop", "--delay", "1w"}, env.configPath)
	if code := services.ExitCode(err); code != 2 {
		t.Fatalf("expected exit code 2 for invalid timespan, got %d (%v)", code, err)
	}
	store := env.openStore(t)
	if work, _ := store.FindWork(context.Background(), "ms-2"); work != nil {
		t.Fatal("work must not be saved when the post-import action is invalid")
	}
}

func TestImportManifest(t *testing.T) {
	env := setupCLITestEnv(t)
	manifest := testsupport.WriteFile(t, filepath.Join(env.baseDir, "works.yaml"), `works:
  - id: ms-10
    title: Antiphonary
  - id: ms-11
    title: Gradual
    metadata:
      origin: Cluny
`)

	out, _, err := runCLI(t, []string{"import", "--manifest", manifest, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest import: %v", err)
	}
	var outcomes []importOutcome
	if err := json.Unmarshal([]byte(out), &outcomes); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(outcomes) != 2 || !outcomes[0].Imported || !outcomes[1].Imported {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}

	// Re-importing reports both as duplicates.
	_, _, err = runCLI(t, []string{"import", "--manifest", manifest}, env.configPath)
	if code := services.ExitCode(err); code != 3 {
		t.Fatalf("expected exit code 3, got %d (%v)", code, err)
	}
}

func TestImportRequiresExactlyOneSource(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"import"}, env.configPath)
	if code := services.ExitCode(err); code != 2 {
		t.Fatalf("expected usage exit code, got %d (%v)", code, err)
	}
}

func TestParseMetadataFlags(t *testing.T) {
	meta, err := parseMetadataFlags([]string{"creator = Anon", "origin=Cluny"})
	if err != nil {
		t.Fatalf("parseMetadataFlags: %v", err)
	}
	if meta["creator"] != "Anon" || meta["origin"] != "Cluny" {
		t.Fatalf("unexpected metadata %v", meta)
	}
	if _, err := parseMetadataFlags([]string{"novalue"}); err == nil {
		t.Fatal("expected error for entry without '='")
	}
}

func TestJoinImportErrorsPrefersStorageFailure(t *testing.T) {
	duplicate := fmt.Errorf("import ms-1: %w", services.ErrWorkExists)
	storage := services.Wrap(services.ErrStorageUnavailable, "queue", "save work", "", errors.New("database is locked"))

	err := joinImportErrors([]error{duplicate, storage}, 3)
	if code := services.ExitCode(err); code != 4 {
		t.Fatalf("expected storage exit code 4, got %d (%v)", code, err)
	}
	if !strings.Contains(err.Error(), "2 of 3 imports failed") || !errors.Is(err, services.ErrWorkExists) {
		t.Fatalf("joined error should keep every failure, got %v", err)
	}
	if joinImportErrors(nil, 2) != nil {
		t.Fatal("expected nil for no failures")
	}
	if joinImportErrors([]error{duplicate}, 1) != duplicate {
		t.Fatal("a single failure should be returned unchanged")
	}
}

type failingLister struct{}

func (failingLister) ListWorks(context.Context, int) ([]*queue.Work, error) {
	return nil, services.Wrap(services.ErrStorageUnavailable, "queue", "list works", "", errors.New("disk I/O error"))
}

func TestRunImportsLogsSimilarityFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.openStore(t)
	registry := actions.NewRegistry()
	if err := actions.RegisterBuiltins(registry, nil); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	pipeline := ingest.NewPipeline(store, registry, nil, nil)

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	candidates := []*queue.Work{{ID: "ms-20", Title: "Book of Hours"}}
	outcomes, err := runImports(cmd, pipeline, failingLister{}, logger, candidates, nil, 0)
	if err != nil {
		t.Fatalf("runImports: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Imported {
		t.Fatalf("import should proceed without the similarity note, got %+v", outcomes)
	}
	if !strings.Contains(buf.String(), "similarity_check_failed") || !strings.Contains(buf.String(), "disk I/O error") {
		t.Fatalf("expected similarity failure logged, got %q", buf.String())
	}
}
