package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scriptorium/internal/config"
	"scriptorium/internal/logging"
	"scriptorium/internal/services"
)

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "scheduler").Info("action succeeded", logging.Int64(logging.FieldActionID, 7))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", line)
	}
	if !strings.Contains(line, "INFO scheduler: action succeeded action_id=7") {
		t.Fatalf("unexpected console line %q", line)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with source")
	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected source information in debug logs, got %q", buf.String())
	}
}

func TestConsoleLoggerQuotesValuesAndFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.WithGroup("work").Info("imported", logging.String("title", "Book of Hours"), logging.Error(errors.New("x=y")))
	out := buf.String()
	if !strings.Contains(out, `work.title="Book of Hours"`) {
		t.Fatalf("expected quoted grouped title, got %q", out)
	}
	if !strings.Contains(out, `work.error="x=y"`) {
		t.Fatalf("expected quoted error, got %q", out)
	}
}

func TestJSONLoggerAddsSessionID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf, SessionID: "session-abc"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.With("extra", "value").Info("json message")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if record[logging.FieldSessionID] != "session-abc" {
		t.Fatalf("expected session id, got %v", record)
	}
	if record["extra"] != "value" || record["level"] != "info" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorkID(ctx, "ms-1")
	ctx = services.WithActionID(ctx, 12)
	ctx = services.WithAction(ctx, "noop")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	want := map[string]any{
		logging.FieldWorkID:        "ms-1",
		logging.FieldActionID:      float64(12),
		logging.FieldAction:        "noop",
		logging.FieldCorrelationID: "req-xyz",
	}
	for key, value := range want {
		if record[key] != value {
			t.Fatalf("field %s = %v, want %v", key, record[key], value)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "tick failed", "dispatch_failed")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record[logging.FieldEventType] != "dispatch_failed" || record[logging.FieldErrorHint] != "check queue database access" {
		t.Fatalf("expected event defaults, got %v", record)
	}

	buf.Reset()
	logging.ErrorWithContext(logger, "odd", "something_new", logging.String(logging.FieldErrorHint, "custom"))
	record = nil
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record[logging.FieldErrorHint] != "custom" || record["level"] != "error" {
		t.Fatalf("caller hint should win, got %v", record)
	}

	buf.Reset()
	logging.WarnWithContext(logger, "odd", "something_new")
	record = nil
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record[logging.FieldErrorHint] != "check logs for details" {
		t.Fatalf("expected fallback hint, got %v", record)
	}
}

func TestCronLoggerRoutesErrors(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	cl := logging.CronLogger(logger)
	cl.Info("wake", "now", time.Unix(0, 0))
	if buf.Len() != 0 {
		t.Fatalf("expected cron info to be demoted below info level, got %q", buf.String())
	}
	cl.Error(errors.New("panic"), "job failed")
	if !strings.Contains(buf.String(), "cron: job failed") || !strings.Contains(buf.String(), "event_type=cron_error") {
		t.Fatalf("unexpected cron error line %q", buf.String())
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, logging.DaemonLogPrefix+"old.log")
	current := filepath.Join(dir, logging.DaemonLogPrefix+"current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		stale := time.Now().AddDate(0, 0, -10)
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5, logging.DaemonRetentionTarget(dir, current))
	if removed != 1 {
		t.Fatalf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, got %v", err)
	}
	for _, path := range []string{current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
	if logging.CleanupOldLogs(nil, 0, logging.DaemonRetentionTarget(dir, "")) != 0 {
		t.Fatal("expected retention disabled at 0 days")
	}
}

func TestDaemonLogPath(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := logging.DaemonLogPath("/var/log/scriptorium", ts)
	if got != "/var/log/scriptorium/scriptoriumd-20260304T050607Z.log" {
		t.Fatalf("unexpected log path %q", got)
	}
}
