package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"scriptorium/internal/preflight"
	"scriptorium/internal/queue"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Scheduler", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Scheduler:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Scheduler", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestCheckLines(t *testing.T) {
	lines := checkLines([]preflight.Result{
		{Name: "Data directory", Passed: true, Detail: "/tmp/data"},
		{Name: "NATS", Passed: false, Detail: "connection refused"},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR] 1 of 2 checks failed") {
		t.Fatalf("unexpected summary %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] /tmp/data") {
		t.Fatalf("unexpected pass line %q", lines[1])
	}
	if !strings.Contains(lines[2], "[ERROR] connection refused") {
		t.Fatalf("unexpected failure line %q", lines[2])
	}

	if got := checkLines(nil, false); len(got) != 1 || !strings.Contains(got[0], "no checks ran") {
		t.Fatalf("unexpected empty rendering %q", got)
	}
}

func TestQueueLinesFlagFailures(t *testing.T) {
	lines := queueLines(queue.HealthSummary{Works: 2, Pending: 1, Failed: 3}, false)
	var failedLine string
	for _, line := range lines {
		if strings.Contains(line, "Failed:") {
			failedLine = line
		}
	}
	if !strings.Contains(failedLine, "[WARN] 3") {
		t.Fatalf("expected failed count to warn, got %q", failedLine)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
