package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scriptorium/internal/testsupport"
)

func TestWriteAndReadPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := os.Stat(filepath.Dir(cfg.PIDPath())); !os.IsNotExist(err) {
		t.Fatalf("expected pid directory absent before write, stat err=%v", err)
	}

	if pid, err := ReadPID(cfg); err != nil || pid != 0 {
		t.Fatalf("expected no pid before write, got %d %v", pid, err)
	}
	if err := writePIDFile(cfg.PIDPath()); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := ReadPID(cfg)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), pid)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "scriptoriumd-1.log")
	second := filepath.Join(dir, "scriptoriumd-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "scriptoriumd.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "scriptoriumd-2.log" {
		t.Fatalf("pointer should follow latest log, got %q", data)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg, Options{LogLevel: "error"}) }()

	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(cfg.PIDPath()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("daemon never wrote its pid file")
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestRunReturnsCleanlyWhenCancelledBeforeStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Run(ctx, cfg, Options{LogLevel: "error"}); err != nil {
		t.Fatalf("Run returned error after early cancel: %v", err)
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}
