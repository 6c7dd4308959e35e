package main

import (
	"context"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"michatta/internal/logging"
	"michatta/internal/testsupport"
)

func TestBuildDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	d, err := buildDaemon(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.DatabasePath != cfg.Paths.DatabasePath {
		t.Fatalf("database path: got %q want %q", status.DatabasePath, cfg.Paths.DatabasePath)
	}
	if status.LegacyPath != cfg.Paths.LegacyPath {
		t.Fatalf("legacy path: got %q want %q", status.LegacyPath, cfg.Paths.LegacyPath)
	}
	if len(status.Methods) != 10 {
		t.Fatalf("expected 10 methods, got %v", status.Methods)
	}
}

func TestBuildDaemonRequiresConfig(t *testing.T) {
	if _, err := buildDaemon(nil, logging.NewNop()); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	holder := flock.New(cfg.LockPath())
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("hold lock: locked=%v err=%v", locked, err)
	}
	t.Cleanup(func() { _ = holder.Unlock() })

	err = run(context.Background(), cfg, logging.NewNop())
	if err == nil {
		t.Fatal("expected error when the lock is held")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}
