package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestItemsCommandsLocal(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env.configPath, "items", "add", "m1", "m2", "--at", "1000")
	requireContains(t, out, "Marked 2 items as viewed")

	out = mustRunCLI(t, env.configPath, "items", "count")
	if strings.TrimSpace(out) != "2" {
		t.Fatalf("count: got %q", out)
	}

	out = mustRunCLI(t, env.configPath, "items", "add", "m3")
	requireContains(t, out, "Marked 1 items as viewed")

	out = mustRunCLI(t, env.configPath, "items", "list", "--json")
	var entries []viewedEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode list: %v (%s)", err, out)
	}
	if len(entries) != 3 || entries[0].ID != "m3" || entries[1].ID != "m1" || entries[2].ID != "m2" {
		t.Fatalf("unexpected list order: %+v", entries)
	}

	out = mustRunCLI(t, env.configPath, "items", "list", "--limit", "1")
	requireContains(t, out, "m3")
	requireContains(t, out, "1 of 3 items")

	out = mustRunCLI(t, env.configPath, "items", "check", "m1", "m9")
	requireContains(t, out, "m1:")
	requireContains(t, out, "[OK] viewed")
	requireContains(t, out, "[INFO] not viewed")

	out = mustRunCLI(t, env.configPath, "items", "check", "m1", "m9", "--json")
	var found map[string]int64
	if err := json.Unmarshal([]byte(out), &found); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if len(found) != 1 || found["m1"] != 1000 {
		t.Fatalf("unexpected check result: %v", found)
	}
}

func TestItemsImport(t *testing.T) {
	env := setupCLITestEnv(t)

	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte(`{"a": 1, "b": 2, "c": 3}`), 0o644); err != nil {
		t.Fatalf("write import file: %v", err)
	}
	out := mustRunCLI(t, env.configPath, "items", "import", path)
	requireContains(t, out, "Imported 3 items")

	out = mustRunCLI(t, env.configPath, "items", "count", "--json")
	requireContains(t, out, `"count": 3`)
}

func TestItemsImportRejectsMalformedFile(t *testing.T) {
	env := setupCLITestEnv(t)

	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte(`["a", "b"]`), 0o644); err != nil {
		t.Fatalf("write import file: %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "items", "import", path); err == nil {
		t.Fatal("expected error for non-object import file")
	}
}

func TestItemsClearRequiresConfirmation(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env.configPath, "items", "add", "m1")

	if _, _, err := runCLI(t, env.configPath, "items", "clear"); err == nil {
		t.Fatal("expected clear without --yes to fail")
	}
	out := mustRunCLI(t, env.configPath, "items", "count")
	if strings.TrimSpace(out) != "1" {
		t.Fatalf("clear without --yes removed items: %q", out)
	}

	out = mustRunCLI(t, env.configPath, "items", "clear", "--yes")
	requireContains(t, out, "Cleared all viewed items")
	out = mustRunCLI(t, env.configPath, "items", "count")
	if strings.TrimSpace(out) != "0" {
		t.Fatalf("expected empty store after clear, got %q", out)
	}
}

func TestItemsAddRejectsBlankID(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env.configPath, "items", "add", "  "); err == nil {
		t.Fatal("expected error for blank id")
	}
}

func TestItemsThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	d := startTestDaemon(t, env)

	mustRunCLI(t, env.configPath, "items", "add", "x1", "x2", "--at", "42")

	status := d.Status(t.Context())
	if status.ViewedCount != 2 {
		t.Fatalf("daemon did not receive writes: count=%d", status.ViewedCount)
	}
	out := mustRunCLI(t, env.configPath, "items", "check", "x1", "--json")
	requireContains(t, out, `"x1": 42`)
}

func TestLocalWritesRefusedWhileDaemonRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	d := startTestDaemon(t, env)
	mustRunCLI(t, env.configPath, "items", "add", "m100")

	_, _, err := runCLI(t, env.configPath, "--local", "items", "clear", "--yes")
	if err == nil || !strings.Contains(err.Error(), "daemon is running") {
		t.Fatalf("expected local clear to be refused, got %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "migrate"); err == nil {
		t.Fatal("expected migrate to be refused while the daemon runs")
	}

	if got := d.Status(t.Context()).ViewedCount; got != 1 {
		t.Fatalf("daemon count changed to %d", got)
	}
	out := mustRunCLI(t, env.configPath, "items", "check", "m100")
	requireContains(t, out, "[OK] viewed")
}
