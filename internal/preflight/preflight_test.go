package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"michatta/internal/legacy"
	"michatta/internal/testsupport"
	"michatta/internal/viewed"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpaceReportsBytes(t *testing.T) {
	result := CheckFreeSpace("free", t.TempDir())
	if !strings.Contains(result.Detail, "free") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
	missing := CheckFreeSpace("free", filepath.Join(t.TempDir(), "missing"))
	if missing.Passed {
		t.Fatal("expected statfs failure for missing path")
	}
}

func TestCheckDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustPut(t, store, map[string]int64{"a": 1, "b": 2})

	result := CheckDatabase(context.Background(), store)
	if !result.Passed || result.Detail != "schema v2, 2 viewed items" {
		t.Fatalf("unexpected result %+v", result)
	}
}

type brokenDB struct{}

func (brokenDB) Open(context.Context) error                 { return errors.New("locked") }
func (brokenDB) SchemaVersion(context.Context) (int, error) { return 0, nil }
func (brokenDB) Count(context.Context) int                  { return 0 }

func TestCheckDatabaseOpenFailure(t *testing.T) {
	result := CheckDatabase(context.Background(), brokenDB{})
	if result.Passed || !strings.Contains(result.Detail, "locked") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckLegacy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mirror := legacy.Open(cfg.Paths.LegacyPath, nil)

	if result := CheckLegacy(mirror); !result.Passed || !strings.Contains(result.Detail, "migration pending") {
		t.Fatalf("unexpected result for missing file %+v", result)
	}
	testsupport.WriteLegacyFile(t, cfg.Paths.LegacyPath, `{"michatta_migration_v2":"completed"}`)
	if result := CheckLegacy(mirror); !strings.Contains(result.Detail, "migration completed") {
		t.Fatalf("unexpected result %+v", result)
	}
	testsupport.WriteLegacyFile(t, cfg.Paths.LegacyPath, `{broken`)
	if result := CheckLegacy(mirror); result.Passed {
		t.Fatal("expected failure for corrupt legacy file")
	}
	if result := CheckLegacy(legacy.Open("", nil)); !result.Passed {
		t.Fatal("disabled mirror should pass")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := viewed.FromConfig(cfg, nil, nil)
	t.Cleanup(func() { _ = store.Close() })

	results := RunAll(context.Background(), cfg, store, legacy.Open(cfg.Paths.LegacyPath, nil))
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d: %+v", len(results), results)
	}
	if results[0].Name != "Data directory" || !results[0].Passed {
		t.Fatalf("unexpected data dir result %+v", results[0])
	}
	if RunAll(context.Background(), nil, nil, nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
