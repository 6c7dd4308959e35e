package testsupport

import (
	"context"
	"testing"

	"michatta/internal/config"
	"michatta/internal/legacy"
	"michatta/internal/viewed"
)

// MustOpenStore opens a viewed.Store for tests and registers cleanup. The
// store mirrors into the configured legacy file when mirroring is enabled.
func MustOpenStore(t testing.TB, cfg *config.Config) *viewed.Store {
	t.Helper()

	store := viewed.FromConfig(cfg, legacy.Open(cfg.Paths.LegacyPath, nil), nil)
	if err := store.Open(context.Background()); err != nil {
		t.Fatalf("viewed.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustPut records the given items or fails the test.
func MustPut(t testing.TB, store *viewed.Store, items map[string]int64) {
	t.Helper()

	if err := store.PutBatch(context.Background(), items); err != nil {
		t.Fatalf("store.PutBatch: %v", err)
	}
}
