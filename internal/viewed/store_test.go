package viewed_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"testing"
	"time"

	"michatta/internal/testsupport"
	"michatta/internal/viewed"
)

func TestPutCountGetClearScenario(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.Put(ctx, "m100", 1000); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if got := store.Count(ctx); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}
	if ts, ok := store.Get(ctx, "m100"); !ok || ts != 1000 {
		t.Fatalf("Get(m100) = %d, %v", ts, ok)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := store.Count(ctx); got != 0 {
		t.Fatalf("expected count 0 after clear, got %d", got)
	}
	if _, ok := store.Get(ctx, "m100"); ok {
		t.Fatal("expected m100 absent after clear")
	}
	if store.CachedLen() != 0 {
		t.Fatalf("expected empty cache after clear, got %d", store.CachedLen())
	}
}

func TestPutIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for range 2 {
		if err := store.Put(ctx, "m1", 42); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if got := store.Count(ctx); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}
	if got := store.GetAll(ctx); !maps.Equal(got, map[string]int64{"m1": 42}) {
		t.Fatalf("unexpected contents: %v", got)
	}
}

func TestPutOverwritesTimestamp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustPut(t, store, map[string]int64{"m1": 1})
	if err := store.Put(ctx, "m1", 2); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	store.ClearCache()
	if ts, ok := store.Get(ctx, "m1"); !ok || ts != 2 {
		t.Fatalf("expected refreshed timestamp 2, got %d, %v", ts, ok)
	}
}

func TestPutRejectsInvalidItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.Put(ctx, "", 1); !errors.Is(err, viewed.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for empty id, got %v", err)
	}
	if err := store.Put(ctx, "m1", -1); !errors.Is(err, viewed.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for negative timestamp, got %v", err)
	}
	if got := store.Count(ctx); got != 0 {
		t.Fatalf("invalid puts must not persist, count=%d", got)
	}
}

func TestMarkViewedUsesClock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fixed := time.UnixMilli(1_700_000_000_123)
	store := viewed.New(cfg.Paths.DatabasePath, viewed.WithNow(func() time.Time { return fixed }))
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	if err := store.MarkViewed(ctx, "m9"); err != nil {
		t.Fatalf("MarkViewed failed: %v", err)
	}
	if ts, ok := store.Get(ctx, "m9"); !ok || ts != fixed.UnixMilli() {
		t.Fatalf("expected %d, got %d, %v", fixed.UnixMilli(), ts, ok)
	}
}

func TestPutBatchRejectsWholeBatchOnInvalidRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustPut(t, store, map[string]int64{"existing": 5})

	err := store.PutBatch(ctx, map[string]int64{"a": 1, "": 2, "b": 3})
	if !errors.Is(err, viewed.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
	if got := store.Count(ctx); got != 1 {
		t.Fatalf("expected only the pre-existing record, count=%d", got)
	}
	for _, id := range []string{"a", "b"} {
		if _, ok := store.Get(ctx, id); ok {
			t.Fatalf("record %s from rejected batch persisted", id)
		}
	}
	if ts, ok := store.Get(ctx, "existing"); !ok || ts != 5 {
		t.Fatal("rejected batch must leave earlier data intact")
	}
}

func TestPutBatchCommitsAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	items := make(map[string]int64, 250)
	for i := range 250 {
		items[fmt.Sprintf("m%d", i)] = int64(i * 10)
	}
	if err := store.PutBatch(ctx, items); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}
	if got := store.Count(ctx); got != 250 {
		t.Fatalf("expected 250 records, got %d", got)
	}
	if err := store.PutBatch(ctx, nil); err != nil {
		t.Fatalf("empty batch should succeed: %v", err)
	}
}

func TestGetBatchAgreesWithAndWithoutWarmCache(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheCapacity(3))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustPut(t, store, map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5})
	ids := []string{"a", "c", "e", "missing", "", "a"}
	want := map[string]int64{"a": 1, "c": 3, "e": 5}

	store.ClearCache()
	cold := store.GetBatch(ctx, ids)
	if !maps.Equal(cold, want) {
		t.Fatalf("cold GetBatch = %v, want %v", cold, want)
	}

	all := store.GetAll(ctx)
	if len(all) != 5 {
		t.Fatalf("GetAll returned %d items", len(all))
	}
	if store.CachedLen() != 3 {
		t.Fatalf("cache should be bounded at 3, got %d", store.CachedLen())
	}
	warm := store.GetBatch(ctx, ids)
	if !maps.Equal(warm, want) {
		t.Fatalf("warm GetBatch = %v, want %v", warm, want)
	}
}

func TestGetBatchFillsCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustPut(t, store, map[string]int64{"x": 7, "y": 8})
	store.ClearCache()

	store.GetBatch(ctx, []string{"x"})
	if store.CachedLen() != 1 {
		t.Fatalf("expected cache filled with one hit, got %d", store.CachedLen())
	}
}

func TestDataSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first := viewed.New(cfg.Paths.DatabasePath)
	if err := first.Put(ctx, "m1", 10); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := viewed.New(cfg.Paths.DatabasePath)
	t.Cleanup(func() { _ = second.Close() })
	if ts, ok := second.Get(ctx, "m1"); !ok || ts != 10 {
		t.Fatalf("expected persisted record, got %d, %v", ts, ok)
	}
}

func TestOperationsAfterCloseFailSafely(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := viewed.New(cfg.Paths.DatabasePath)
	ctx := context.Background()
	if err := store.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}

	if err := store.Put(ctx, "m1", 1); !errors.Is(err, viewed.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if got := store.Count(ctx); got != 0 {
		t.Fatalf("expected zero count from closed store, got %d", got)
	}
	if got := store.GetAll(ctx); len(got) != 0 {
		t.Fatalf("expected empty map from closed store, got %v", got)
	}
}

func TestUnavailableDatabaseReturnsDefaults(t *testing.T) {
	base := t.TempDir()
	// A directory where the database file should be makes open fail.
	store := viewed.New(base)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	if err := store.Open(ctx); err == nil {
		t.Fatal("expected open failure")
	}
	if got := store.Count(ctx); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if store.PremiumUnlocked(ctx) {
		t.Fatal("expected locked on failure")
	}
	if got := store.AlertSettings(ctx); got != viewed.DefaultAlertSettings() {
		t.Fatalf("expected defaults on failure, got %+v", got)
	}
	if err := store.Put(ctx, "m1", 1); err == nil {
		t.Fatal("expected write failure")
	}
	if got := store.GetBatch(ctx, []string{"m1"}); len(got) != 0 {
		t.Fatalf("expected empty batch result, got %v", got)
	}
}
