package recency

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestNewDefaultsCapacity(t *testing.T) {
	if got := New[string, int64](0).Capacity(); got != DefaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultCapacity, got)
	}
	if got := New[string, int64](-3).Capacity(); got != DefaultCapacity {
		t.Fatalf("expected default capacity for negative input, got %d", got)
	}
}

func TestSetEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int64](3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4)

	if c.Has("a") {
		t.Fatal("expected oldest key a to be evicted")
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}
	for _, key := range []string{"b", "c", "d"} {
		if !c.Has(key) {
			t.Fatalf("expected %s to survive", key)
		}
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New[string, int64](3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	c.Set("d", 4)

	if !c.Has("a") {
		t.Fatal("expected a to survive after being read")
	}
	if c.Has("b") {
		t.Fatal("expected b to be evicted as least recently used")
	}
}

func TestHasDoesNotPromote(t *testing.T) {
	c := New[string, int64](2)
	c.Set("a", 1)
	c.Set("b", 2)
	if !c.Has("a") {
		t.Fatal("expected a present")
	}
	c.Set("c", 3)
	if c.Has("a") {
		t.Fatal("Has must not refresh recency")
	}
}

func TestSetExistingKeyUpdatesAndPromotes(t *testing.T) {
	c := New[string, int64](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Fatalf("expected updated a=10, got %d, %v", v, ok)
	}
	if c.Has("b") {
		t.Fatal("expected b evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("update must not grow the cache, got %d", c.Len())
	}
}

func TestKeysOrder(t *testing.T) {
	c := New[string, int64](4)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a")

	want := []string{"a", "c", "b"}
	if got := c.Keys(); !slices.Equal(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
}

func TestGetAllKeepsRecency(t *testing.T) {
	c := New[string, int64](2)
	c.Set("a", 1)
	c.Set("b", 2)
	_ = c.GetAll()
	c.Set("c", 3)

	if c.Has("a") {
		t.Fatal("GetAll must not promote entries")
	}
}

func TestDeleteClearAndGetAll(t *testing.T) {
	c := New[string, int64](5)
	c.SetMultiple(map[string]int64{"a": 1, "b": 2, "c": 3})

	all := c.GetAll()
	if len(all) != 3 || all["b"] != 2 {
		t.Fatalf("unexpected GetAll: %v", all)
	}
	all["z"] = 99
	if c.Has("z") {
		t.Fatal("GetAll must return a copy")
	}

	c.Delete("b")
	c.Delete("missing")
	if c.Has("b") || c.Len() != 2 {
		t.Fatalf("expected b deleted, len=%d", c.Len())
	}

	c.Clear()
	if c.Len() != 0 || len(c.GetAll()) != 0 {
		t.Fatal("expected empty cache after Clear")
	}
	c.Set("x", 1)
	if v, ok := c.Get("x"); !ok || v != 1 {
		t.Fatal("cache must be usable after Clear")
	}
}

func TestSetMultipleRespectsCapacity(t *testing.T) {
	c := New[string, int64](10)
	values := make(map[string]int64, 25)
	for i := range 25 {
		values[fmt.Sprintf("k%02d", i)] = int64(i)
	}
	c.SetMultiple(values)
	if c.Len() != 10 {
		t.Fatalf("expected capacity-bounded size 10, got %d", c.Len())
	}
	for key, value := range c.GetAll() {
		if values[key] != value {
			t.Fatalf("cached %s=%d disagrees with source %d", key, value, values[key])
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[string, int64](50)
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("w%d-%d", worker, i%60)
				c.Set(key, int64(i))
				c.Get(key)
				c.Has(key)
			}
		}(w)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Fatalf("cache exceeded capacity: %d", c.Len())
	}
}
