package cache

import "testing"

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	must(t, c.Put("a", 1, false))
	must(t, c.Put("b", 2, false))
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a present")
	}
	// a is now most-recently-used; b is the eviction candidate.
	must(t, c.Put("c", 3, false))
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a still present")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c present")
	}
}

func TestLRUPinnedEntryNeverEvicted(t *testing.T) {
	c := New[string, int](1)
	must(t, c.Put("system", 1, true))
	if err := c.Put("user", 2, false); err == nil {
		t.Fatalf("expected CacheFull when the only entry is pinned")
	}
}

func TestLRUInUseEntryNotEvicted(t *testing.T) {
	c := New[string, int](1)
	must(t, c.Put("a", 1, false))
	c.Acquire("a")
	if err := c.Put("b", 2, false); err == nil {
		t.Fatalf("expected CacheFull while a is in use")
	}
	c.Release("a")
	if err := c.Put("b", 2, false); err != nil {
		t.Fatalf("expected eviction to succeed once a is released: %v", err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
