package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestStoreGetRoundTrip(t *testing.T) {
	c := NewResultCache(10)
	c.Store("a", 42, 0)

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit for stored key")
	}
	if got.(int) != 42 {
		t.Errorf("Get() = %v, want 42", got)
	}
}

func TestGetMissesUnknownKey(t *testing.T) {
	c := NewResultCache(10)
	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewResultCache(10)
	c.Store("short", "v", time.Nanosecond)
	c.Store("forever", "v", 0)

	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 1 {
		t.Errorf("expired entry should be deleted on Get, Len() = %d", c.Len())
	}
	if _, ok := c.Get("forever"); !ok {
		t.Error("entry without ttl must not expire by age")
	}
}

func TestOldestInsertionEviction(t *testing.T) {
	// max_size=2; store A, B, C; exactly 2 remain and A is evicted.
	c := NewResultCache(2)
	c.Store("A", 1, 0)
	c.Store("B", 2, 0)
	c.Store("C", 3, 0)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("A"); ok {
		t.Error("A should have been evicted (oldest insertion)")
	}
	for _, key := range []string{"B", "C"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s should survive eviction", key)
		}
	}
}

func TestEvictionIgnoresAccessOrder(t *testing.T) {
	c := NewResultCache(2)
	c.Store("A", 1, 0)
	c.Store("B", 2, 0)

	// Touch A repeatedly; insertion order still decides eviction.
	for i := 0; i < 5; i++ {
		c.Get("A")
	}
	c.Store("C", 3, 0)

	if _, ok := c.Get("A"); ok {
		t.Error("A should be evicted despite recent access")
	}
	if _, ok := c.Get("B"); !ok {
		t.Error("B should survive")
	}
}

func TestOverwriteRefreshesInsertionOrder(t *testing.T) {
	c := NewResultCache(2)
	c.Store("A", 1, 0)
	c.Store("B", 2, 0)
	c.Store("A", 10, 0) // fresh insertion, A moves to the back
	c.Store("C", 3, 0)

	if _, ok := c.Get("B"); ok {
		t.Error("B is now the oldest insertion and should be evicted")
	}
	got, ok := c.Get("A")
	if !ok || got.(int) != 10 {
		t.Errorf("Get(A) = %v, %v; want 10, true", got, ok)
	}
}

func TestCapacityInvariant(t *testing.T) {
	const bound = 7
	c := NewResultCache(bound)
	for i := 0; i < 100; i++ {
		c.Store(fmt.Sprintf("key-%d", i), i, 0)
		if c.Len() > bound {
			t.Fatalf("cache bounded at %d holds %d entries after store %d", bound, c.Len(), i)
		}
	}
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	c := NewResultCache(10)
	c.Store("gone", 1, time.Nanosecond)
	c.Store("gone2", 2, time.Nanosecond)
	c.Store("kept", 3, time.Hour)
	c.Store("pinned", 4, 0)

	time.Sleep(5 * time.Millisecond)

	if removed := c.Sweep(); removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d after sweep, want 2", c.Len())
	}
	if _, ok := c.Get("kept"); !ok {
		t.Error("unexpired entry removed by sweep")
	}
	if _, ok := c.Get("pinned"); !ok {
		t.Error("no-ttl entry removed by sweep")
	}
}

func TestAccessMetadata(t *testing.T) {
	c := NewResultCache(10)
	c.Store("a", 1, 0)
	c.Get("a")
	c.Get("a")

	c.mu.Lock()
	entry := c.entries["a"].Value.(*Entry)
	count := entry.AccessCount
	last := entry.LastAccessed
	c.mu.Unlock()

	if count != 2 {
		t.Errorf("AccessCount = %d, want 2", count)
	}
	if last.IsZero() {
		t.Error("LastAccessed not set on read")
	}
}
