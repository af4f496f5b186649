package cache

import (
	"sync"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	if _, ok := c.Get("acme", "new-checkout"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("acme", "new-checkout", true)
	c.Set("acme", "dark-mode", false)

	if v, ok := c.Get("acme", "new-checkout"); !ok || !v {
		t.Errorf("Get = (%v, %v), want (true, true)", v, ok)
	}
	if v, ok := c.Get("acme", "dark-mode"); !ok || v {
		t.Errorf("Get = (%v, %v), want (false, true)", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestTenantIsolation(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("acme", "new-checkout", true)

	if _, ok := c.Get("globex", "new-checkout"); ok {
		t.Error("cached decision leaked across tenants")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(30 * time.Second)
	defer c.Close()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("acme", "new-checkout", true)

	// Still fresh just inside the TTL.
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("acme", "new-checkout"); !ok {
		t.Error("entry expired before TTL elapsed")
	}

	// One tick past the TTL it is gone, and the read drops it.
	now = now.Add(time.Nanosecond)
	if _, ok := c.Get("acme", "new-checkout"); ok {
		t.Error("entry survived past TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after lazy expiry, want 0", c.Len())
	}
}

func TestSetRefreshesTTL(t *testing.T) {
	c := New(30 * time.Second)
	defer c.Close()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("acme", "new-checkout", true)
	now = now.Add(20 * time.Second)
	c.Set("acme", "new-checkout", false)
	now = now.Add(20 * time.Second)

	// 40s after the first Set but only 20s after the refresh.
	v, ok := c.Get("acme", "new-checkout")
	if !ok {
		t.Fatal("refreshed entry expired early")
	}
	if v {
		t.Error("refreshed entry kept stale value")
	}
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("acme", "new-checkout", true)
	c.Set("acme", "dark-mode", true)
	c.Set("globex", "new-checkout", true)

	c.Invalidate("acme", "new-checkout")

	if _, ok := c.Get("acme", "new-checkout"); ok {
		t.Error("invalidated entry still present")
	}
	if _, ok := c.Get("acme", "dark-mode"); !ok {
		t.Error("unrelated entry was dropped")
	}
	if _, ok := c.Get("globex", "new-checkout"); !ok {
		t.Error("other tenant's entry was dropped")
	}
}

func TestInvalidateAll(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("acme", "new-checkout", true)
	c.Set("globex", "dark-mode", false)

	c.InvalidateAll()

	if c.Len() != 0 {
		t.Errorf("Len = %d after InvalidateAll, want 0", c.Len())
	}
}

func TestJanitorSweepsExpired(t *testing.T) {
	c := NewWithConfig(Config{TTL: time.Nanosecond, CleanupInterval: time.Millisecond})
	defer c.Close()

	c.Set("acme", "new-checkout", true)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("janitor never swept the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	c := New(0)
	defer c.Close()

	if c.TTL() != DefaultTTL {
		t.Errorf("TTL = %v, want %v", c.TTL(), DefaultTTL)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("acme", "new-checkout", n%2 == 0)
				c.Get("acme", "new-checkout")
				c.Invalidate("acme", "new-checkout")
			}
		}(i)
	}
	wg.Wait()
}
