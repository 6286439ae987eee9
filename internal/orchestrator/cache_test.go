package orchestrator

import (
	"strings"
	"testing"
	"time"
)

func newTestCache(start time.Time) (*ResponseCache, *time.Time) {
	current := start
	c := NewResponseCache()
	c.now = func() time.Time { return current }
	return c, &current
}

func TestCacheGetWithinTTL(t *testing.T) {
	c, _ := newTestCache(time.Now())

	key := c.Key(OpReview, "some code", ModeShort, "")
	c.Set(key, "Looks fine.")

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected a fresh entry to hit")
	}
	if got != "Looks fine." {
		t.Fatalf("got %q", got)
	}
}

func TestCacheLazyExpiry(t *testing.T) {
	c, current := newTestCache(time.Now())

	key := c.Key(OpReview, "some code", ModeShort, "")
	c.Set(key, "stale soon")

	*current = current.Add(DefaultCacheTTL - time.Second)
	if _, ok := c.Get(key); !ok {
		t.Fatal("entry inside the TTL window must hit")
	}

	*current = current.Add(2 * time.Second)
	if _, ok := c.Get(key); ok {
		t.Fatal("entry past the TTL window must read as absent")
	}

	// Expiry is lazy: the entry is still in the table until overwritten.
	if c.Len() != 1 {
		t.Fatalf("expected 1 retained entry, got %d", c.Len())
	}
}

func TestCacheKeyComponents(t *testing.T) {
	c, _ := newTestCache(time.Now())

	base := c.Key(OpReview, "payload", ModeShort, "c1")

	if k := c.Key(OpSecurity, "payload", ModeShort, "c1"); k == base {
		t.Error("operation must separate keys")
	}
	if k := c.Key(OpReview, "other payload", ModeShort, "c1"); k == base {
		t.Error("payload must separate keys")
	}
	if k := c.Key(OpReview, "payload", ModeDetailed, "c1"); k == base {
		t.Error("mode must separate keys")
	}
	if k := c.Key(OpReview, "payload", ModeShort, "c2"); k == base {
		t.Error("conversation must separate keys")
	}
	if k := c.Key(OpReview, "payload", ModeShort, ""); !strings.Contains(k, "no-conversation") {
		t.Errorf("stateless key should carry the no-conversation marker, got %q", k)
	}
}

func TestCacheKeyPayloadPrefix(t *testing.T) {
	c, _ := newTestCache(time.Now())

	long := strings.Repeat("a", keyPayloadPrefix+500)
	k1 := c.Key(OpReview, long, ModeShort, "")
	k2 := c.Key(OpReview, long+"tail", ModeShort, "")
	if k1 != k2 {
		t.Error("payloads sharing the key prefix map to the same key")
	}
	if len(k1) > keyPayloadPrefix+100 {
		t.Errorf("key not bounded: %d chars", len(k1))
	}
}

func TestCacheSetOverwrites(t *testing.T) {
	c, _ := newTestCache(time.Now())

	key := c.Key(OpAnswer, "q", ModeShort, "")
	c.Set(key, "first")
	c.Set(key, "second")

	got, _ := c.Get(key)
	if got != "second" {
		t.Fatalf("got %q, want the overwritten value", got)
	}
	if c.Len() != 1 {
		t.Fatalf("overwrite must not grow the table, len=%d", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	c, _ := newTestCache(time.Now())

	c.Set(c.Key(OpReview, "a", ModeShort, ""), "x")
	c.Set(c.Key(OpReview, "b", ModeShort, ""), "y")
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("expected empty cache, len=%d", c.Len())
	}
}
