package store

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/flixmate/recommender/core"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	if _, err := ms.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Errorf("Get(missing) err = %v, want store not-found", err)
	}

	if err := ms.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := ms.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get(k) = %q, want %q", got, "v")
	}

	if err := ms.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ms.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Errorf("Get after delete err = %v, want store not-found", err)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	// 负 TTL 直接构造一个已过期条目
	expired := &entry{value: []byte("old")}
	past := time.Now().Add(-time.Second)
	expired.expire = &past
	ms.mu.Lock()
	ms.data["stale"] = expired
	ms.mu.Unlock()

	if _, err := ms.Get(ctx, "stale"); !core.IsStoreNotFound(err) {
		t.Errorf("expired key should read as not-found, got err = %v", err)
	}

	stats, err := ms.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["total_keys"] != 0 {
		t.Errorf("expired keys must not count as live, total_keys = %v", stats["total_keys"])
	}
}

func TestMemoryStoreDeletePattern(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	keys := []string{"profile:aa", "profile:bb", "recommendation:cc"}
	for _, k := range keys {
		if err := ms.Set(ctx, k, []byte("x"), 0); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}

	n, err := ms.DeletePattern(ctx, "profile:")
	if err != nil {
		t.Fatalf("DeletePattern: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	if _, err := ms.Get(ctx, "recommendation:cc"); err != nil {
		t.Errorf("unrelated key must survive, err = %v", err)
	}
}
