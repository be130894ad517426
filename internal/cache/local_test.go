package cache

import (
	"context"
	"testing"
	"time"
)

func TestLocalCacheGetSet(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	snapshot, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get on empty cache failed: %v", err)
	}
	if snapshot != nil {
		t.Errorf("empty cache returned %+v, want nil", snapshot)
	}

	want := &CountSnapshot{Count: 42, CachedAt: time.Now()}
	if err := c.Set(ctx, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Count != 42 {
		t.Errorf("Get = %+v, want count 42", got)
	}

	// The cache hands out copies, not its internal pointer.
	got.Count = 99
	again, _ := c.Get(ctx)
	if again.Count != 42 {
		t.Errorf("cached snapshot mutated through the returned copy: %d", again.Count)
	}
}

func TestLocalCacheSetNilClears(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	_ = c.Set(ctx, &CountSnapshot{Count: 1, CachedAt: time.Now()})
	_ = c.Set(ctx, nil)

	snapshot, err := c.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snapshot != nil {
		t.Errorf("expected cleared cache, got %+v", snapshot)
	}
}

func TestCountSnapshotFresh(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *CountSnapshot
		ttl      time.Duration
		expected bool
	}{
		{"nil snapshot", nil, time.Minute, false},
		{"fresh", &CountSnapshot{CachedAt: time.Now()}, time.Minute, true},
		{"expired", &CountSnapshot{CachedAt: time.Now().Add(-2 * time.Minute)}, time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snapshot.Fresh(tt.ttl); got != tt.expected {
				t.Errorf("Fresh() = %v, want %v", got, tt.expected)
			}
		})
	}
}
