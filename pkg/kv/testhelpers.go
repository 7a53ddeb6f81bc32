package kv

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// NewTestStore starts an in-process miniredis and returns a RedisStore
// connected to it. Both are torn down via t.Cleanup.
func NewTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := DefaultConfig()
	cfg.URL = "redis://" + mr.Addr()

	store, err := NewRedisStore(cfg)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, mr
}
