package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisStore_PutGet(t *testing.T) {
	store, _ := NewTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "customer:cust_1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "customer:cust_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Get = %q, want %q", got, `{"a":1}`)
	}
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := NewTestStore(t)

	_, err := store.Get(context.Background(), "customer:nope")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get missing key err = %v, want ErrKeyNotFound", err)
	}
}

func TestRedisStore_PutWithTTL(t *testing.T) {
	store, mr := NewTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "ratelimit:ip_1.2.3.4", []byte("x"), WithTTL(time.Minute)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "ratelimit:ip_1.2.3.4"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expired key err = %v, want ErrKeyNotFound", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := NewTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "role:uploader", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "role:uploader"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "role:uploader"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after delete err = %v, want ErrKeyNotFound", err)
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "role:uploader"); err != nil {
		t.Errorf("Delete missing key err = %v, want nil", err)
	}
}

func TestRedisStore_List(t *testing.T) {
	store, _ := NewTestStore(t)
	ctx := context.Background()

	keys := []string{"role:banned", "role:uploader", "role:super-admin"}
	for _, k := range keys {
		if err := store.Put(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Put %s failed: %v", k, err)
		}
	}
	if err := store.Put(ctx, "permission:upload:mod", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.List(ctx, "role:")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List returned %d keys, want 3: %v", len(got), got)
	}

	// Sorted ascending.
	want := []string{"role:banned", "role:super-admin", "role:uploader"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
