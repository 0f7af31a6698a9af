package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"heristone/internal/store"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), Config{Addr: mr.Addr(), KeyPrefix: "test:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for want, body := range []string{"one", "two"} {
		v, err := s.Put(ctx, "k", []byte(body))
		if err != nil || v != int64(want+1) {
			t.Fatalf("put %q: v=%d err=%v", body, v, err)
		}
	}

	body, v, err := s.Get(ctx, "k")
	if err != nil || string(body) != "two" || v != 2 {
		t.Fatalf("unexpected get: body=%q v=%d err=%v", body, v, err)
	}

	if got, _ := mr.Get("test:k"); got != "two" {
		t.Errorf("body key = %q, want prefixed key holding the blob", got)
	}
	if got, _ := mr.Get("test:k:version"); got != "2" {
		t.Errorf("version key = %q", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if mr.Exists("test:k:version") {
		t.Error("version key should be removed with the body")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting a missing key should succeed: %v", err)
	}

	// Versions restart after a delete.
	if v, err := s.Put(ctx, "k", []byte("three")); err != nil || v != 1 {
		t.Fatalf("put after delete: v=%d err=%v", v, err)
	}
}

func TestRedisStoreCorruptVersion(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Set("test:k", "body")
	mr.Set("test:k:version", "x")

	if _, _, err := s.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected a version parse error")
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail once the server is gone")
	}
	if _, _, err := s.Get(context.Background(), "k"); err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("connection failure must not look like a missing key: %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil || err.Error() != "missing REDIS_ADDR" {
		t.Fatalf("err = %v", err)
	}

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := New(context.Background(), Config{Addr: addr}); err == nil {
		t.Fatal("expected ping failure on a closed server")
	}
}
