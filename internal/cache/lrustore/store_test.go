package lrustore

import (
	"context"
	"testing"
	"time"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/cache"
)

var _ cache.Interface = (*Store)(nil)

func TestSetGetDel(t *testing.T) {
	s := New(4, time.Minute)
	ctx := context.Background()

	buf := []byte("v1")
	if err := s.Set(ctx, "k1", buf, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	buf[0] = 'X'
	v, ok, err := s.Get(ctx, "k1")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("Get = %q %v %v; stored value must be a copy", v, ok, err)
	}
	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Fatal("unexpected hit")
	}
	if err := s.Del(ctx, "k1", "missing"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("len=%d after Del", s.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	s := New(2, time.Minute)
	ctx := context.Background()
	_ = s.Set(ctx, "a", []byte("1"), 0)
	_ = s.Set(ctx, "b", []byte("2"), 0)
	_, _, _ = s.Get(ctx, "a")
	_ = s.Set(ctx, "c", []byte("3"), 0)

	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok, _ := s.Get(ctx, "a"); !ok {
		t.Fatal("a was recently used and should survive")
	}
}

func TestEntriesExpire(t *testing.T) {
	s := New(4, 20*time.Millisecond)
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("v"), 0)
	time.Sleep(60 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestCanceledContext(t *testing.T) {
	s := New(4, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatal("Set with canceled context should fail")
	}
	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Fatal("Get with canceled context should fail")
	}
}
