package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	_ = store.GetOrCreate("s-1")
	_ = store.GetOrCreate("s-2")
	if !mr.Exists("movieclub:session:s-1") {
		t.Fatalf("expected redis key to be set")
	}
	if n, err := store.ActiveSessions(context.Background()); err != nil || n != 2 {
		t.Fatalf("expected 2 active sessions, got %d (%v)", n, err)
	}

	store.Delete("s-1")
	if mr.Exists("movieclub:session:s-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("s-1"); ok {
		t.Fatalf("expected session removed locally")
	}
}

func TestSessionStoreMarkerExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	_ = store.GetOrCreate("s-1")

	mr.FastForward(2 * time.Minute)
	if mr.Exists("movieclub:session:s-1") {
		t.Fatalf("expected liveness marker to expire")
	}
}

func TestSessionStoreGetKeepsMarkerAlive(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	_ = store.GetOrCreate("s-1")

	for i := 0; i < 3; i++ {
		mr.FastForward(40 * time.Second)
		if _, ok := store.Get("s-1"); !ok {
			t.Fatalf("expected session present")
		}
	}
	if !mr.Exists("movieclub:session:s-1") {
		t.Fatalf("expected marker refreshed by Get")
	}
	if ttl := mr.TTL("movieclub:session:s-1"); ttl != time.Minute {
		t.Fatalf("expected full TTL after Get, got %v", ttl)
	}
}
