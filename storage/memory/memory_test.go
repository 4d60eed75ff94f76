package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ggoodman/bearergate/storage"
)

func TestNew(t *testing.T) {
	s, err := New(100)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	if _, err := New(0); err == nil {
		t.Fatal("New(0) should fail")
	}
}

func TestSetAndGet(t *testing.T) {
	s, err := New(100)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	data := []byte(`{"issuer":"https://issuer.example"}`)
	if err := s.Set(ctx, "meta", data); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	// Mutating the caller's slice must not affect the stored value.
	data[0] = 'X'

	item, err := s.Get(ctx, "meta")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if item == nil {
		t.Fatal("Get() returned nil item")
	}
	if string(item.Data) != `{"issuer":"https://issuer.example"}` {
		t.Fatalf("Get() returned wrong data: %s", item.Data)
	}
	if item.ExpiresAt != nil {
		t.Fatalf("item without TTL should not expire")
	}
}

func TestGetNonExistent(t *testing.T) {
	s, _ := New(10)
	defer s.Close()

	item, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil item, got %+v", item)
	}
}

func TestTTL(t *testing.T) {
	s, _ := New(10)
	defer s.Close()

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v"), storage.WithTTL(time.Minute)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if item, _ := s.Get(ctx, "k"); item == nil {
		t.Fatal("item should be present before expiry")
	}

	now = now.Add(2 * time.Minute)
	if item, _ := s.Get(ctx, "k"); item != nil {
		t.Fatalf("item should have expired, got %+v", item)
	}
}

func TestDeleteAndEviction(t *testing.T) {
	s, _ := New(2)
	defer s.Close()
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"))
	_ = s.Set(ctx, "b", []byte("2"))
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if item, _ := s.Get(ctx, "a"); item != nil {
		t.Fatal("deleted key still present")
	}
	if err := s.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("Delete() of missing key failed: %v", err)
	}

	_ = s.Set(ctx, "c", []byte("3"))
	_ = s.Set(ctx, "d", []byte("4"))
	if item, _ := s.Get(ctx, "b"); item != nil {
		t.Fatal("least recently used key should have been evicted")
	}
}
