// Package memory provides an in-process implementation of storage.Storage
// backed by github.com/hashicorp/golang-lru/v2.
package memory

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ggoodman/bearergate/storage"
)

// Storage is a bounded LRU store. Expired items are dropped lazily on read.
type Storage struct {
	cache *lru.Cache[string, *storage.Item]
	now   func() time.Time
}

// New creates a store holding at most maxItems entries.
func New(maxItems int) (*Storage, error) {
	cache, err := lru.New[string, *storage.Item](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Storage{cache: cache, now: time.Now}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (*storage.Item, error) {
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	if item.IsExpired(s.now()) {
		s.cache.Remove(key)
		return nil, nil
	}
	cp := *item
	cp.Data = append([]byte(nil), item.Data...)
	return &cp, nil
}

func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	o := storage.Apply(opts...)
	now := s.now()
	item := &storage.Item{Data: append([]byte(nil), data...), CreatedAt: now}
	if o.TTL != nil {
		exp := now.Add(*o.TTL)
		item.ExpiresAt = &exp
	}
	s.cache.Add(key, item)
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

// Close purges all entries.
func (s *Storage) Close() error {
	s.cache.Purge()
	return nil
}

var _ storage.Storage = (*Storage)(nil)
