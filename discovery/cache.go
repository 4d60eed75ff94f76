package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/ggoodman/bearergate/auth"
	"github.com/ggoodman/bearergate/storage"
)

// CachedSource serves metadata from a Storage and falls back to the wrapped
// source on a miss. Only public key material is written to the store.
type CachedSource struct {
	src   auth.DiscoverySource
	store storage.Storage
	key   string
	ttl   time.Duration
	log   *slog.Logger
}

// Cached wraps src so that fetches are served from store for ttl. A
// non-positive ttl caches until Invalidate is called.
func Cached(src auth.DiscoverySource, store storage.Storage, key string, ttl time.Duration, opts ...Option) *CachedSource {
	o := newOptions(opts)
	return &CachedSource{src: src, store: store, key: "discovery:" + key, ttl: ttl, log: o.log}
}

func (c *CachedSource) FetchMetadata(ctx context.Context) (*auth.Metadata, error) {
	item, err := c.store.Get(ctx, c.key)
	switch {
	case err != nil:
		// The store is an optimization; fall through to the source.
		c.log.WarnContext(ctx, "discovery.cache.get.err", slog.String("key", c.key), slog.String("err", err.Error()))
	case item != nil:
		meta, err := decodeMetadata(item.Data)
		if err == nil {
			c.log.DebugContext(ctx, "discovery.cache.hit", slog.String("key", c.key))
			return meta, nil
		}
		c.log.WarnContext(ctx, "discovery.cache.decode.err", slog.String("key", c.key), slog.String("err", err.Error()))
	}

	meta, err := c.src.FetchMetadata(ctx)
	if err != nil {
		return nil, err
	}
	data, err := encodeMetadata(meta)
	if err != nil {
		return meta, nil
	}
	if err := c.store.Set(ctx, c.key, data, storage.WithTTL(c.ttl)); err != nil {
		c.log.WarnContext(ctx, "discovery.cache.set.err", slog.String("key", c.key), slog.String("err", err.Error()))
	}
	return meta, nil
}

// Invalidate drops the cached document so the next fetch reaches the source.
func (c *CachedSource) Invalidate(ctx context.Context) error {
	return c.store.Delete(ctx, c.key)
}
