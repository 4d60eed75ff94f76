// Package storage defines the small key/value contract used to share
// discovered signing metadata between processes and across restarts.
package storage

import (
	"context"
	"time"
)

// Storage is a TTL-aware byte store.
type Storage interface {
	// Get returns the item stored under key, or nil if it does not exist or
	// has expired. An error is returned only for backend failures.
	Get(ctx context.Context, key string) (*Item, error)

	// Set stores data under key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte, opts ...Option) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Item is a stored value with its bookkeeping timestamps.
type Item struct {
	Data      []byte
	CreatedAt time.Time
	ExpiresAt *time.Time // nil means no expiry
}

// IsExpired reports whether the item expired before now.
func (i *Item) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// Option configures a Set call.
type Option func(*Options)

// Options holds resolved Set options.
type Options struct {
	TTL *time.Duration
}

// Apply resolves opts.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTTL expires the item after ttl. Non-positive values mean no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.TTL = &ttl
		}
	}
}
