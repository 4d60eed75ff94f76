// Package redis provides a Redis-backed implementation of storage.Storage so
// that replicas can share one copy of discovered signing metadata.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/bearergate/storage"
)

// Config contains configuration options for the Redis storage. Defaults can
// be loaded via envdecode.
type Config struct {
	// Client is the Redis client instance. When nil, one is created for Addr
	// and closed by Close.
	Client *redis.Client

	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`

	// KeyPrefix is the prefix for all Redis keys. ENV: BEARERGATE_REDIS_KEY_PREFIX
	KeyPrefix string `env:"BEARERGATE_REDIS_KEY_PREFIX,default=bearergate:"`
}

// Storage implements storage.Storage using Redis string values.
type Storage struct {
	client    *redis.Client
	ownClient bool
	keyPrefix string
}

// storedItem is the JSON envelope written to Redis.
type storedItem struct {
	Data      []byte     `json:"data"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// New creates a Redis storage and verifies connectivity.
func New(ctx context.Context, config Config) (*Storage, error) {
	s := &Storage{client: config.Client, keyPrefix: config.KeyPrefix}
	if s.client == nil {
		addr := config.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		s.client = redis.NewClient(&redis.Options{Addr: addr})
		s.ownClient = true
	}
	if s.keyPrefix == "" {
		s.keyPrefix = "bearergate:"
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		if s.ownClient {
			_ = s.client.Close()
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return s, nil
}

// NewFromEnv builds a Storage using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Storage, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode redis config: %w", err)
	}
	return New(ctx, cfg)
}

func (s *Storage) Get(ctx context.Context, key string) (*storage.Item, error) {
	redisKey := s.keyPrefix + key
	val, err := s.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key %s: %w", redisKey, err)
	}

	var item storedItem
	if err := json.Unmarshal(val, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored data: %w", err)
	}
	out := &storage.Item{Data: item.Data, CreatedAt: item.CreatedAt, ExpiresAt: item.ExpiresAt}
	if out.IsExpired(time.Now()) {
		s.client.Del(ctx, redisKey)
		return nil, nil
	}
	return out, nil
}

func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	o := storage.Apply(opts...)
	now := time.Now()
	item := storedItem{Data: data, CreatedAt: now}

	var ttl time.Duration
	if o.TTL != nil {
		exp := now.Add(*o.TTL)
		item.ExpiresAt = &exp
		ttl = *o.TTL
	}

	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal storage item: %w", err)
	}
	redisKey := s.keyPrefix + key
	if err := s.client.Set(ctx, redisKey, b, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", redisKey, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	redisKey := s.keyPrefix + key
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", redisKey, err)
	}
	return nil
}

// Close closes the Redis client if the Storage created it.
func (s *Storage) Close() error {
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}

var _ storage.Storage = (*Storage)(nil)
