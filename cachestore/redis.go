package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed Store.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `mapstructure:"addr"`

	// Password authenticates against the server, if set.
	Password string `mapstructure:"password"`

	// DB selects the Redis logical database.
	DB int `mapstructure:"db"`

	// KeyPrefix namespaces all cache keys. Default: "httpcache".
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *RedisConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "httpcache"
	}
}

// RedisStore is a Store backed by a shared Redis server, giving
// cross-process sharing of cached responses. Entries are JSON-serialized;
// expiry is delegated to Redis TTLs.
type RedisStore struct {
	rdb       *goredis.Client
	keyPrefix string
}

// NewRedisStore creates a RedisStore from the given configuration.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	cfg.ApplyDefaults()
	return &RedisStore{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		keyPrefix: cfg.KeyPrefix,
	}
}

// NewRedisStoreFromClient wraps an existing go-redis client.
func NewRedisStoreFromClient(rdb *goredis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "httpcache"
	}
	return &RedisStore{rdb: rdb, keyPrefix: keyPrefix}
}

func (s *RedisStore) fullKey(key string) string {
	return s.keyPrefix + ":" + key
}

// Get fetches and deserializes the entry for key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cachestore get %q: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("cachestore unmarshal %q: %w", key, err)
	}
	return &entry, true, nil
}

// Set serializes and stores the entry under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cachestore marshal %q: %w", key, err)
	}
	if err := s.rdb.Set(ctx, s.fullKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cachestore set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("cachestore delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Compile-time check.
var _ Store = (*RedisStore)(nil)
