package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const redisHashKey = "shademap:cache"

// RedisStore persists slow-tier entries in a Redis hash, for deployments
// where several instances should share a warm footprint cache.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, timeout: 10 * time.Second}, nil
}

func (r *RedisStore) Load() (map[string]StoredEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	fields, err := r.client.HGetAll(ctx, redisHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("loading cache hash: %w", err)
	}
	entries := make(map[string]StoredEntry, len(fields))
	now := time.Now()
	for key, raw := range fields {
		var e StoredEntry
		if err := msgpack.Unmarshal([]byte(raw), &e); err != nil {
			// Skip undecodable fields rather than failing the whole load.
			continue
		}
		if now.After(e.ExpiresAt) {
			continue
		}
		entries[key] = e
	}
	return entries, nil
}

func (r *RedisStore) Save(entries map[string]StoredEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisHashKey)
	if len(entries) > 0 {
		fields := make(map[string]interface{}, len(entries))
		for key, e := range entries {
			encoded, err := msgpack.Marshal(e)
			if err != nil {
				return fmt.Errorf("encoding cache entry %q: %w", key, err)
			}
			fields[key] = encoded
		}
		pipe.HSet(ctx, redisHashKey, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving cache hash: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
