package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "paperslight:session:"

// RedisBackend stores sessions as Redis strings with a native TTL.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend returns a backend over client.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// NewRedisClient parses url and verifies the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: ping redis: %w", err)
	}
	return client, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Load returns the encoded values for id.
func (b *RedisBackend) Load(ctx context.Context, id string) (data string, err error) {
	defer func() { observe("redis", "load", err) }()

	data, err = b.client.Get(ctx, redisKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return data, nil
}

// Save stores data for id. A non-positive ttl stores a key without expiry.
func (b *RedisBackend) Save(ctx context.Context, id, data string, ttl time.Duration) (err error) {
	defer func() { observe("redis", "save", err) }()

	if ttl < 0 {
		ttl = 0
	}
	return b.client.Set(ctx, redisKey(id), data, ttl).Err()
}

// Delete removes id.
func (b *RedisBackend) Delete(ctx context.Context, id string) (err error) {
	defer func() { observe("redis", "delete", err) }()
	return b.client.Del(ctx, redisKey(id)).Err()
}
