package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/taskboard/internal/client"
)

const (
	// redisKeyValue is the session key holding the id of the Redis hash
	redisKeyValue = "credential_id"

	redisKeyPrefix = "taskboard:credential:"
)

// RedisCache keeps the credential in a Redis hash. The session cookie only
// carries a random id, which keeps it small no matter how large the JWTs are.
type RedisCache struct {
	ctx context.Context
	rdb redis.Cmdable
	s   *Session
	ttl time.Duration
}

// NewRedisCache creates a cache for the session. ttl bounds how long an
// abandoned credential stays in Redis; it is renewed on every write.
func NewRedisCache(ctx context.Context, rdb redis.Cmdable, s *Session, ttl time.Duration) *RedisCache {
	return &RedisCache{ctx: ctx, rdb: rdb, s: s, ttl: ttl}
}

func (c *RedisCache) key() string {
	id := c.s.getString(redisKeyValue)
	if id == "" {
		return ""
	}
	return redisKeyPrefix + id
}

func (c *RedisCache) Get(f client.Field) (string, error) {
	key := c.key()
	if key == "" {
		return "", nil
	}
	v, err := c.rdb.HGet(c.ctx, key, string(f)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s: %w", f, err)
	}
	return v, nil
}

func (c *RedisCache) Set(fields map[client.Field]string) error {
	key := c.key()
	if key == "" {
		id := uuid.NewString()
		if err := c.s.update(func(values map[interface{}]interface{}) {
			values[redisKeyValue] = id
		}); err != nil {
			return err
		}
		key = redisKeyPrefix + id
	}
	if len(fields) == 0 {
		return nil
	}

	values := make(map[string]any, len(fields))
	for f, v := range fields {
		values[string(f)] = v
	}
	pipe := c.rdb.TxPipeline()
	pipe.HSet(c.ctx, key, values)
	if c.ttl > 0 {
		pipe.Expire(c.ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(c.ctx); err != nil {
		return fmt.Errorf("redis store credential: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear() error {
	key := c.key()
	if key == "" {
		return nil
	}
	if err := c.rdb.Del(c.ctx, key).Err(); err != nil {
		return fmt.Errorf("redis clear credential: %w", err)
	}
	return nil
}
