package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Getter is the part of a Redis client RedisSource needs. *redis.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSource reads a document stored under a single key. Documents without a
// version field are versioned by a hash of their bytes.
type RedisSource struct {
	client Getter
	key    string
}

func NewRedisSource(client Getter, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Name() string {
	return "redis"
}

func (s *RedisSource) Fetch(ctx context.Context) (ResultSet, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ResultSet{}, ErrNoResultSet
		}
		return ResultSet{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return Decode(raw, contentVersion(raw))
}
