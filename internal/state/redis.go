package state

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct{ rdb *redis.Client }

func NewRedis(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func redisKey(key string) string { return "weather:state:" + key }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set writes without a TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, redisKey(key), value, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
