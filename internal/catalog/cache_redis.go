package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"moviestream/catalogservice/internal/domain"
)

const redisCachePrefix = "catalog:cache:"

// RedisCacheBackend stores merged movie lists in Redis with JSON
// serialization, shared across service instances.
type RedisCacheBackend struct {
	client *redis.Client
}

func NewRedisCacheBackend(client *redis.Client) *RedisCacheBackend {
	return &RedisCacheBackend{client: client}
}

func (r *RedisCacheBackend) Get(ctx context.Context, key string) (domain.MovieList, bool, error) {
	data, err := r.client.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.MovieList{}, false, nil
		}
		return domain.MovieList{}, false, err
	}
	var list domain.MovieList
	if err := json.Unmarshal(data, &list); err != nil {
		return domain.MovieList{}, false, err
	}
	return list, true, nil
}

func (r *RedisCacheBackend) Set(ctx context.Context, key string, list domain.MovieList, ttl time.Duration) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisCachePrefix+key, data, ttl).Err()
}

func (r *RedisCacheBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisCachePrefix+key).Err()
}

func (r *RedisCacheBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
