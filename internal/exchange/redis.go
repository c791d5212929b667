package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "voicebridge:last_exchange"

// RedisStore keeps the last exchange as a JSON value under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, defaultRedisKey), nil
}

func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Save(ctx context.Context, e Exchange) error {
	e = normalize(e)
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}
	if err := s.client.Set(ctx, s.key, val, 0).Err(); err != nil {
		return fmt.Errorf("save exchange: %w", err)
	}
	return nil
}

func (s *RedisStore) Last(ctx context.Context) (Exchange, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Exchange{}, ErrNotFound
	}
	if err != nil {
		return Exchange{}, fmt.Errorf("load exchange: %w", err)
	}
	var e Exchange
	if err := json.Unmarshal(val, &e); err != nil {
		return Exchange{}, fmt.Errorf("decode exchange: %w", err)
	}
	return e, nil
}

func (s *RedisStore) Mode() string { return "redis" }

func (s *RedisStore) Close() error {
	return s.client.Close()
}
