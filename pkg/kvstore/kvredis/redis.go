package kvredis

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/identity/pkg/kvstore"
	"github.com/redis/go-redis/v9"
)

// Store implements kvstore.Store on top of go-redis.
type Store struct {
	client *redis.Client
	prefix string
}

var _ kvstore.Store = (*Store)(nil)

// New wraps client. prefix is prepended to every key; it may be empty.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, kvstore.ErrUnavailable(err)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return kvstore.ErrUnavailable(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return kvstore.ErrUnavailable(err)
	}
	return nil
}

func (s *Store) GetDel(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, kvstore.ErrUnavailable(err)
	}
	return val, true, nil
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, kvstore.ErrUnavailable(err)
	}
	return ok, nil
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
