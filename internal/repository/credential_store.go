package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CredentialStore is a key-value store with per-key TTL. Missing or expired
// keys are reported with ok=false, never as errors.
type CredentialStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// CompareAndDelete deletes key only when it holds value. present is
	// false when the key was missing; matched is true only for the single
	// caller that performed the delete.
	CompareAndDelete(ctx context.Context, key, value string) (matched, present bool, err error)
}

// compareAndDelete returns 1 on match+delete, 0 on mismatch, -1 when absent.
var compareAndDelete = redis.NewScript(`
	local v = redis.call('GET', KEYS[1])
	if not v then
		return -1
	end
	if v == ARGV[1] then
		redis.call('DEL', KEYS[1])
		return 1
	end
	return 0
`)

// RedisCredentialStore implements CredentialStore on Redis.
type RedisCredentialStore struct {
	rdb *redis.Client
}

func NewRedisCredentialStore(rdb *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{rdb: rdb}
}

func (s *RedisCredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	return okValue(s.rdb.Get(ctx, key).Result())
}

func (s *RedisCredentialStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisCredentialStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisCredentialStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *RedisCredentialStore) CompareAndDelete(ctx context.Context, key, value string) (bool, bool, error) {
	n, err := compareAndDelete.Run(ctx, s.rdb, []string{key}, value).Int()
	if err != nil {
		return false, false, err
	}
	switch n {
	case 1:
		return true, true, nil
	case 0:
		return false, true, nil
	default:
		return false, false, nil
	}
}

func okValue(v string, err error) (string, bool, error) {
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
