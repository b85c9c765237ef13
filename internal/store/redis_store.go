package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	pkgredis "ticketd/pkg/redis"
)

// RedisStore implements Store over Redis hashes: one hash per group, one
// field per key. Group listing maps to HGETALL.
type RedisStore struct {
	client    *pkgredis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *pkgredis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "state:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) groupKey(group string) string {
	return s.keyPrefix + group
}

// Get reads the value at (group, key) into dest
func (s *RedisStore) Get(ctx context.Context, group, key string, dest any) error {
	data, err := s.client.HGet(ctx, s.groupKey(group), key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to get %s/%s: %w", group, key, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal value at %s/%s: %w", group, key, err)
	}
	return nil
}

// Set writes the value at (group, key)
func (s *RedisStore) Set(ctx context.Context, group, key string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.groupKey(group), key, data).Err(); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", group, key, err)
	}
	return nil
}

// SetIfAbsent writes the value only if (group, key) does not exist
func (s *RedisStore) SetIfAbsent(ctx context.Context, group, key string, value any) (bool, error) {
	data, err := marshalValue(value)
	if err != nil {
		return false, err
	}
	ok, err := s.client.HSetNX(ctx, s.groupKey(group), key, data).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set %s/%s if absent: %w", group, key, err)
	}
	return ok, nil
}

// casScript swaps a hash field only when it still holds the expected bytes.
// EVAL keeps the compare and the write atomic on the server.
var casScript = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if current == ARGV[2] then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
	return 1
end
return 0
`)

// CompareAndSwap writes the value only if the stored bytes still equal old
func (s *RedisStore) CompareAndSwap(ctx context.Context, group, key string, old json.RawMessage, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	swapped, err := casScript.Run(ctx, s.client.Client(),
		[]string{s.groupKey(group)}, key, string(old), string(data)).Int()
	if err != nil {
		return fmt.Errorf("failed to swap %s/%s: %w", group, key, err)
	}
	if swapped == 0 {
		return ErrCASMismatch
	}
	return nil
}

// Delete removes (group, key)
func (s *RedisStore) Delete(ctx context.Context, group, key string) error {
	if err := s.client.HDel(ctx, s.groupKey(group), key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", group, key, err)
	}
	return nil
}

// GetGroup returns the raw values of all keys in a group
func (s *RedisStore) GetGroup(ctx context.Context, group string) ([]json.RawMessage, error) {
	values, err := s.client.HGetAll(ctx, s.groupKey(group)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get group %s: %w", group, err)
	}
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		out = append(out, json.RawMessage(v))
	}
	return out, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
