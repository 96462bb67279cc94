package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"jiranbackend/pkg/errors"
)

// RedisStore backs the Store contract with Redis so session, membership and
// counter state is visible to every server process.
type RedisStore struct {
	client *redis.Client
}

var decrFloorScript = redis.NewScript(`
local v = redis.call('DECR', KEYS[1])
if v < 0 then
	redis.call('SET', KEYS[1], '0')
	return 0
end
return v
`)

var setMaxScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local v = tonumber(ARGV[1])
if v > cur then
	redis.call('SET', KEYS[1], ARGV[1])
	return v
end
return cur
`)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Internal("Failed to read from store", err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Internal("Failed to write to store", err)
	}
	return nil
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errors.Internal("Failed to write to store", err)
	}
	return ok, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Internal("Failed to delete from store", err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return errors.Internal("Failed to set key expiry", err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Internal("Failed to increment counter", err)
	}
	return val, nil
}

func (s *RedisStore) DecrFloor(ctx context.Context, key string) (int64, error) {
	val, err := decrFloorScript.Run(ctx, s.client, []string{key}).Int64()
	if err != nil {
		return 0, errors.Internal("Failed to decrement counter", err)
	}
	return val, nil
}

func (s *RedisStore) SetMax(ctx context.Context, key string, value int64) (int64, error) {
	val, err := setMaxScript.Run(ctx, s.client, []string{key}, value).Int64()
	if err != nil {
		return 0, errors.Internal("Failed to update maximum", err)
	}
	return val, nil
}

func (s *RedisStore) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Internal("Failed to read counter", err)
	}
	return val, nil
}

func (s *RedisStore) SAdd(ctx context.Context, key, member string) (bool, error) {
	added, err := s.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, errors.Internal("Failed to add set member", err)
	}
	return added > 0, nil
}

func (s *RedisStore) SRem(ctx context.Context, key, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return errors.Internal("Failed to remove set member", err)
	}
	return nil
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	card, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, errors.Internal("Failed to count set members", err)
	}
	return card, nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errors.Internal("Failed to list set members", err)
	}
	return members, nil
}

func (s *RedisStore) LPushTrim(ctx context.Context, key, value string, maxLen int64) error {
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Internal("Failed to push list entry", err)
	}
	return nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, errors.Internal("Failed to read list", err)
	}
	return vals, nil
}
