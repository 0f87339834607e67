package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript bumps a counter and sets the expiry only on first creation,
// so a failure window keeps its original deadline.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 and tonumber(ARGV[1]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// casDeleteScript deletes the key only when it still holds the expected value.
var casDeleteScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed store.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisStore{
		client: client,
		prefix: cfg.Redis.Prefix,
	}, nil
}

func (s *redisStore) key(k string) string {
	return s.prefix + k
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return value, err
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *redisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrScript.Run(ctx, s.client, []string{s.key(key)}, ttl.Milliseconds()).Int64()
}

func (s *redisStore) Swap(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	prev, err := s.client.GetSet(ctx, s.key(key), value).Result()
	existed := true
	if err == redis.Nil {
		prev, existed, err = "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if ttl > 0 {
		if err := s.client.PExpire(ctx, s.key(key), ttl).Err(); err != nil {
			return "", false, err
		}
	}
	return prev, existed, nil
}

func (s *redisStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	deleted, err := casDeleteScript.Run(ctx, s.client, []string{s.key(key)}, expected).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func (s *redisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, err
	}
	// PTTL reports -2 for a missing key and -1 for no expiry.
	if ttl == -2*time.Millisecond {
		return 0, ErrNotFound
	}
	if ttl == -1*time.Millisecond {
		return -1, nil
	}
	return ttl, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
