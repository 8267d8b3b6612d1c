package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter hash fields: c = count, r = reset time in unix ms. The key expires
// one window after reset.
var fixedWindowScript = redis.NewScript(`
local data = redis.call("HMGET", KEYS[1], "c", "r")
local count = tonumber(data[1])
local reset = tonumber(data[2])
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local quota = tonumber(ARGV[3])
if count == nil or reset == nil or now > reset then
  reset = now + window
  redis.call("HSET", KEYS[1], "c", 1, "r", reset)
  redis.call("PEXPIRE", KEYS[1], window * 2)
  return {1, reset, 1}
end
if count >= quota then
  return {count, reset, 0}
end
count = redis.call("HINCRBY", KEYS[1], "c", 1)
return {count, reset, 1}
`)

var errUnexpectedReply = errors.New("unexpected rate limit script reply")

type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Take(ctx context.Context, key string, quota int, window time.Duration, now time.Time) (Window, bool, error) {
	if s.client == nil {
		return Window{}, false, errors.New("redis client is nil")
	}
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		windowMS = DefaultWindow.Milliseconds()
	}
	raw, err := fixedWindowScript.Run(ctx, s.client, []string{s.prefix + ":" + key}, now.UnixMilli(), windowMS, quota).Result()
	if err != nil {
		return Window{}, false, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Window{}, false, errUnexpectedReply
	}
	var nums [3]int64
	for i, v := range values {
		n, err := parseRedisInt64(v)
		if err != nil {
			return Window{}, false, err
		}
		nums[i] = n
	}
	return Window{Count: int(nums[0]), ResetAt: time.UnixMilli(nums[1]).UTC()}, nums[2] == 1, nil
}

func parseRedisInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: %T", errUnexpectedReply, v)
	}
}
