package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfMatch：仅当 key 仍属于当前 request_id 时才删除，
// 避免慢请求误删已被其他请求接管的 key。
const luaReleaseIfMatch = `
local key = KEYS[1]
local requestID = ARGV[1]
if redis.call('GET', key) == requestID then
  return redis.call('DEL', key)
end
return 0
`

// AcquireIdempotency 为 requestID 抢占幂等 key；已被占用时返回 acquired=false 和持有者。
func AcquireIdempotency(ctx context.Context, rdb *rd.Client, key, requestID string, ttl time.Duration) (acquired bool, owner string, err error) {
	ok, err := rdb.SetNX(ctx, key, requestID, ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, requestID, nil
	}
	owner, err = rdb.Get(ctx, key).Result()
	if errors.Is(err, rd.Nil) {
		// SETNX 与 GET 之间 key 已过期，调用方重试即可
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return false, owner, nil
}

// ReleaseIdempotencyIfMatch 仅在 key 仍属于 requestID 时释放。
func ReleaseIdempotencyIfMatch(ctx context.Context, rdb *rd.Client, key, requestID string) error {
	_, err := rdb.Eval(ctx, luaReleaseIfMatch, []string{key}, requestID).Int()
	return err
}
