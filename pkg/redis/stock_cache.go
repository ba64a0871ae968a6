package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// StockCache 把已提交的库存同步到 Redis，供低成本读取。
// nil 的 *StockCache 合法，所有操作为空操作。
type StockCache struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewStockCache(rdb *rd.Client, ttl time.Duration) *StockCache {
	return &StockCache{rdb: rdb, ttl: ttl}
}

// Set 写入商品已提交的库存。
func (c *StockCache) Set(ctx context.Context, productID uint, quantity int) error {
	if c == nil {
		return nil
	}
	return c.rdb.Set(ctx, StockKey(productID), quantity, c.ttl).Err()
}

// Get 读取缓存库存；found=false 表示未缓存。
func (c *StockCache) Get(ctx context.Context, productID uint) (int64, bool, error) {
	if c == nil {
		return 0, false, nil
	}
	val, err := c.rdb.Get(ctx, StockKey(productID)).Int64()
	if errors.Is(err, rd.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

// Invalidate 删除指定商品的库存缓存。
func (c *StockCache) Invalidate(ctx context.Context, productIDs ...uint) error {
	if c == nil || len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, StockKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
