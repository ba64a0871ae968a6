package queue

import (
	"context"
	"fmt"

	"genericstore/internal/events"
	"genericstore/internal/store"
	rediskey "genericstore/pkg/redis"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer 从 Kafka 读取订单事件，刷新被扣减商品的 Redis 库存缓存。
// 数据库是唯一事实来源：缓存值总是从库里重读，不根据事件自行计算。
type Consumer struct {
	r      *kafka.Reader
	store  *store.Store
	cache  *rediskey.StockCache
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, s *store.Store, cache *rediskey.StockCache, logger *zap.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		store:  s,
		cache:  cache,
		logger: logger,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}
		if err := c.handle(ctx, m.Value); err != nil {
			c.logger.Warn("consumer handle",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
	}
}

// handle 处理单条事件。刷新缓存是幂等的，重复投递无副作用。
func (c *Consumer) handle(ctx context.Context, value []byte) error {
	env, err := decodeEnvelope(value)
	if err != nil {
		return err
	}
	if env.EventType != events.EventOrderFulfilled {
		c.logger.Debug("consumer skip event", zap.String("event_type", env.EventType))
		return nil
	}

	p, err := events.Unwrap[events.OrderFulfilledPayload](env)
	if err != nil {
		return err
	}
	for _, pid := range p.ProductIDs() {
		if err := c.refreshStock(ctx, pid); err != nil {
			return fmt.Errorf("order %d: %w", p.OrderID, err)
		}
	}
	return nil
}

func (c *Consumer) refreshStock(ctx context.Context, productID uint) error {
	rec, found, err := c.store.FindStockByProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !found {
		return c.cache.Invalidate(ctx, productID)
	}
	return c.cache.Set(ctx, productID, rec.Quantity)
}
