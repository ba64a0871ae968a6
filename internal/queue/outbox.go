package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"genericstore/internal/events"

	rd "github.com/redis/go-redis/v9"
)

// StreamOutbox 将已提交的订单事件写入 Redis Stream，由 Relay 异步转发到 Kafka，
// Kafka 不可用时不阻塞请求。
type StreamOutbox struct {
	rdb    *rd.Client
	stream string
}

func NewStreamOutbox(rdb *rd.Client, stream string) *StreamOutbox {
	return &StreamOutbox{rdb: rdb, stream: stream}
}

// Publish 实现 events.Publisher。
func (o *StreamOutbox) Publish(ctx context.Context, env events.Envelope) error {
	if err := validateEnvelope(env); err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{
			"event_id":   env.EventID,
			"event_type": env.EventType,
			"envelope":   string(b),
		},
	}).Err()
}

// validateEnvelope 做最小字段校验，防止下游处理脏消息。
func validateEnvelope(env events.Envelope) error {
	if env.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if env.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	return nil
}

// decodeEnvelope 解析并校验来自 Stream 或 Kafka 的事件信封。
func decodeEnvelope(b []byte) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return events.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := validateEnvelope(env); err != nil {
		return events.Envelope{}, err
	}
	return env, nil
}
