package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const (
	// RequestPending 请求处理中。
	RequestPending = "pending"
	// RequestSuccess 已成功，OrderID 有值。
	RequestSuccess = "success"
	// RequestFailed 失败（终态）。
	RequestFailed = "failed"
)

// RequestState 记录一次请求的处理结果。
type RequestState struct {
	RequestID string
	Status    string
	OrderID   uint
	Reason    string
}

// GetRequestState 读取请求状态；found=false 表示 key 不存在。
func GetRequestState(ctx context.Context, rdb *rd.Client, requestID string) (RequestState, bool, error) {
	m, err := rdb.HGetAll(ctx, RequestStatusKey(requestID)).Result()
	if err != nil {
		return RequestState{}, false, err
	}
	if len(m) == 0 {
		return RequestState{}, false, nil
	}

	out := RequestState{
		RequestID: requestID,
		Status:    m["status"],
		Reason:    m["reason"],
	}
	if out.Status == "" {
		out.Status = RequestPending
	}
	if v, err := strconv.ParseUint(m["order_id"], 10, 64); err == nil {
		out.OrderID = uint(v)
	}
	return out, true, nil
}

// PutRequestState 写入状态并刷新 TTL。
func PutRequestState(ctx context.Context, rdb *rd.Client, st RequestState, ttl time.Duration) error {
	key := RequestStatusKey(st.RequestID)
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"request_id", st.RequestID,
		"status", st.Status,
		"order_id", strconv.FormatUint(uint64(st.OrderID), 10),
		"reason", st.Reason,
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
