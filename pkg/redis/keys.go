package redis

import "fmt"

// StockKey 商品库存缓存 key。数据库是唯一事实来源，缓存只用于展示。
func StockKey(productID uint) string {
	return fmt.Sprintf("genericstore:stock:%d", productID)
}

// IdempotencyKey 客户端 Idempotency-Key -> 持有它的 request_id。
func IdempotencyKey(orderID uint, idemKey string) string {
	return fmt.Sprintf("genericstore:idem:fulfill:%d:%s", orderID, idemKey)
}

// RequestStatusKey 请求状态 key（pending/success/failed）。
func RequestStatusKey(requestID string) string {
	return fmt.Sprintf("genericstore:request:status:%s", requestID)
}

// RateLimitKey 写接口限流 key：优先按用户，未知用户时按 IP 降级。
func RateLimitKey(userID uint, clientIP string) string {
	if userID > 0 {
		return fmt.Sprintf("genericstore:rate_limit:user:%d", userID)
	}
	return fmt.Sprintf("genericstore:rate_limit:ip:%s", clientIP)
}
