package router

import (
	"errors"
	"net/http"
	"strconv"

	"genericstore/internal/apperr"
	"genericstore/internal/config"
	"genericstore/internal/inventory"
	"genericstore/internal/middleware"
	"genericstore/internal/orders"
	"genericstore/internal/store"
	rediskey "genericstore/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deps 汇总 HTTP 层依赖的服务。Redis 与 Cache 可为 nil，
// 此时幂等键、限流和缓存库存查询都会关闭。
type Deps struct {
	Store     *store.Store
	Manager   *orders.Manager
	Fulfiller *orders.Fulfiller
	Checkout  *orders.Checkout
	Ledger    *inventory.Ledger
	Cache     *rediskey.StockCache
	Redis     *rd.Client
	Config    config.AppConfig
	Logger    *zap.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	limit := middleware.RedisRateLimit(d.Redis, d.Config.WriteRateLimit, d.Config.WriteRateWindow, d.Logger)

	// 商品目录（只读）
	r.GET("/api/products", listProducts(d))

	// 订单
	r.POST("/api/orders", limit, createOrder(d))
	r.GET("/api/orders", listOrders(d))
	r.GET("/api/orders/:id", getOrder(d))
	r.DELETE("/api/orders/:id", deleteOrder(d))
	r.GET("/api/users/:user_id/orders", listUserOrders(d))
	r.POST("/api/users/:user_id/orders", limit, createAndFulfill(d))

	// 订单明细
	r.POST("/api/orders/:id/items", limit, fulfill(d))
	r.GET("/api/orders/:id/items", getOrderItems(d))

	// 库存
	r.GET("/api/inventory/:product_id", getQuantity(d))
	r.PUT("/api/inventory/:product_id", setQuantity(d))
	r.GET("/api/inventory/:product_id/cached", getCachedQuantity(d))
}

var statusByCode = map[string]int{
	"INVALID_INPUT":      http.StatusBadRequest,
	"USER_NOT_EXISTS":    http.StatusBadRequest,
	"EMAIL_NOT_VERIFIED": http.StatusBadRequest,
	"ORDER_NOT_FOUND":    http.StatusNotFound,
	"PRODUCT_NOT_FOUND":  http.StatusNotFound,
	"INSUFFICIENT_STOCK": http.StatusConflict,
	"DUPLICATE_REQUEST":  http.StatusConflict,
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"code": status, "error": code, "msg": msg})
}

// writeError 把业务错误映射为响应；存储类错误只记日志，不向外暴露细节。
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	code := apperr.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, code, "unexpected error")
		return
	}

	body := gin.H{"code": status, "error": code, "msg": err.Error()}
	var ise *apperr.InsufficientStockError
	if errors.As(err, &ise) {
		body["product_id"] = ise.ProductID
		body["available"] = ise.Available
		body["requested"] = ise.Requested
	}
	c.JSON(status, body)
}

// parseID 解析 32 位十进制路径参数。
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_INPUT", "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func listProducts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Store.ListProducts(c.Request.Context())
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func createOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID uint `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		o, err := d.Manager.CreateOrder(c.Request.Context(), req.UserID)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": o})
	}
}

func getOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		o, found, err := d.Manager.GetOrder(c.Request.Context(), id)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		if !found {
			respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

func deleteOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := d.Manager.DeleteOrder(c.Request.Context(), id); err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "order deleted"})
	}
}

func listUserOrders(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseID(c, "user_id")
		if !ok {
			return
		}
		list, err := d.Manager.ListOrdersForUser(c.Request.Context(), userID)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func listOrders(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Manager.ListOrders(c.Request.Context())
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createAndFulfill 为用户建单并一次性写入明细；填充失败时不会留下空订单。
func createAndFulfill(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseID(c, "user_id")
		if !ok {
			return
		}
		var lines []orders.Line
		if err := c.ShouldBindJSON(&lines); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		o, err := d.Checkout.CreateAndFulfill(c.Request.Context(), userID, lines)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": o})
	}
}

func getOrderItems(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		items, err := d.Manager.GetOrderItems(c.Request.Context(), id)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": items})
	}
}

// fulfill 为订单添加明细并扣减库存。
// 带 Idempotency-Key 且配置了 Redis 时，重试请求会回放首次成功的结果，不会重复扣库存：
// 1. 用新的 request_id 抢占幂等 key（SETNX）
// 2. key 已被成功请求占用则回放订单，仍在处理中则返回重复请求
// 3. 写 pending 状态，执行扣减，再落最终状态
// 4. 失败时释放 key，允许客户端重试
func fulfill(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseID(c, "id")
		if !ok {
			return
		}
		var lines []orders.Line
		if err := c.ShouldBindJSON(&lines); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}

		idemKey := c.GetHeader("Idempotency-Key")
		if idemKey == "" || d.Redis == nil {
			o, err := d.Fulfiller.Fulfill(c.Request.Context(), orderID, lines)
			if err != nil {
				writeError(c, d.Logger, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
			return
		}

		ctx := c.Request.Context()
		ttl := d.Config.IdempotencyTTL
		key := rediskey.IdempotencyKey(orderID, idemKey)
		requestID := uuid.NewString()

		acquired, owner, err := rediskey.AcquireIdempotency(ctx, d.Redis, key, requestID, ttl)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		if !acquired {
			replayOrDuplicate(c, d, owner)
			return
		}

		log := d.Logger.With(zap.String("request_id", requestID), zap.Uint("order_id", orderID))
		putState := func(st rediskey.RequestState) {
			st.RequestID = requestID
			if err := rediskey.PutRequestState(ctx, d.Redis, st, ttl); err != nil {
				log.Warn("record request state", zap.String("status", st.Status), zap.Error(err))
			}
		}

		putState(rediskey.RequestState{Status: rediskey.RequestPending, OrderID: orderID})
		o, err := d.Fulfiller.Fulfill(ctx, orderID, lines)
		if err != nil {
			putState(rediskey.RequestState{Status: rediskey.RequestFailed, OrderID: orderID, Reason: apperr.Code(err)})
			if relErr := rediskey.ReleaseIdempotencyIfMatch(ctx, d.Redis, key, requestID); relErr != nil {
				log.Warn("release idempotency key", zap.Error(relErr))
			}
			writeError(c, d.Logger, err)
			return
		}
		putState(rediskey.RequestState{Status: rediskey.RequestSuccess, OrderID: orderID})
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o, "request_id": requestID})
	}
}

func replayOrDuplicate(c *gin.Context, d Deps, owner string) {
	ctx := c.Request.Context()
	if owner != "" {
		st, found, err := rediskey.GetRequestState(ctx, d.Redis, owner)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		if found && st.Status == rediskey.RequestSuccess {
			o, found, err := d.Manager.GetOrder(ctx, st.OrderID)
			if err != nil {
				writeError(c, d.Logger, err)
				return
			}
			if found {
				c.JSON(http.StatusOK, gin.H{"code": 0, "data": o, "request_id": owner, "replayed": true})
				return
			}
		}
	}
	respondError(c, http.StatusConflict, "DUPLICATE_REQUEST", "a request with this idempotency key is in progress")
}

func getQuantity(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, ok := parseID(c, "product_id")
		if !ok {
			return
		}
		qty, err := d.Ledger.GetQuantity(c.Request.Context(), pid)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"product_id": pid, "quantity": qty}})
	}
}

// setQuantity 覆盖商品库存。
// 该接口要求管理员 token，避免被任意调用重置库存。
func setQuantity(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Config.AdminToken == "" || c.GetHeader("X-Admin-Token") != d.Config.AdminToken {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token")
			return
		}
		pid, ok := parseID(c, "product_id")
		if !ok {
			return
		}
		var req struct {
			Quantity *int `json:"quantity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
			respondError(c, http.StatusBadRequest, "INVALID_INPUT", "quantity is required")
			return
		}
		rec, err := d.Ledger.SetQuantity(c.Request.Context(), pid, *req.Quantity)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": rec})
	}
}

// getCachedQuantity 返回 Redis 中的库存副本，仅用于展示；可能落后于数据库，不参与扣减判断。
func getCachedQuantity(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		pid, ok := parseID(c, "product_id")
		if !ok {
			return
		}
		qty, found, err := d.Cache.Get(c.Request.Context(), pid)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"product_id": pid, "quantity": qty, "cached": found}})
	}
}
