package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，全部来自环境变量（可由 .env 加载），带开发环境默认值。
type AppConfig struct {
	ServiceName string
	HTTPAddr    string

	// DBDriver 取值 "sqlite" 或 "postgres"。
	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int

	RedisAddr string
	RedisDB   int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream 事件出箱，由 relay 转发到 Kafka。
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 写接口限流：按用户（未知用户时按 IP）。
	WriteRateLimit  int
	WriteRateWindow time.Duration

	StockCacheTTL  time.Duration
	IdempotencyTTL time.Duration

	// AdminToken 保护设置库存接口。
	AdminToken string

	// OtelEndpoint 非空时开启 OTLP 链路上报。
	OtelEndpoint string
}

// Load 读取并校验配置。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName:        getEnv("SERVICE_NAME", "genericstore-orders"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBDriver:           getEnv("DB_DRIVER", "sqlite"),
		DBDSN:              getEnv("DB_DSN", "genericstore.db?_foreign_keys=1&_busy_timeout=5000&_txlock=immediate"),
		DBMaxOpenConns:     8,
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "genericstore.order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "genericstore-stock-cache"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "genericstore:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "genericstore-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "genericstore-relay-1"),
		WriteRateLimit:     100,
		WriteRateWindow:    time.Second,
		StockCacheTTL:      24 * time.Hour,
		IdempotencyTTL:     10 * time.Minute,
		AdminToken:         getEnv("ADMIN_TOKEN", "dev-admin-token"),
		OtelEndpoint:       getEnv("OTEL_ENDPOINT", ""),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}

	maxConns, err := getEnvInt("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	if maxConns <= 0 {
		return AppConfig{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be > 0")
	}
	cfg.DBMaxOpenConns = maxConns

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("WRITE_RATE_LIMIT", cfg.WriteRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid WRITE_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("WRITE_RATE_LIMIT must be > 0")
	}
	cfg.WriteRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("WRITE_RATE_WINDOW_SEC", int(cfg.WriteRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid WRITE_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("WRITE_RATE_WINDOW_SEC must be > 0")
	}
	cfg.WriteRateWindow = time.Duration(rateWindowSec) * time.Second

	stockTTLHour, err := getEnvInt("STOCK_CACHE_TTL_HOUR", int(cfg.StockCacheTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid STOCK_CACHE_TTL_HOUR: %w", err)
	}
	if stockTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("STOCK_CACHE_TTL_HOUR must be > 0")
	}
	cfg.StockCacheTTL = time.Duration(stockTTLHour) * time.Hour

	idemTTLMin, err := getEnvInt("IDEMPOTENCY_TTL_MIN", int(cfg.IdempotencyTTL.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid IDEMPOTENCY_TTL_MIN: %w", err)
	}
	if idemTTLMin <= 0 {
		return AppConfig{}, fmt.Errorf("IDEMPOTENCY_TTL_MIN must be > 0")
	}
	cfg.IdempotencyTTL = time.Duration(idemTTLMin) * time.Minute

	if cfg.DBDSN == "" {
		return AppConfig{}, fmt.Errorf("DB_DSN must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.OrderEventStream == "" || cfg.OrderEventGroup == "" || cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM, ORDER_EVENT_GROUP and ORDER_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 解析逗号分隔列表，忽略空项。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
