package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genericstore/internal/config"
	"genericstore/internal/db"
	"genericstore/internal/events"
	"genericstore/internal/inventory"
	"genericstore/internal/model"
	"genericstore/internal/observability"
	"genericstore/internal/orders"
	"genericstore/internal/queue"
	"genericstore/internal/router"
	"genericstore/internal/store"
	rediskey "genericstore/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	seedDemo := flag.Bool("seed-demo", false, "create a verified demo user and a stocked demo product when the catalog is empty")
	flag.Parse()

	// .env 可选，已有环境变量优先
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Fatal("tracing setup", zap.Error(err))
	}

	// 1. 连接数据库，自动建表
	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	s := store.New(gdb)
	if *seedDemo {
		if err := seedDemoData(ctx, gdb, logger); err != nil {
			logger.Fatal("seed demo data", zap.Error(err))
		}
	}

	// 2. Redis：库存缓存、幂等 key、限流、事件出箱
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis ping", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	cache := rediskey.NewStockCache(rdb, cfg.StockCacheTTL)

	// 3. 事件链路：Stream 出箱 -> relay -> Kafka -> 库存缓存消费者
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	outbox := queue.NewStreamOutbox(rdb, cfg.OrderEventStream)
	relay := queue.NewRelay(rdb, producer, logger.Named("relay"),
		cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, s, cache, logger.Named("consumer"))
	go relay.Run(ctx)
	go consumer.Run(ctx)

	// 4. 业务服务
	var publisher events.Publisher = outbox
	ledger := inventory.NewLedger(s, cache, logger.Named("inventory"))
	manager := orders.NewManager(s, s, logger.Named("orders"),
		orders.WithPublisher(publisher, cfg.ServiceName))
	fulfiller := orders.NewFulfiller(s, ledger, logger.Named("fulfillment"),
		orders.WithPublisher(publisher, cfg.ServiceName))

	r := gin.New()
	r.Use(gin.Recovery())
	router.Setup(r, router.Deps{
		Store:     s,
		Manager:   manager,
		Fulfiller: fulfiller,
		Checkout:  orders.NewCheckout(manager, fulfiller),
		Ledger:    ledger,
		Cache:     cache,
		Redis:     rdb,
		Config:    cfg,
		Logger:    logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := consumer.Close(); err != nil {
		logger.Warn("kafka consumer close", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		logger.Warn("kafka producer close", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Warn("redis close", zap.Error(err))
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

// seedDemoData 为空库写入一个已验证用户和一个有库存的商品，便于本地调试和压测。
func seedDemoData(ctx context.Context, gdb *gorm.DB, logger *zap.Logger) error {
	var n int64
	if err := gdb.WithContext(ctx).Model(&model.Product{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u := model.User{Email: "demo@example.com", EmailVerified: true}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		p := model.Product{Name: "Demo product", Description: "seeded for local testing"}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.StockRecord{ProductID: p.ID, Quantity: 100}).Error; err != nil {
			return err
		}
		logger.Info("seeded demo data", zap.Uint("user_id", u.ID), zap.Uint("product_id", p.ID))
		return nil
	})
}
