package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/api"
	"github.com/MorseWayne/sales_manager/internal/cache"
	"github.com/MorseWayne/sales_manager/internal/config"
	"github.com/MorseWayne/sales_manager/internal/database"
	"github.com/MorseWayne/sales_manager/internal/limiter"
	"github.com/MorseWayne/sales_manager/internal/logger"
	"github.com/MorseWayne/sales_manager/internal/mq"
	"github.com/MorseWayne/sales_manager/internal/repo"
	"github.com/MorseWayne/sales_manager/internal/router"
	"github.com/MorseWayne/sales_manager/internal/service"
)

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// 在 HTTP 服务器启动前执行迁移，保证处理请求时表结构已就绪
	migrationsDir := cfg.Migrations.Dir
	lg.Sugar().Infow("using migrations directory", "path", migrationsDir)

	if err := db.RunMigrations(migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initCache 初始化缓存实例
func initCache(cfg *config.Config, lg *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return cache.NewNullCache()
	}

	switch cfg.Cache.Type {
	case "redis":
		redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		redisCache, err := cache.NewRedisCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
			lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
			return cache.NewMemoryCache()
		}
		lg.Sugar().Infow("cache enabled", "type", "redis", "addr", redisAddr, "ttl", cfg.Cache.TTL)
		return redisCache
	case "memory":
		lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache()
	default:
		lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
		return cache.NewMemoryCache()
	}
}

// initPublisher 初始化事件发布器，MQ 未启用或连接失败时使用空实现
func initPublisher(cfg *config.Config, lg *zap.Logger) mq.Publisher {
	if !cfg.MQ.Enabled {
		lg.Sugar().Infow("message queue disabled")
		return mq.NewNopPublisher()
	}

	publisher, err := mq.NewEventPublisher(cfg.MQ.URL, cfg.MQ.Exchange, lg)
	if err != nil {
		lg.Sugar().Warnw("failed to connect to message queue, events will be dropped", "error", err)
		return mq.NewNopPublisher()
	}
	lg.Sugar().Infow("message queue connected", "exchange", cfg.MQ.Exchange)
	return publisher
}

// initLimiters 初始化登录与订单状态变更限流器。
// 限流依赖 Redis，未启用或缓存非 Redis 时返回 nil（不限流）。
func initLimiters(cfg *config.Config, cacheInstance cache.Cache, lg *zap.Logger) (limiter.Limiter, limiter.Limiter) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}

	redisCache, ok := cacheInstance.(*cache.RedisCache)
	if !ok {
		lg.Sugar().Warnw("rate limit requires redis cache, rate limiting disabled")
		return nil, nil
	}

	loginLimiter := limiter.NewTokenBucketLimiter(redisCache.Client(), &limiter.Config{
		Rate:      int64(cfg.RateLimit.Rate),
		Window:    time.Second,
		Burst:     cfg.RateLimit.Capacity,
		KeyPrefix: "ratelimit:login",
	})
	statusLimiter := limiter.NewTokenBucketLimiter(redisCache.Client(), &limiter.Config{
		Rate:      int64(cfg.RateLimit.Rate),
		Window:    time.Second,
		Burst:     cfg.RateLimit.Capacity,
		KeyPrefix: "ratelimit:order-status",
	})
	lg.Sugar().Infow("rate limiting enabled", "rate", cfg.RateLimit.Rate, "capacity", cfg.RateLimit.Capacity)
	return loginLimiter, statusLimiter
}

// initDependencies 初始化应用依赖（仓储、服务、处理器）
func initDependencies(cfg *config.Config, db *database.DB, cacheInstance cache.Cache, publisher mq.Publisher, lg *zap.Logger) *router.Dependencies {
	// 依赖注入链：仓储 -> 服务 -> API处理器
	userRepo := repo.NewUserRepository(db)
	userService := service.NewUserService(userRepo, lg)
	jwtService := service.NewJWTService(cfg, lg)
	userHandler := api.NewUserHandler(userService, jwtService, lg)

	customerRepo := repo.NewCustomerRepository(db)
	customerService := service.NewCustomerService(customerRepo, lg)
	customerHandler := api.NewCustomerHandler(customerService, lg)

	baseProductRepo := repo.NewProductRepository(db)

	// 可选缓存装饰器；库存变动后由服务层主动失效缓存
	var productRepo repo.ProductRepository
	var invalidator service.ProductCacheInvalidator
	if cfg.Cache.Enabled {
		cachedRepo := repo.NewCachedProductRepository(baseProductRepo, cacheInstance, cfg.Cache.TTL)
		productRepo = cachedRepo
		invalidator = cachedRepo
	} else {
		productRepo = baseProductRepo
	}

	productService := service.NewProductService(productRepo, cfg.Stock.LowStockThreshold, lg)
	productHandler := api.NewProductHandler(productService, lg)

	batchRepo := repo.NewBatchRepository(db)
	batchService := service.NewBatchService(batchRepo, lg)
	batchHandler := api.NewBatchHandler(batchService, lg)

	orderRepo := repo.NewOrderRepository(db)
	orderService := service.NewOrderService(orderRepo, batchRepo, productRepo, customerRepo, invalidator, publisher, lg)
	orderHandler := api.NewOrderHandler(orderService, lg)

	stockRecordRepo := repo.NewStockRecordRepository(db)
	stockService := service.NewStockService(stockRecordRepo, productRepo, cfg.Stock.LowStockThreshold, invalidator, publisher, lg)
	stockRecordHandler := api.NewStockRecordHandler(stockService, lg)

	return &router.Dependencies{
		UserHandler:        userHandler,
		CustomerHandler:    customerHandler,
		ProductHandler:     productHandler,
		BatchHandler:       batchHandler,
		OrderHandler:       orderHandler,
		StockRecordHandler: stockRecordHandler,
		JWTService:         jwtService,
		Cache:              cacheInstance,
	}
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

// main 为应用入口，协调各个组件的初始化和启动
func main() {
	// 1) 加载配置和初始化日志
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}

	// 2) 初始化数据库连接并执行迁移
	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}()

	// 3) 初始化缓存与事件发布器
	cacheInstance := initCache(cfg, lg)
	publisher := initPublisher(cfg, lg)
	defer publisher.Close()

	// 4) 初始化应用依赖（仓储、服务、处理器）
	deps := initDependencies(cfg, db, cacheInstance, publisher, lg)
	deps.LoginLimiter, deps.StatusLimiter = initLimiters(cfg, cacheInstance, lg)

	// 5) 设置路由和中间件
	handler := router.New().Setup(cfg, deps, lg)

	// 6) 启动 HTTP 服务器
	startServer(cfg, handler, lg)
}
