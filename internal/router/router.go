// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/api"
	"github.com/MorseWayne/sales_manager/internal/cache"
	"github.com/MorseWayne/sales_manager/internal/config"
	"github.com/MorseWayne/sales_manager/internal/limiter"
	"github.com/MorseWayne/sales_manager/internal/middleware"
	"github.com/MorseWayne/sales_manager/internal/resp"
	"github.com/MorseWayne/sales_manager/internal/service"
)

// Dependencies 包含路由设置所需的所有依赖。
// LoginLimiter 和 StatusLimiter 可为 nil，表示不启用对应限流。
type Dependencies struct {
	UserHandler        *api.UserHandler
	CustomerHandler    *api.CustomerHandler
	ProductHandler     *api.ProductHandler
	BatchHandler       *api.BatchHandler
	OrderHandler       *api.OrderHandler
	StockRecordHandler *api.StockRecordHandler
	JWTService         service.JWTService
	Cache              cache.Cache
	LoginLimiter       limiter.Limiter
	StatusLimiter      limiter.Limiter
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	cfg    *config.Config
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.cfg = cfg
	r.deps = deps
	r.logger = lg

	r.setupMiddleware(cfg)
	r.setupRoutes()

	// 请求 ID、恢复、访问日志、超时在引擎外层以标准中间件方式套叠，
	// 保证路由内的 gin 中间件和处理器都能读到请求上下文中的请求 ID。
	var h http.Handler = r.engine
	h = middleware.Timeout(cfg.App.RequestTimeout)(h)
	h = middleware.AccessLog(lg)(h)
	h = middleware.Recovery(lg)(h)
	h = middleware.RequestID(h)
	return h
}

// setupMiddleware 设置 Gin 层中间件
func (r *GinRouter) setupMiddleware(cfg *config.Config) {
	r.engine.Use(r.corsMiddleware(cfg))
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes() {
	// 健康检查
	r.engine.GET("/healthz", r.healthCheck)

	// API v1 路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证路由（无需认证）
		auth := v1.Group("/auth")
		{
			login := []gin.HandlerFunc{}
			if r.deps.LoginLimiter != nil {
				login = append(login, limiter.LoginRateLimitMiddleware(r.deps.LoginLimiter))
			}
			login = append(login, r.wrapHandler(r.deps.UserHandler.Login))

			auth.POST("/register", r.wrapHandler(r.deps.UserHandler.Register))
			auth.POST("/login", login...)
			auth.POST("/refresh", r.wrapHandler(r.deps.UserHandler.RefreshToken))
		}

		// 用户路由（需要认证）
		users := v1.Group("/users")
		users.Use(r.authMiddleware())
		{
			users.GET("/profile", r.wrapHandler(r.deps.UserHandler.GetProfile))
		}

		// 客户路由（需要认证）
		customers := v1.Group("/customers")
		customers.Use(r.authMiddleware())
		{
			customers.POST("", r.wrapHandler(r.deps.CustomerHandler.CreateCustomer))
			customers.GET("", r.wrapHandler(r.deps.CustomerHandler.ListCustomers))
			customers.GET("/:id", r.wrapHandler(r.deps.CustomerHandler.GetCustomer))
			customers.PUT("/:id", r.wrapHandler(r.deps.CustomerHandler.UpdateCustomer))
			customers.DELETE("/:id", r.wrapHandler(r.deps.CustomerHandler.DeleteCustomer))
		}

		// 产品路由（需要认证；写操作需要管理员权限）
		products := v1.Group("/products")
		products.Use(r.authMiddleware())
		{
			products.GET("", r.wrapHandler(r.deps.ProductHandler.ListProducts))
			products.GET("/alerts/low-stock", r.wrapHandler(r.deps.ProductHandler.ListLowStock))
			products.GET("/:id", r.wrapHandler(r.deps.ProductHandler.GetProduct))

			adminProducts := products.Group("")
			adminProducts.Use(r.adminMiddleware())
			{
				adminProducts.POST("", r.wrapHandler(r.deps.ProductHandler.CreateProduct))
				adminProducts.PUT("/:id", r.wrapHandler(r.deps.ProductHandler.UpdateProduct))
				adminProducts.DELETE("/:id", r.wrapHandler(r.deps.ProductHandler.DeleteProduct))
			}
		}

		// 批次路由（需要认证）
		batches := v1.Group("/batches")
		batches.Use(r.authMiddleware())
		{
			batches.POST("", r.wrapHandler(r.deps.BatchHandler.CreateBatch))
			batches.GET("", r.wrapHandler(r.deps.BatchHandler.ListBatches))
			batches.GET("/:id", r.wrapHandler(r.deps.BatchHandler.GetBatch))
			batches.PUT("/:id", r.wrapHandler(r.deps.BatchHandler.UpdateBatch))
			batches.DELETE("/:id", r.wrapHandler(r.deps.BatchHandler.DeleteBatch))
			batches.POST("/:id/recalc", r.wrapHandler(r.deps.BatchHandler.RecalcProfit))
		}

		// 订单路由（需要认证）
		orders := v1.Group("/orders")
		orders.Use(r.authMiddleware())
		{
			orders.POST("", r.wrapHandler(r.deps.OrderHandler.CreateOrder))
			orders.GET("", r.wrapHandler(r.deps.OrderHandler.ListOrders))
			orders.GET("/:id", r.wrapHandler(r.deps.OrderHandler.GetOrder))
			orders.PUT("/:id", r.wrapHandler(r.deps.OrderHandler.UpdateOrder))
			orders.DELETE("/:id", r.wrapHandler(r.deps.OrderHandler.DeleteOrder))

			// 状态迁移路由：限流 + 幂等保护
			status := []gin.HandlerFunc{}
			if r.deps.StatusLimiter != nil {
				status = append(status, limiter.StatusChangeRateLimitMiddleware(r.deps.StatusLimiter))
			}
			if r.deps.Cache != nil {
				status = append(status, middleware.IdempotencyMiddleware(r.deps.Cache, r.logger))
			}

			orders.PUT("/status", append(status, r.wrapHandler(r.deps.OrderHandler.BatchUpdateStatus))...)
			orders.PUT("/:id/status", append(status, r.wrapHandler(r.deps.OrderHandler.UpdateStatus))...)
		}

		// 库存台账路由（需要认证；手工变更需要管理员权限）
		stockRecords := v1.Group("/stock-records")
		stockRecords.Use(r.authMiddleware())
		{
			stockRecords.GET("", r.wrapHandler(r.deps.StockRecordHandler.ListRecords))
			stockRecords.GET("/:id", r.wrapHandler(r.deps.StockRecordHandler.GetRecord))

			adminStock := stockRecords.Group("")
			adminStock.Use(r.adminMiddleware())
			{
				adminStock.POST("", r.wrapHandler(r.deps.StockRecordHandler.CreateMovement))
			}
		}

		// 管理员路由（需要认证+管理员权限）
		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware(), r.adminMiddleware())
		{
			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", r.wrapHandler(r.deps.UserHandler.ListUsers))
				adminUsers.PUT("/role", r.wrapHandler(r.deps.UserHandler.UpdateUserRole))
				adminUsers.PUT("/status", r.wrapHandler(r.deps.UserHandler.UpdateUserStatus))
			}
		}
	}
}

// healthCheck 健康检查处理器
func (r *GinRouter) healthCheck(c *gin.Context) {
	data := map[string]string{
		"status":  "ok",
		"version": r.cfg.App.Version,
	}
	resp.OK(c.Writer, &data, middleware.RequestIDFromContext(c.Request.Context()), "")
}

// wrapHandler 将标准的 http.HandlerFunc 包装为 gin.HandlerFunc
func (r *GinRouter) wrapHandler(handler func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return gin.WrapF(handler)
}

// wrapMiddleware 将标准库风格的中间件适配为 gin.HandlerFunc。
// 中间件未调用 next 时（如认证失败已写响应），终止后续处理。
func wrapMiddleware(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			passed = true
			c.Request = req
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// corsMiddleware CORS 中间件
func (r *GinRouter) corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowOrigin := "*"
	if len(cfg.CORS.AllowedOrigins) > 0 {
		allowOrigin = cfg.CORS.AllowedOrigins[0]
	}
	allowMethods := joinHeaderValues(cfg.CORS.AllowedMethods, "GET, POST, PUT, DELETE, OPTIONS")
	allowHeaders := joinHeaderValues(cfg.CORS.AllowedHeaders, "Content-Type, Authorization")

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", allowMethods)
		c.Header("Access-Control-Allow-Headers", allowHeaders)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// joinHeaderValues 将配置列表拼为头部值，列表为空时使用默认值
func joinHeaderValues(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	out := values[0]
	for _, v := range values[1:] {
		out += ", " + v
	}
	return out
}

// authMiddleware 认证中间件，校验JWT并注入当前用户。
// 认证通过后将用户ID写入 gin 上下文，供限流键生成使用。
func (r *GinRouter) authMiddleware() gin.HandlerFunc {
	mw := middleware.AuthMiddleware(r.deps.JWTService, r.logger)
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			passed = true
			c.Request = req
			if user := middleware.UserFromContext(req.Context()); user != nil {
				c.Set("user_id", user.ID)
			}
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// adminMiddleware 管理员权限中间件
func (r *GinRouter) adminMiddleware() gin.HandlerFunc {
	return wrapMiddleware(middleware.RequireAdmin(r.logger))
}
