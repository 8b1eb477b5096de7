// Package middleware 提供幂等性中间件
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/cache"
	"github.com/MorseWayne/sales_manager/internal/resp"
)

// IdempotencyConfig 幂等性中间件配置
type IdempotencyConfig struct {
	// 幂等键头名称
	IdempotencyKeyHeader string

	// 跳过的请求方法
	SkipMethods []string

	// 幂等键缓存TTL
	CacheTTL time.Duration
}

// DefaultIdempotencyConfig 默认幂等性配置
func DefaultIdempotencyConfig() *IdempotencyConfig {
	return &IdempotencyConfig{
		IdempotencyKeyHeader: "X-Idempotency-Key",
		SkipMethods:          []string{"GET", "HEAD", "OPTIONS"},
		CacheTTL:             24 * time.Hour,
	}
}

// IdempotencyMiddleware 幂等性中间件。
// 客户端携带相同幂等键的写请求在 TTL 内只放行第一次，重复请求返回 409，
// 用于保护订单状态变更等不可重放的操作。未携带幂等键或缓存不可用时放行。
func IdempotencyMiddleware(store cache.Cache, logger *zap.Logger, config ...*IdempotencyConfig) gin.HandlerFunc {
	cfg := DefaultIdempotencyConfig()
	if len(config) > 0 && config[0] != nil {
		cfg = config[0]
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		for _, skipMethod := range cfg.SkipMethods {
			if method == skipMethod {
				c.Next()
				return
			}
		}

		// 幂等保护由客户端显式声明，未携带幂等键的请求不做去重
		idempotencyKey := c.GetHeader(cfg.IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}
		c.Set("idempotency_key", idempotencyKey)

		cacheKey := fmt.Sprintf("idempotency:%s", idempotencyKey)
		ok, err := store.SetNX(c.Request.Context(), cacheKey, "1", cfg.CacheTTL)
		if err != nil {
			logger.Warn("idempotency check failed, allowing request",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !ok {
			requestID := getRequestID(c)
			resp.Error(c.Writer, http.StatusConflict, resp.CodeInvalidParam,
				"重复请求", requestID, getTraceID(c))
			c.Abort()
			return
		}

		c.Next()
	}
}

// getRequestID 获取请求ID
func getRequestID(c *gin.Context) string {
	if rid := RequestIDFromContext(c.Request.Context()); rid != "" {
		return rid
	}
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getTraceID 获取追踪ID
func getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}
