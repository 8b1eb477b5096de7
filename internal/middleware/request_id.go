package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"

	// 客户端传入的请求 ID 最大长度，超长则丢弃并重新生成
	maxRequestIDLen = 64
)

// RequestID 确保每个请求都携带请求 ID：
// 优先沿用请求头 X-Request-ID（过长或为空时生成 UUID），
// 并将该 ID 写入响应头与请求上下文，供日志与错误响应关联。
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, rid)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), rid)))
	})
}
