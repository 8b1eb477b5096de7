// Package resp 提供统一的 HTTP JSON 响应封装。
// 所有接口（含错误）均返回相同结构的信封，code 为 0 表示成功。
package resp

import (
	"encoding/json"
	"net/http"
)

// Code 表示业务响应码
type Code int

const (
	CodeOK            Code = 0
	CodeInvalidParam  Code = 10001
	CodeInternalError Code = 10002
	CodeTimeout       Code = 10003
)

// Response 统一响应信封
type Response[T any] struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// HTTPStatusFromCode 将业务响应码映射为 HTTP 状态码
func HTTPStatusFromCode(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON 以指定 HTTP 状态码写出响应信封
func WriteJSON[T any](w http.ResponseWriter, status int, code Code, message string, data T, requestID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body := Response[T]{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	}
	// 写响应头之后编码失败已无法补救，忽略错误
	_ = json.NewEncoder(w).Encode(body)
}

// OK 写出成功响应
func OK[T any](w http.ResponseWriter, data T, requestID, traceID string) {
	WriteJSON(w, http.StatusOK, CodeOK, "ok", data, requestID, traceID)
}

// Error 写出错误响应，data 置空
func Error(w http.ResponseWriter, status int, code Code, message, requestID, traceID string) {
	WriteJSON[any](w, status, code, message, nil, requestID, traceID)
}
