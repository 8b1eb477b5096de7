package domain

import (
	"fmt"
)

// ValidationError 表示请求参数校验失败
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError 创建参数校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InsufficientStockError 表示库存不足，携带当前库存与请求数量
type InsufficientStockError struct {
	ProductID int64
	Current   int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: current %d, requested %d",
		e.ProductID, e.Current, e.Requested)
}

// InvalidTransitionError 表示不允许的订单状态迁移
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition: %s -> %s", e.From, e.To)
}
