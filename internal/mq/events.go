// Package mq 提供基于RabbitMQ的业务事件发布。
// 事件在数据库事务提交后尽力而为地发布，发布失败只记日志不影响业务结果。
package mq

import (
	"time"
)

// 事件路由键
const (
	RoutingKeyOrderStatusChanged = "order.status.changed"
	RoutingKeyStockMovement      = "stock.movement"
	RoutingKeyLowStock           = "stock.low"
)

// OrderStatusChangedEvent 订单状态变更事件
type OrderStatusChangedEvent struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BatchID     int64     `json:"batch_id"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	OperatedBy  int64     `json:"operated_by"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// StockMovementEvent 库存变更事件
type StockMovementEvent struct {
	RecordID      int64     `json:"record_id"`
	ProductID     int64     `json:"product_id"`
	OperationType string    `json:"operation_type"`
	Quantity      int       `json:"quantity"`
	BeforeStock   int       `json:"before_stock"`
	AfterStock    int       `json:"after_stock"`
	OrderID       *int64    `json:"order_id,omitempty"`
	OperatedBy    int64     `json:"operated_by"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// LowStockEvent 低库存告警事件
type LowStockEvent struct {
	ProductID    int64     `json:"product_id"`
	ProductName  string    `json:"product_name"`
	CurrentStock int       `json:"current_stock"`
	Threshold    int       `json:"threshold"`
	OccurredAt   time.Time `json:"occurred_at"`
}
