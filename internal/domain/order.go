package domain

import (
	"math"
	"time"
)

// OrderStatus 表示订单状态
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"          // 待确认
	OrderStatusConfirmed       OrderStatus = "confirmed"        // 已确认
	OrderStatusShipping        OrderStatus = "shipping"         // 发货中
	OrderStatusCompleted       OrderStatus = "completed"        // 已完成
	OrderStatusCancelled       OrderStatus = "cancelled"        // 已取消
	OrderStatusRefundRequested OrderStatus = "refund_requested" // 申请退款
	OrderStatusRefunding       OrderStatus = "refunding"        // 正在退款
	OrderStatusRefunded        OrderStatus = "refunded"         // 已退款
)

// statusLabels 订单状态的中文展示名
var statusLabels = map[OrderStatus]string{
	OrderStatusPending:         "待确认",
	OrderStatusConfirmed:       "已确认",
	OrderStatusShipping:        "发货中",
	OrderStatusCompleted:       "已完成",
	OrderStatusCancelled:       "已取消",
	OrderStatusRefundRequested: "申请退款",
	OrderStatusRefunding:       "正在退款",
	OrderStatusRefunded:        "已退款",
}

// IsValid 报告状态是否为已定义的枚举值
func (s OrderStatus) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label 返回状态的中文展示名，未知状态返回原始值
func (s OrderStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsTerminal 报告状态是否为终态；终态订单不允许再发生任何状态迁移
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// IsStockConsuming 报告该状态是否占用库存。
// 订单首次进入占用库存状态时执行扣减，此后在占用状态之间流转不重复扣减。
func (s OrderStatus) IsStockConsuming() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusShipping, OrderStatusCompleted:
		return true
	}
	return false
}

// CountsTowardProfit 报告该状态的订单是否计入批次总利润
func (s OrderStatus) CountsTowardProfit() bool {
	return s.IsStockConsuming()
}

// TransitionTable 定义订单状态迁移规则：键为当前状态，值为允许迁入的目标状态集合
type TransitionTable map[OrderStatus][]OrderStatus

// DefaultTransitionTable 返回默认的订单状态迁移表。
// 正向流：pending -> confirmed -> shipping -> completed；
// 非终态均可取消或申请退款；退款链：refund_requested -> refunding -> refunded。
func DefaultTransitionTable() TransitionTable {
	return TransitionTable{
		OrderStatusPending: {
			OrderStatusConfirmed, OrderStatusCancelled, OrderStatusRefundRequested,
		},
		OrderStatusConfirmed: {
			OrderStatusShipping, OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefundRequested,
		},
		OrderStatusShipping: {
			OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefundRequested,
		},
		OrderStatusRefundRequested: {
			OrderStatusRefunding, OrderStatusRefunded, OrderStatusCancelled,
		},
		OrderStatusRefunding: {
			OrderStatusRefunded,
		},
		// 终态无出边
		OrderStatusCompleted: {},
		OrderStatusCancelled: {},
		OrderStatusRefunded:  {},
	}
}

// CanTransition 报告是否允许从 from 迁移到 to
func (t TransitionTable) CanTransition(from, to OrderStatus) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Order 表示订单领域模型。
// SalesAmount、TotalCost、GrossProfit 为派生字段，保存前必须重算；
// StockDeducted 记录该订单是否已执行过库存扣减，保证扣减恰好一次。
type Order struct {
	ID            int64       `json:"id"`
	OrderNumber   string      `json:"order_number"`
	BatchID       int64       `json:"batch_id"`
	CustomerID    int64       `json:"customer_id"`
	ProductID     int64       `json:"product_id"`
	Quantity      int         `json:"quantity"`
	UnitPrice     float64     `json:"unit_price"`
	OtherCosts    float64     `json:"other_costs"`
	SalesAmount   float64     `json:"sales_amount"`
	TotalCost     float64     `json:"total_cost"`
	GrossProfit   float64     `json:"gross_profit"`
	Status        OrderStatus `json:"status"`
	StatusLabel   string      `json:"status_label"`
	StockDeducted bool        `json:"stock_deducted"`
	OrderDate     time.Time   `json:"order_date"`
	Remark        string      `json:"remark"`
	CreatedBy     int64       `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// roundMoney 四舍五入到分
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeDerived 根据数量、单价、成本价和其他费用重算派生金额字段。
// costPrice 取下单时刻商品的成本价快照。
func (o *Order) ComputeDerived(costPrice float64) {
	o.SalesAmount = roundMoney(float64(o.Quantity) * o.UnitPrice)
	o.TotalCost = roundMoney(costPrice*float64(o.Quantity) + o.OtherCosts)
	o.GrossProfit = roundMoney(o.SalesAmount - o.TotalCost)
}

// CreateOrderRequest 表示创建订单请求
type CreateOrderRequest struct {
	BatchID    int64   `json:"batch_id" binding:"required"`
	CustomerID int64   `json:"customer_id" binding:"required"`
	ProductID  int64   `json:"product_id" binding:"required"`
	Quantity   int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice  float64 `json:"unit_price" binding:"required,gte=0"`
	OtherCosts float64 `json:"other_costs" binding:"gte=0"`
	OrderDate  string  `json:"order_date"` // YYYY-MM-DD，为空时取当天
	Remark     string  `json:"remark" binding:"max=255"`
}

// UpdateOrderRequest 表示更新订单请求；仅待确认订单允许修改交易字段
type UpdateOrderRequest struct {
	CustomerID *int64   `json:"customer_id"`
	Quantity   *int     `json:"quantity"`
	UnitPrice  *float64 `json:"unit_price"`
	OtherCosts *float64 `json:"other_costs"`
	OrderDate  *string  `json:"order_date"`
	Remark     *string  `json:"remark"`
}

// UpdateOrderStatusRequest 表示单笔订单状态迁移请求
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Remark string      `json:"remark" binding:"max=255"`
}

// BatchUpdateStatusRequest 表示批量状态迁移请求
type BatchUpdateStatusRequest struct {
	OrderIDs []int64     `json:"order_ids" binding:"required,min=1"`
	Status   OrderStatus `json:"status" binding:"required"`
}

// BatchUpdateStatusFailure 记录批量迁移中单笔订单的失败原因
type BatchUpdateStatusFailure struct {
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// BatchUpdateStatusResponse 表示批量状态迁移响应。
// 逐单独立处理，单笔失败不影响其余订单。
type BatchUpdateStatusResponse struct {
	Succeeded []int64                    `json:"succeeded"`
	Failed    []BatchUpdateStatusFailure `json:"failed"`
}

// OrderListRequest 表示订单列表查询请求
type OrderListRequest struct {
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	BatchID    *int64       `json:"batch_id"`
	CustomerID *int64       `json:"customer_id"`
	ProductID  *int64       `json:"product_id"`
	Status     *OrderStatus `json:"status"`
	CreatedBy  *int64       `json:"created_by"` // 普通用户强制为自身
	SortBy     *string      `json:"sort_by"`    // order_date, created_at, sales_amount, gross_profit
	SortOrder  *string      `json:"sort_order"`
}

// OrderListResponse 表示订单列表查询响应
type OrderListResponse struct {
	Orders   []*Order `json:"orders"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}
