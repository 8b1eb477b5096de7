package domain

import (
	"time"
)

// StockOperationType 表示库存操作类型
type StockOperationType string

const (
	StockOperationIn     StockOperationType = "in"     // 入库
	StockOperationOut    StockOperationType = "out"    // 出库
	StockOperationAdjust StockOperationType = "adjust" // 盘点调整
)

// IsValid 报告操作类型是否为已定义的枚举值
func (t StockOperationType) IsValid() bool {
	switch t {
	case StockOperationIn, StockOperationOut, StockOperationAdjust:
		return true
	}
	return false
}

// StockRecord 表示一条库存流水。
// 流水只增不改：每次库存变更在同一事务内追加一条记录，
// BeforeStock/AfterStock 为变更前后的库存快照。
type StockRecord struct {
	ID            int64              `json:"id"`
	ProductID     int64              `json:"product_id"`
	OperationType StockOperationType `json:"operation_type"`
	Quantity      int                `json:"quantity"`
	BeforeStock   int                `json:"before_stock"`
	AfterStock    int                `json:"after_stock"`
	OrderID       *int64             `json:"order_id,omitempty"` // 销售关联扣减时指向订单
	Remark        string             `json:"remark"`
	OperatedBy    int64              `json:"operated_by"`
	OperatedAt    time.Time          `json:"operated_at"`
}

// CreateStockRecordRequest 表示手工库存变更请求。
// in/out 按 Quantity 增减库存；adjust 将库存直接设置为 AfterStock。
type CreateStockRecordRequest struct {
	ProductID     int64              `json:"product_id" binding:"required"`
	OperationType StockOperationType `json:"operation_type" binding:"required"`
	Quantity      int                `json:"quantity"`
	AfterStock    *int               `json:"after_stock"`
	Remark        string             `json:"remark" binding:"max=255"`
}

// Validate 校验各操作类型的参数约束
func (r *CreateStockRecordRequest) Validate() error {
	if r.ProductID <= 0 {
		return NewValidationError("product_id", "商品 ID 无效")
	}
	switch r.OperationType {
	case StockOperationIn, StockOperationOut:
		if r.Quantity <= 0 {
			return NewValidationError("quantity", "数量必须为正整数")
		}
	case StockOperationAdjust:
		if r.AfterStock == nil {
			return NewValidationError("after_stock", "盘点调整必须提供目标库存")
		}
		if *r.AfterStock < 0 {
			return NewValidationError("after_stock", "目标库存不能为负数")
		}
	default:
		return NewValidationError("operation_type", "未知的库存操作类型")
	}
	return nil
}

// StockRecordListRequest 表示库存流水查询请求
type StockRecordListRequest struct {
	Page          int                 `json:"page"`
	PageSize      int                 `json:"page_size"`
	ProductID     *int64              `json:"product_id"`
	OperationType *StockOperationType `json:"operation_type"`
	StartTime     *time.Time          `json:"start_time"`
	EndTime       *time.Time          `json:"end_time"`
}

// StockRecordListResponse 表示库存流水查询响应
type StockRecordListResponse struct {
	Records  []*StockRecord `json:"records"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}
