// Package domain 定义批次相关的业务领域模型和核心业务规则。
package domain

import (
	"time"
)

// Batch 表示批次领域模型。
// 一个批次是一组订单的日期分组，total_profit 为派生字段，
// 由批次内"已确认及之后"状态订单的毛利润汇总而来。
type Batch struct {
	ID          int64     `json:"id"`
	BatchNumber string    `json:"batch_number"`
	Date        time.Time `json:"date"`
	TotalProfit float64   `json:"total_profit"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateBatchRequest 表示创建批次请求。
// BatchNumber 为空时自动生成。
type CreateBatchRequest struct {
	BatchNumber string `json:"batch_number" binding:"max=50"`
	Date        string `json:"date"` // YYYY-MM-DD，为空时取当天
}

// UpdateBatchRequest 表示更新批次请求
type UpdateBatchRequest struct {
	BatchNumber *string `json:"batch_number"`
	Date        *string `json:"date"`
}

// BatchListRequest 表示批次列表查询请求
type BatchListRequest struct {
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	Keyword   *string `json:"keyword"`    // 匹配批次号
	CreatedBy *int64  `json:"created_by"` // 普通用户强制为自身
	SortBy    *string `json:"sort_by"`    // date, total_profit, created_at
	SortOrder *string `json:"sort_order"`
}

// BatchListResponse 表示批次列表查询响应
type BatchListResponse struct {
	Batches  []*Batch `json:"batches"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}
