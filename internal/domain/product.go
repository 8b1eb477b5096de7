// Package domain 定义产品相关的业务领域模型和核心业务规则。
package domain

import (
	"time"
)

// DefaultLowStockThreshold 低库存默认阈值，可通过配置或查询参数覆盖
const DefaultLowStockThreshold = 10

// StockStatus 定义库存状态分类
type StockStatus string

const (
	StockStatusOutOfStock StockStatus = "out_of_stock" // 无库存
	StockStatusLowStock   StockStatus = "low_stock"    // 低库存
	StockStatusInStock    StockStatus = "in_stock"     // 库存充足
)

// Product 表示产品领域模型。
// 库存数量只能通过库存台账（StockRecord）相关操作变化，不允许直接修改。
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Specification string    `json:"specification"`
	CostPrice     float64   `json:"cost_price"`
	CurrentStock  int       `json:"current_stock"`
	SoldQuantity  int       `json:"sold_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockStatus 依据阈值返回库存状态分类
func (p *Product) StockStatus(threshold int) StockStatus {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	switch {
	case p.CurrentStock == 0:
		return StockStatusOutOfStock
	case p.CurrentStock <= threshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// HasStock 判断当前库存是否足以满足指定数量
func (p *Product) HasStock(quantity int) bool {
	return p.CurrentStock >= quantity
}

// CreateProductRequest 表示创建产品请求
type CreateProductRequest struct {
	Name          string  `json:"name" binding:"required,max=100"`
	Specification string  `json:"specification" binding:"required,max=200"`
	CostPrice     float64 `json:"cost_price" binding:"min=0"`
	InitialStock  int     `json:"initial_stock" binding:"min=0"`
}

// UpdateProductRequest 表示更新产品请求。
// 库存和已售数量为派生/台账字段，不在此处更新。
type UpdateProductRequest struct {
	Name          *string  `json:"name"`
	Specification *string  `json:"specification"`
	CostPrice     *float64 `json:"cost_price"`
}

// ProductListRequest 表示产品列表查询请求
type ProductListRequest struct {
	Page      int     `json:"page"`
	PageSize  int     `json:"page_size"`
	Keyword   *string `json:"keyword"`   // 匹配名称/规格
	MaxStock  *int    `json:"max_stock"` // 库存上限过滤（低库存查询）
	SortBy    *string `json:"sort_by"`   // name, current_stock, sold_quantity, created_at
	SortOrder *string `json:"sort_order"`
}

// ProductView 表示带派生字段的产品视图
type ProductView struct {
	*Product
	StockStatus StockStatus `json:"stock_status"`
}

// ProductListResponse 表示产品列表查询响应
type ProductListResponse struct {
	Products []*ProductView `json:"products"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}
