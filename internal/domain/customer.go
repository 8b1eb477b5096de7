package domain

import (
	"time"
)

// Customer 表示客户领域模型
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCustomerRequest 表示创建客户请求
type CreateCustomerRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	Contact string `json:"contact" binding:"required,max=50"`
	Address string `json:"address"`
}

// UpdateCustomerRequest 表示更新客户请求
type UpdateCustomerRequest struct {
	Name    *string `json:"name"`
	Contact *string `json:"contact"`
	Address *string `json:"address"`
}

// CustomerListRequest 表示客户列表查询请求
type CustomerListRequest struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Keyword  *string `json:"keyword"` // 匹配名称/联系方式/地址
}

// CustomerListResponse 表示客户列表查询响应
type CustomerListResponse struct {
	Customers []*Customer `json:"customers"`
	Total     int64       `json:"total"`
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
}
