// Package api 提供客户相关的HTTP API处理器实现。
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/middleware"
	"github.com/MorseWayne/sales_manager/internal/resp"
	"github.com/MorseWayne/sales_manager/internal/service"
)

// CustomerHandler 客户相关的HTTP处理器
type CustomerHandler struct {
	customerService service.CustomerService
	logger          *zap.Logger
}

// NewCustomerHandler 创建客户处理器实例
func NewCustomerHandler(customerService service.CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		logger:          logger,
	}
}

// CreateCustomer 创建客户
// POST /api/v1/customers
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	customer, err := h.customerService.CreateCustomer(&req)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return
		}

		h.logger.Error("create customer failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create customer failed", reqID, "")
		return
	}

	resp.OK(w, customer, reqID, "")
}

// GetCustomer 获取客户详情
// GET /api/v1/customers/{id}
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid customer ID", reqID, "")
		return
	}

	customer, err := h.customerService.GetCustomer(id)
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "customer not found", reqID, "")
			return
		}

		h.logger.Error("get customer failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get customer failed", reqID, "")
		return
	}

	resp.OK(w, customer, reqID, "")
}

// UpdateCustomer 更新客户信息
// PUT /api/v1/customers/{id}
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid customer ID", reqID, "")
		return
	}

	var req domain.UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	customer, err := h.customerService.UpdateCustomer(id, &req)
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "customer not found", reqID, "")
			return
		}
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return
		}

		h.logger.Error("update customer failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "update customer failed", reqID, "")
		return
	}

	resp.OK(w, customer, reqID, "")
}

// DeleteCustomer 删除客户
// DELETE /api/v1/customers/{id}
// 存在关联订单的客户不允许删除
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid customer ID", reqID, "")
		return
	}

	if err := h.customerService.DeleteCustomer(id); err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "customer not found", reqID, "")
			return
		}
		if errors.Is(err, service.ErrCustomerHasOrders) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "customer has related orders", reqID, "")
			return
		}

		h.logger.Error("delete customer failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "delete customer failed", reqID, "")
		return
	}

	ok2 := map[string]interface{}{"id": id}
	resp.OK(w, &ok2, reqID, "")
}

// ListCustomers 客户列表查询
// GET /api/v1/customers
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	query := r.URL.Query()
	req := &domain.CustomerListRequest{
		Page:     parsePage(query),
		PageSize: parsePageSize(query),
		Keyword:  queryString(query, "keyword"),
	}

	result, err := h.customerService.ListCustomers(req)
	if err != nil {
		h.logger.Error("list customers failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list customers failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}
