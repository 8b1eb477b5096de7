// Package api 提供订单相关的HTTP API处理器实现。
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/middleware"
	"github.com/MorseWayne/sales_manager/internal/repo"
	"github.com/MorseWayne/sales_manager/internal/resp"
	"github.com/MorseWayne/sales_manager/internal/service"
)

// OrderHandler 订单相关的HTTP处理器
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler 创建订单处理器实例
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// CreateOrder 创建订单
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.orderService.CreateOrder(actor, &req)
	if err != nil {
		if h.writeOrderError(w, err, reqID) {
			return
		}

		h.logger.Error("create order failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create order failed", reqID, "")
		return
	}

	resp.OK(w, order, reqID, "")
}

// GetOrder 获取订单详情
// GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	order, err := h.orderService.GetOrder(actor, id)
	if err != nil {
		if h.writeOrderError(w, err, reqID) {
			return
		}

		h.logger.Error("get order failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get order failed", reqID, "")
		return
	}

	resp.OK(w, order, reqID, "")
}

// UpdateOrder 更新订单交易字段
// PUT /api/v1/orders/{id}
// 仅待确认状态的订单允许修改
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	var req domain.UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.orderService.UpdateOrder(actor, id, &req)
	if err != nil {
		if h.writeOrderError(w, err, reqID) {
			return
		}

		h.logger.Error("update order failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "update order failed", reqID, "")
		return
	}

	resp.OK(w, order, reqID, "")
}

// DeleteOrder 删除订单
// DELETE /api/v1/orders/{id}
// 已扣减库存的订单不允许删除
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	if err := h.orderService.DeleteOrder(actor, id); err != nil {
		if h.writeOrderError(w, err, reqID) {
			return
		}

		h.logger.Error("delete order failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "delete order failed", reqID, "")
		return
	}

	ok2 := map[string]interface{}{"id": id}
	resp.OK(w, &ok2, reqID, "")
}

// ListOrders 订单列表查询
// GET /api/v1/orders
// 普通用户仅能看到自己创建的订单
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	query := r.URL.Query()
	req := &domain.OrderListRequest{
		Page:       parsePage(query),
		PageSize:   parsePageSize(query),
		BatchID:    queryInt64(query, "batch_id"),
		CustomerID: queryInt64(query, "customer_id"),
		ProductID:  queryInt64(query, "product_id"),
		CreatedBy:  queryInt64(query, "created_by"),
		SortBy:     queryString(query, "sort_by"),
		SortOrder:  queryString(query, "sort_order"),
	}

	if statusStr := query.Get("status"); statusStr != "" {
		status := domain.OrderStatus(statusStr)
		if !status.IsValid() {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order status", reqID, "")
			return
		}
		req.Status = &status
	}

	result, err := h.orderService.ListOrders(actor, req)
	if err != nil {
		h.logger.Error("list orders failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list orders failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// UpdateStatus 订单状态迁移
// PUT /api/v1/orders/{id}/status
// 状态迁移与库存扣减/回补、批次利润重算在同一事务内完成
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	var req domain.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.orderService.UpdateStatus(actor, id, &req)
	if err != nil {
		if h.writeOrderError(w, err, reqID) {
			return
		}

		h.logger.Error("update order status failed",
			zap.String("request_id", reqID),
			zap.Int64("order_id", id),
			zap.Error(err),
		)
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "update order status failed", reqID, "")
		return
	}

	resp.OK(w, order, reqID, "")
}

// BatchUpdateStatus 批量订单状态迁移
// PUT /api/v1/orders/status
// 逐单独立处理，返回每笔订单的成功/失败结果
func (h *OrderHandler) BatchUpdateStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	var req domain.BatchUpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	if len(req.OrderIDs) == 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "order_ids is required", reqID, "")
		return
	}

	result, err := h.orderService.BatchUpdateStatus(actor, &req)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return
		}

		h.logger.Error("batch update order status failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "batch update order status failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// writeOrderError 将订单业务错误映射为HTTP响应，返回是否已处理。
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, err error, reqID string) bool {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "order not found", reqID, "")
	case errors.Is(err, service.ErrBatchNotFound):
		resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "batch not found", reqID, "")
	case errors.Is(err, service.ErrCustomerNotFound):
		resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "customer not found", reqID, "")
	case errors.Is(err, service.ErrProductNotFound):
		resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "product not found", reqID, "")
	case errors.Is(err, service.ErrPermissionDenied):
		resp.Error(w, http.StatusForbidden, resp.CodeInvalidParam, "permission denied", reqID, "")
	case errors.Is(err, service.ErrOrderNotEditable):
		resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "only pending orders can be modified", reqID, "")
	case errors.Is(err, service.ErrOrderNotDeletable):
		resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "orders with deducted stock cannot be deleted", reqID, "")
	case errors.Is(err, repo.ErrStatusConflict):
		resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "order status changed concurrently, please retry", reqID, "")
	default:
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return true
		}
		var tErr *domain.InvalidTransitionError
		if errors.As(err, &tErr) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, tErr.Error(), reqID, "")
			return true
		}
		var sErr *domain.InsufficientStockError
		if errors.As(err, &sErr) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, sErr.Error(), reqID, "")
			return true
		}
		return false
	}
	return true
}
