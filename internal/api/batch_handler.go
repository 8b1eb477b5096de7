// Package api 提供销售批次相关的HTTP API处理器实现。
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

// BatchHandler 销售批次相关的HTTP处理器
type BatchHandler struct {
	batchService service.BatchService
	logger       *zap.Logger
}

// NewBatchHandler 创建批次处理器实例
func NewBatchHandler(batchService service.BatchService, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		batchService: batchService,
		logger:       logger,
	}
}

// currentUser 从上下文中取出当前登录用户
func currentUser(w http.ResponseWriter, r *http.Request, reqID string, logger *zap.Logger) *domain.User {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		logger.Error("user not found in context", zap.String("request_id", reqID))
		resp.Error(w, http.StatusUnauthorized, resp.CodeInternalError, "authentication required", reqID, "")
		return nil
	}
	return user
}

// CreateBatch 创建销售批次
// POST /api/v1/batches
func (h *BatchHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	var req domain.CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	batch, err := h.batchService.CreateBatch(actor, &req)
	if err != nil {
		if errors.Is(err, service.ErrBatchExists) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "batch number already exists", reqID, "")
			return
		}
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return
		}

		h.logger.Error("create batch failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create batch failed", reqID, "")
		return
	}

	resp.OK(w, batch, reqID, "")
}

// GetBatch 获取批次详情
// GET /api/v1/batches/{id}
func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid batch ID", reqID, "")
		return
	}

	batch, err := h.batchService.GetBatch(actor, id)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "batch not found", reqID, "")
			return
		}
		if errors.Is(err, service.ErrPermissionDenied) {
			resp.Error(w, http.StatusForbidden, resp.CodeInvalidParam, "permission denied", reqID, "")
			return
		}

		h.logger.Error("get batch failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get batch failed", reqID, "")
		return
	}

	resp.OK(w, batch, reqID, "")
}

// UpdateBatch 更新批次信息
// PUT /api/v1/batches/{id}
func (h *BatchHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid batch ID", reqID, "")
		return
	}

	var req domain.UpdateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	batch, err := h.batchService.UpdateBatch(actor, id, &req)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "batch not found", reqID, "")
			return
		}
		if errors.Is(err, service.ErrPermissionDenied) {
			resp.Error(w, http.StatusForbidden, resp.CodeInvalidParam, "permission denied", reqID, "")
			return
		}
		if errors.Is(err, service.ErrBatchExists) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "batch number already exists", reqID, "")
			return
		}
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return
		}

		h.logger.Error("update batch failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "update batch failed", reqID, "")
		return
	}

	resp.OK(w, batch, reqID, "")
}

// DeleteBatch 删除批次
// DELETE /api/v1/batches/{id}
// 存在关联订单的批次不允许删除
func (h *BatchHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid batch ID", reqID, "")
		return
	}

	if err := h.batchService.DeleteBatch(actor, id); err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "batch not found", reqID, "")
			return
		}
		if errors.Is(err, service.ErrPermissionDenied) {
			resp.Error(w, http.StatusForbidden, resp.CodeInvalidParam, "permission denied", reqID, "")
			return
		}
		if errors.Is(err, service.ErrBatchHasOrders) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "batch has related orders", reqID, "")
			return
		}

		h.logger.Error("delete batch failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "delete batch failed", reqID, "")
		return
	}

	ok2 := map[string]interface{}{"id": id}
	resp.OK(w, &ok2, reqID, "")
}

// ListBatches 批次列表查询
// GET /api/v1/batches
// 普通用户仅能看到自己创建的批次
func (h *BatchHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	query := r.URL.Query()
	req := &domain.BatchListRequest{
		Page:      parsePage(query),
		PageSize:  parsePageSize(query),
		Keyword:   queryString(query, "keyword"),
		CreatedBy: queryInt64(query, "created_by"),
		SortBy:    queryString(query, "sort_by"),
		SortOrder: queryString(query, "sort_order"),
	}

	result, err := h.batchService.ListBatches(actor, req)
	if err != nil {
		h.logger.Error("list batches failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list batches failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// RecalcProfit 重算批次总利润
// POST /api/v1/batches/{id}/recalc
func (h *BatchHandler) RecalcProfit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid batch ID", reqID, "")
		return
	}

	batch, err := h.batchService.RecalcProfit(actor, id)
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "batch not found", reqID, "")
			return
		}
		if errors.Is(err, service.ErrPermissionDenied) {
			resp.Error(w, http.StatusForbidden, resp.CodeInvalidParam, "permission denied", reqID, "")
			return
		}

		h.logger.Error("recalc batch profit failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "recalc batch profit failed", reqID, "")
		return
	}

	resp.OK(w, batch, reqID, "")
}
