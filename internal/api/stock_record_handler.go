// Package api 提供库存台账相关的HTTP API处理器实现。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/middleware"
	"github.com/MorseWayne/sales_manager/internal/resp"
	"github.com/MorseWayne/sales_manager/internal/service"
)

// StockRecordHandler 库存台账相关的HTTP处理器
type StockRecordHandler struct {
	stockService service.StockService
	logger       *zap.Logger
}

// NewStockRecordHandler 创建库存台账处理器实例
func NewStockRecordHandler(stockService service.StockService, logger *zap.Logger) *StockRecordHandler {
	return &StockRecordHandler{
		stockService: stockService,
		logger:       logger,
	}
}

// CreateMovement 手工库存变更（入库/出库/盘点调整）
// POST /api/v1/stock-records
func (h *StockRecordHandler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentUser(w, r, reqID, h.logger)
	if actor == nil {
		return
	}

	var req domain.CreateStockRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	record, err := h.stockService.CreateMovement(actor, &req)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "product not found", reqID, "")
			return
		}
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return
		}
		var sErr *domain.InsufficientStockError
		if errors.As(err, &sErr) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, sErr.Error(), reqID, "")
			return
		}

		h.logger.Error("create stock movement failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create stock movement failed", reqID, "")
		return
	}

	resp.OK(w, record, reqID, "")
}

// GetRecord 获取库存流水详情
// GET /api/v1/stock-records/{id}
func (h *StockRecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid stock record ID", reqID, "")
		return
	}

	record, err := h.stockService.GetRecord(id)
	if err != nil {
		if errors.Is(err, service.ErrStockRecordNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "stock record not found", reqID, "")
			return
		}

		h.logger.Error("get stock record failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get stock record failed", reqID, "")
		return
	}

	resp.OK(w, record, reqID, "")
}

// ListRecords 库存流水查询
// GET /api/v1/stock-records
func (h *StockRecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	query := r.URL.Query()
	req := &domain.StockRecordListRequest{
		Page:      parsePage(query),
		PageSize:  parsePageSize(query),
		ProductID: queryInt64(query, "product_id"),
	}

	if opStr := query.Get("operation_type"); opStr != "" {
		op := domain.StockOperationType(opStr)
		if !op.IsValid() {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid operation type", reqID, "")
			return
		}
		req.OperationType = &op
	}

	if startStr := query.Get("start_time"); startStr != "" {
		t, err := parseTimeParam(startStr)
		if err != nil {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid start_time", reqID, "")
			return
		}
		req.StartTime = &t
	}

	if endStr := query.Get("end_time"); endStr != "" {
		t, err := parseTimeParam(endStr)
		if err != nil {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid end_time", reqID, "")
			return
		}
		req.EndTime = &t
	}

	result, err := h.stockService.ListRecords(req)
	if err != nil {
		h.logger.Error("list stock records failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list stock records failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// parseTimeParam 解析时间参数，支持 RFC3339 和 YYYY-MM-DD 两种格式
func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
