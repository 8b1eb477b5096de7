// Package api 提供产品相关的HTTP API处理器实现。
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/middleware"
	"github.com/MorseWayne/sales_manager/internal/resp"
	"github.com/MorseWayne/sales_manager/internal/service"
)

// ProductHandler 产品相关的HTTP处理器
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler 创建产品处理器实例
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// CreateProduct 创建产品
// POST /api/v1/products
// 需要管理员权限
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.CreateProduct(&req)
	if err != nil {
		if errors.Is(err, service.ErrProductExists) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "product with same name and specification already exists", reqID, "")
			return
		}
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return
		}

		h.logger.Error("create product failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create product failed", reqID, "")
		return
	}

	resp.OK(w, product, reqID, "")
}

// GetProduct 获取产品详情
// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	product, err := h.productService.GetProduct(id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "product not found", reqID, "")
			return
		}

		h.logger.Error("get product failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "get product failed", reqID, "")
		return
	}

	resp.OK(w, product, reqID, "")
}

// UpdateProduct 更新产品信息
// PUT /api/v1/products/{id}
// 需要管理员权限；库存字段由库存台账维护，不在此处修改
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	var req domain.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.productService.UpdateProduct(id, &req)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "product not found", reqID, "")
			return
		}
		if errors.Is(err, service.ErrProductExists) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "product with same name and specification already exists", reqID, "")
			return
		}
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, vErr.Error(), reqID, "")
			return
		}

		h.logger.Error("update product failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "update product failed", reqID, "")
		return
	}

	resp.OK(w, product, reqID, "")
}

// DeleteProduct 删除产品
// DELETE /api/v1/products/{id}
// 需要管理员权限；存在关联订单的产品不允许删除
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := parsePathID(r, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
		return
	}

	if err := h.productService.DeleteProduct(id); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			resp.Error(w, http.StatusNotFound, resp.CodeInvalidParam, "product not found", reqID, "")
			return
		}
		if errors.Is(err, service.ErrProductHasOrders) {
			resp.Error(w, http.StatusConflict, resp.CodeInvalidParam, "product has related orders", reqID, "")
			return
		}

		h.logger.Error("delete product failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "delete product failed", reqID, "")
		return
	}

	ok2 := map[string]interface{}{"id": id}
	resp.OK(w, &ok2, reqID, "")
}

// ListProducts 产品列表查询
// GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	query := r.URL.Query()
	req := &domain.ProductListRequest{
		Page:      parsePage(query),
		PageSize:  parsePageSize(query),
		Keyword:   queryString(query, "keyword"),
		SortBy:    queryString(query, "sort_by"),
		SortOrder: queryString(query, "sort_order"),
	}

	if maxStockStr := query.Get("max_stock"); maxStockStr != "" {
		maxStock, err := strconv.Atoi(maxStockStr)
		if err != nil || maxStock < 0 {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid max_stock", reqID, "")
			return
		}
		req.MaxStock = &maxStock
	}

	result, err := h.productService.ListProducts(req)
	if err != nil {
		h.logger.Error("list products failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list products failed", reqID, "")
		return
	}

	resp.OK(w, result, reqID, "")
}

// ListLowStock 低库存产品告警查询
// GET /api/v1/products/alerts/low-stock
func (h *ProductHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	threshold := 0
	if thresholdStr := r.URL.Query().Get("threshold"); thresholdStr != "" {
		v, err := strconv.Atoi(thresholdStr)
		if err != nil || v <= 0 {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid threshold", reqID, "")
			return
		}
		threshold = v
	}

	products, err := h.productService.ListLowStock(threshold)
	if err != nil {
		h.logger.Error("list low stock products failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list low stock products failed", reqID, "")
		return
	}

	result := map[string]interface{}{
		"products": products,
		"count":    len(products),
	}
	resp.OK(w, &result, reqID, "")
}
