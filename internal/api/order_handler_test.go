package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/middleware"
	"github.com/MorseWayne/sales_manager/internal/repo"
	"github.com/MorseWayne/sales_manager/internal/service"
)

// MockOrderService 是用于测试的订单服务模拟实现
type MockOrderService struct {
	createOrderFunc       func(actor *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error)
	getOrderFunc          func(actor *domain.User, id int64) (*domain.Order, error)
	updateOrderFunc       func(actor *domain.User, id int64, req *domain.UpdateOrderRequest) (*domain.Order, error)
	deleteOrderFunc       func(actor *domain.User, id int64) error
	listOrdersFunc        func(actor *domain.User, req *domain.OrderListRequest) (*domain.OrderListResponse, error)
	updateStatusFunc      func(actor *domain.User, id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error)
	batchUpdateStatusFunc func(actor *domain.User, req *domain.BatchUpdateStatusRequest) (*domain.BatchUpdateStatusResponse, error)
}

func (m *MockOrderService) CreateOrder(actor *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error) {
	if m.createOrderFunc != nil {
		return m.createOrderFunc(actor, req)
	}
	return &domain.Order{ID: 1, Status: domain.OrderStatusPending}, nil
}

func (m *MockOrderService) GetOrder(actor *domain.User, id int64) (*domain.Order, error) {
	if m.getOrderFunc != nil {
		return m.getOrderFunc(actor, id)
	}
	return &domain.Order{ID: id, Status: domain.OrderStatusPending}, nil
}

func (m *MockOrderService) UpdateOrder(actor *domain.User, id int64, req *domain.UpdateOrderRequest) (*domain.Order, error) {
	if m.updateOrderFunc != nil {
		return m.updateOrderFunc(actor, id, req)
	}
	return &domain.Order{ID: id, Status: domain.OrderStatusPending}, nil
}

func (m *MockOrderService) DeleteOrder(actor *domain.User, id int64) error {
	if m.deleteOrderFunc != nil {
		return m.deleteOrderFunc(actor, id)
	}
	return nil
}

func (m *MockOrderService) ListOrders(actor *domain.User, req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	if m.listOrdersFunc != nil {
		return m.listOrdersFunc(actor, req)
	}
	return &domain.OrderListResponse{Page: req.Page, PageSize: req.PageSize}, nil
}

func (m *MockOrderService) UpdateStatus(actor *domain.User, id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(actor, id, req)
	}
	return &domain.Order{ID: id, Status: req.Status}, nil
}

func (m *MockOrderService) BatchUpdateStatus(actor *domain.User, req *domain.BatchUpdateStatusRequest) (*domain.BatchUpdateStatusResponse, error) {
	if m.batchUpdateStatusFunc != nil {
		return m.batchUpdateStatusFunc(actor, req)
	}
	return &domain.BatchUpdateStatusResponse{Succeeded: req.OrderIDs}, nil
}

// envelope 镜像统一响应信封，测试中只关心code和message
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) *envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &env
}

func newOrderRequest(t *testing.T, method, target string, body interface{}, user *domain.User) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}
	return req
}

func testActor() *domain.User {
	return &domain.User{ID: 1, Username: "admin", Role: domain.UserRoleAdmin, IsActive: true}
}

func TestOrderHandler_CreateOrder_Success(t *testing.T) {
	mockService := &MockOrderService{
		createOrderFunc: func(actor *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error) {
			order := &domain.Order{
				ID: 1, BatchID: req.BatchID, ProductID: req.ProductID,
				Quantity: req.Quantity, UnitPrice: req.UnitPrice,
				Status: domain.OrderStatusPending,
			}
			order.ComputeDerived(50)
			return order, nil
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	req := newOrderRequest(t, "POST", "/api/v1/orders", &domain.CreateOrderRequest{
		BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: 10, UnitPrice: 120, OtherCosts: 30,
	}, testActor())
	rr := httptest.NewRecorder()
	handler.CreateOrder(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Code != 0 {
		t.Errorf("code = %d, want 0", env.Code)
	}

	var order domain.Order
	if err := json.Unmarshal(env.Data, &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if order.SalesAmount != 1200 {
		t.Errorf("sales_amount = %v, want 1200", order.SalesAmount)
	}
}

func TestOrderHandler_CreateOrder_Unauthenticated(t *testing.T) {
	handler := NewOrderHandler(&MockOrderService{}, zap.NewNop())

	req := newOrderRequest(t, "POST", "/api/v1/orders", &domain.CreateOrderRequest{}, nil)
	rr := httptest.NewRecorder()
	handler.CreateOrder(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestOrderHandler_CreateOrder_InvalidBody(t *testing.T) {
	handler := NewOrderHandler(&MockOrderService{}, zap.NewNop())

	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString("{invalid"))
	req = req.WithContext(middleware.WithUser(req.Context(), testActor()))
	rr := httptest.NewRecorder()
	handler.CreateOrder(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	mockService := &MockOrderService{
		getOrderFunc: func(actor *domain.User, id int64) (*domain.Order, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	req := newOrderRequest(t, "GET", "/api/v1/orders/42", nil, testActor())
	rr := httptest.NewRecorder()
	handler.GetOrder(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestOrderHandler_GetOrder_BadID(t *testing.T) {
	handler := NewOrderHandler(&MockOrderService{}, zap.NewNop())

	req := newOrderRequest(t, "GET", "/api/v1/orders/abc", nil, testActor())
	rr := httptest.NewRecorder()
	handler.GetOrder(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestOrderHandler_UpdateOrder_NotEditable(t *testing.T) {
	mockService := &MockOrderService{
		updateOrderFunc: func(actor *domain.User, id int64, req *domain.UpdateOrderRequest) (*domain.Order, error) {
			return nil, service.ErrOrderNotEditable
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	qty := 5
	req := newOrderRequest(t, "PUT", "/api/v1/orders/1", &domain.UpdateOrderRequest{Quantity: &qty}, testActor())
	rr := httptest.NewRecorder()
	handler.UpdateOrder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestOrderHandler_UpdateStatus_InsufficientStock(t *testing.T) {
	mockService := &MockOrderService{
		updateStatusFunc: func(actor *domain.User, id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
			return nil, &domain.InsufficientStockError{ProductID: 1, Current: 5, Requested: 10}
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	req := newOrderRequest(t, "PUT", "/api/v1/orders/1/status",
		&domain.UpdateOrderStatusRequest{Status: domain.OrderStatusConfirmed}, testActor())
	rr := httptest.NewRecorder()
	handler.UpdateStatus(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestOrderHandler_UpdateStatus_InvalidTransition(t *testing.T) {
	mockService := &MockOrderService{
		updateStatusFunc: func(actor *domain.User, id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
			return nil, &domain.InvalidTransitionError{From: domain.OrderStatusCompleted, To: domain.OrderStatusPending}
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	req := newOrderRequest(t, "PUT", "/api/v1/orders/1/status",
		&domain.UpdateOrderStatusRequest{Status: domain.OrderStatusPending}, testActor())
	rr := httptest.NewRecorder()
	handler.UpdateStatus(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestOrderHandler_UpdateStatus_Conflict(t *testing.T) {
	mockService := &MockOrderService{
		updateStatusFunc: func(actor *domain.User, id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
			return nil, repo.ErrStatusConflict
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	req := newOrderRequest(t, "PUT", "/api/v1/orders/1/status",
		&domain.UpdateOrderStatusRequest{Status: domain.OrderStatusConfirmed}, testActor())
	rr := httptest.NewRecorder()
	handler.UpdateStatus(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestOrderHandler_BatchUpdateStatus_EmptyIDs(t *testing.T) {
	handler := NewOrderHandler(&MockOrderService{}, zap.NewNop())

	req := newOrderRequest(t, "PUT", "/api/v1/orders/status",
		&domain.BatchUpdateStatusRequest{Status: domain.OrderStatusConfirmed}, testActor())
	rr := httptest.NewRecorder()
	handler.BatchUpdateStatus(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestOrderHandler_BatchUpdateStatus_PartialFailure(t *testing.T) {
	mockService := &MockOrderService{
		batchUpdateStatusFunc: func(actor *domain.User, req *domain.BatchUpdateStatusRequest) (*domain.BatchUpdateStatusResponse, error) {
			return &domain.BatchUpdateStatusResponse{
				Succeeded: []int64{1},
				Failed: []domain.BatchUpdateStatusFailure{
					{OrderID: 2, Reason: "invalid order status transition: completed -> confirmed"},
				},
			}, nil
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	req := newOrderRequest(t, "PUT", "/api/v1/orders/status",
		&domain.BatchUpdateStatusRequest{OrderIDs: []int64{1, 2}, Status: domain.OrderStatusConfirmed}, testActor())
	rr := httptest.NewRecorder()
	handler.BatchUpdateStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	env := decodeEnvelope(t, rr)
	var result domain.BatchUpdateStatusResponse
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Succeeded) != 1 || len(result.Failed) != 1 {
		t.Errorf("result = %+v, want 1 succeeded and 1 failed", result)
	}
}

func TestOrderHandler_ListOrders_InvalidStatus(t *testing.T) {
	handler := NewOrderHandler(&MockOrderService{}, zap.NewNop())

	req := newOrderRequest(t, "GET", "/api/v1/orders?status=bogus", nil, testActor())
	rr := httptest.NewRecorder()
	handler.ListOrders(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestOrderHandler_ListOrders_PassesFilters(t *testing.T) {
	var gotReq *domain.OrderListRequest
	mockService := &MockOrderService{
		listOrdersFunc: func(actor *domain.User, req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
			gotReq = req
			return &domain.OrderListResponse{Page: req.Page, PageSize: req.PageSize}, nil
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	req := newOrderRequest(t, "GET", "/api/v1/orders?page=2&page_size=50&batch_id=7&status=confirmed", nil, testActor())
	rr := httptest.NewRecorder()
	handler.ListOrders(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if gotReq.Page != 2 || gotReq.PageSize != 50 {
		t.Errorf("page = %d, page_size = %d, want 2 and 50", gotReq.Page, gotReq.PageSize)
	}
	if gotReq.BatchID == nil || *gotReq.BatchID != 7 {
		t.Errorf("batch_id = %v, want 7", gotReq.BatchID)
	}
	if gotReq.Status == nil || *gotReq.Status != domain.OrderStatusConfirmed {
		t.Errorf("status = %v, want confirmed", gotReq.Status)
	}
}

func TestOrderHandler_DeleteOrder_NotDeletable(t *testing.T) {
	mockService := &MockOrderService{
		deleteOrderFunc: func(actor *domain.User, id int64) error {
			return service.ErrOrderNotDeletable
		},
	}
	handler := NewOrderHandler(mockService, zap.NewNop())

	req := newOrderRequest(t, "DELETE", "/api/v1/orders/1", nil, testActor())
	rr := httptest.NewRecorder()
	handler.DeleteOrder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}
