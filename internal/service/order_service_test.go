package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/repo"
)

func adminUser() *domain.User {
	return &domain.User{ID: 1, Username: "admin", Role: domain.UserRoleAdmin, IsActive: true}
}

func normalUser(id int64) *domain.User {
	return &domain.User{ID: id, Username: "user", Role: domain.UserRoleNormal, IsActive: true}
}

func newTestOrderService(
	orderRepo *mockOrderRepo,
	batchRepo *mockBatchRepo,
	productRepo *mockProductRepo,
	customerRepo *mockCustomerRepo,
	// 接口类型入参，传 nil 时服务内的判空才成立
	invalidator ProductCacheInvalidator,
	publisher *mockPublisher,
) OrderService {
	return NewOrderService(orderRepo, batchRepo, productRepo, customerRepo, invalidator, publisher, zap.NewNop())
}

func TestCreateOrder_ComputesDerivedAmounts(t *testing.T) {
	batchRepo := &mockBatchRepo{
		getByIDFunc: func(id int64) (*domain.Batch, error) {
			return &domain.Batch{ID: id, BatchNumber: "B20250901-abc", CreatedBy: 1}, nil
		},
	}
	customerRepo := &mockCustomerRepo{
		getByIDFunc: func(id int64) (*domain.Customer, error) {
			return &domain.Customer{ID: id, Name: "张三"}, nil
		},
	}
	productRepo := &mockProductRepo{
		getByIDFunc: func(id int64) (*domain.Product, error) {
			return &domain.Product{ID: id, Name: "苹果", CostPrice: 50, CurrentStock: 100}, nil
		},
	}
	var created *domain.Order
	orderRepo := &mockOrderRepo{
		createFunc: func(order *domain.Order) error {
			order.ID = 10
			created = order
			return nil
		},
	}

	svc := newTestOrderService(orderRepo, batchRepo, productRepo, customerRepo, nil, &mockPublisher{})
	order, err := svc.CreateOrder(adminUser(), &domain.CreateOrderRequest{
		BatchID:    1,
		CustomerID: 1,
		ProductID:  1,
		Quantity:   10,
		UnitPrice:  120,
		OtherCosts: 30,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.SalesAmount != 1200 {
		t.Errorf("sales_amount = %v, want 1200", order.SalesAmount)
	}
	if order.TotalCost != 530 {
		t.Errorf("total_cost = %v, want 530", order.TotalCost)
	}
	if order.GrossProfit != 670 {
		t.Errorf("gross_profit = %v, want 670", order.GrossProfit)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("status = %v, want pending", order.Status)
	}
	if created == nil || created.OrderNumber == "" {
		t.Error("expected order number to be generated")
	}
}

func TestCreateOrder_BatchOwnership(t *testing.T) {
	batchRepo := &mockBatchRepo{
		getByIDFunc: func(id int64) (*domain.Batch, error) {
			return &domain.Batch{ID: id, CreatedBy: 2}, nil
		},
	}

	svc := newTestOrderService(&mockOrderRepo{}, batchRepo, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})

	// 普通用户不能在他人批次下开单
	_, err := svc.CreateOrder(normalUser(3), &domain.CreateOrderRequest{
		BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: 1, UnitPrice: 10,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestCreateOrder_ValidatesTradeFields(t *testing.T) {
	svc := newTestOrderService(&mockOrderRepo{}, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})

	tests := []struct {
		name string
		req  *domain.CreateOrderRequest
	}{
		{"zero quantity", &domain.CreateOrderRequest{BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: 0, UnitPrice: 10}},
		{"negative quantity", &domain.CreateOrderRequest{BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: -1, UnitPrice: 10}},
		{"negative unit price", &domain.CreateOrderRequest{BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: 1, UnitPrice: -5}},
		{"negative other costs", &domain.CreateOrderRequest{BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: 1, UnitPrice: 5, OtherCosts: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(adminUser(), tt.req)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateOrder_OrderDate(t *testing.T) {
	batchRepo := &mockBatchRepo{
		getByIDFunc: func(id int64) (*domain.Batch, error) {
			return &domain.Batch{ID: id, CreatedBy: 1}, nil
		},
	}
	customerRepo := &mockCustomerRepo{
		getByIDFunc: func(id int64) (*domain.Customer, error) {
			return &domain.Customer{ID: id}, nil
		},
	}
	productRepo := &mockProductRepo{
		getByIDFunc: func(id int64) (*domain.Product, error) {
			return &domain.Product{ID: id, CostPrice: 50}, nil
		},
	}
	svc := newTestOrderService(&mockOrderRepo{}, batchRepo, productRepo, customerRepo, nil, &mockPublisher{})

	t.Run("explicit date", func(t *testing.T) {
		order, err := svc.CreateOrder(adminUser(), &domain.CreateOrderRequest{
			BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: 1, UnitPrice: 10,
			OrderDate: "2025-08-15",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2025, 8, 15, 0, 0, 0, 0, time.Local)
		if !order.OrderDate.Equal(want) {
			t.Errorf("order_date = %v, want %v", order.OrderDate, want)
		}
	})

	t.Run("defaults to today", func(t *testing.T) {
		order, err := svc.CreateOrder(adminUser(), &domain.CreateOrderRequest{
			BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: 1, UnitPrice: 10,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		now := time.Now()
		want := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if !order.OrderDate.Equal(want) {
			t.Errorf("order_date = %v, want %v", order.OrderDate, want)
		}
	})

	t.Run("rejects bad date", func(t *testing.T) {
		_, err := svc.CreateOrder(adminUser(), &domain.CreateOrderRequest{
			BatchID: 1, CustomerID: 1, ProductID: 1, Quantity: 1, UnitPrice: 10,
			OrderDate: "15/08/2025",
		})
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})
}

func TestUpdateStatus_DeductsStockOnConfirm(t *testing.T) {
	pending := &domain.Order{
		ID: 10, ProductID: 5, Quantity: 10,
		Status: domain.OrderStatusPending, CreatedBy: 1,
	}
	var gotAction repo.StockAction
	var gotFrom, gotTo domain.OrderStatus
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) {
			return pending, nil
		},
		updateStatusFunc: func(orderID int64, expectedFrom, to domain.OrderStatus, action repo.StockAction, operatedBy int64) (*domain.Order, error) {
			gotFrom, gotTo, gotAction = expectedFrom, to, action
			updated := *pending
			updated.Status = to
			updated.StockDeducted = true
			return &updated, nil
		},
	}
	invalidator := &mockInvalidator{}
	publisher := &mockPublisher{}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, invalidator, publisher)
	updated, err := svc.UpdateStatus(adminUser(), 10, &domain.UpdateOrderStatusRequest{Status: domain.OrderStatusConfirmed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotFrom != domain.OrderStatusPending || gotTo != domain.OrderStatusConfirmed {
		t.Errorf("transition = %v -> %v, want pending -> confirmed", gotFrom, gotTo)
	}
	if gotAction != repo.StockActionDeduct {
		t.Errorf("action = %v, want StockActionDeduct", gotAction)
	}
	if !updated.StockDeducted {
		t.Error("expected stock_deducted to be set")
	}
	if got := invalidator.invalidated(); len(got) != 1 || got[0] != 5 {
		t.Errorf("invalidated = %v, want [5]", got)
	}
	events := publisher.published()
	if len(events) != 1 || events[0].routingKey != "order.status.changed" {
		t.Errorf("published = %v, want one order.status.changed event", events)
	}
}

func TestUpdateStatus_NoStockActionBetweenConsumingStates(t *testing.T) {
	confirmed := &domain.Order{
		ID: 10, ProductID: 5, Quantity: 10,
		Status: domain.OrderStatusConfirmed, StockDeducted: true, CreatedBy: 1,
	}
	var gotAction repo.StockAction
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return confirmed, nil },
		updateStatusFunc: func(orderID int64, expectedFrom, to domain.OrderStatus, action repo.StockAction, operatedBy int64) (*domain.Order, error) {
			gotAction = action
			updated := *confirmed
			updated.Status = to
			return &updated, nil
		},
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	if _, err := svc.UpdateStatus(adminUser(), 10, &domain.UpdateOrderStatusRequest{Status: domain.OrderStatusShipping}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 已确认到发货中均占用库存，不应重复扣减
	if gotAction != repo.StockActionNone {
		t.Errorf("action = %v, want StockActionNone", gotAction)
	}
}

func TestUpdateStatus_RestoresStockOnRefund(t *testing.T) {
	refunding := &domain.Order{
		ID: 10, ProductID: 5, Quantity: 10,
		Status: domain.OrderStatusRefunding, StockDeducted: true, CreatedBy: 1,
	}
	var gotAction repo.StockAction
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return refunding, nil },
		updateStatusFunc: func(orderID int64, expectedFrom, to domain.OrderStatus, action repo.StockAction, operatedBy int64) (*domain.Order, error) {
			gotAction = action
			updated := *refunding
			updated.Status = to
			updated.StockDeducted = false
			return &updated, nil
		},
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	updated, err := svc.UpdateStatus(adminUser(), 10, &domain.UpdateOrderStatusRequest{Status: domain.OrderStatusRefunded})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAction != repo.StockActionRestore {
		t.Errorf("action = %v, want StockActionRestore", gotAction)
	}
	if updated.StockDeducted {
		t.Error("expected stock_deducted to be cleared after restore")
	}
}

func TestUpdateStatus_RejectsInvalidTransition(t *testing.T) {
	completed := &domain.Order{ID: 10, Status: domain.OrderStatusCompleted, CreatedBy: 1}
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return completed, nil },
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	_, err := svc.UpdateStatus(adminUser(), 10, &domain.UpdateOrderStatusRequest{Status: domain.OrderStatusPending})

	var tErr *domain.InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %v, want InvalidTransitionError", err)
	}
	if tErr.From != domain.OrderStatusCompleted || tErr.To != domain.OrderStatusPending {
		t.Errorf("transition error = %v -> %v", tErr.From, tErr.To)
	}
}

func TestUpdateStatus_PropagatesInsufficientStock(t *testing.T) {
	pending := &domain.Order{ID: 10, ProductID: 5, Quantity: 10, Status: domain.OrderStatusPending, CreatedBy: 1}
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return pending, nil },
		updateStatusFunc: func(orderID int64, expectedFrom, to domain.OrderStatus, action repo.StockAction, operatedBy int64) (*domain.Order, error) {
			return nil, &domain.InsufficientStockError{ProductID: 5, Current: 5, Requested: 10}
		},
	}
	publisher := &mockPublisher{}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, publisher)
	_, err := svc.UpdateStatus(adminUser(), 10, &domain.UpdateOrderStatusRequest{Status: domain.OrderStatusConfirmed})

	var sErr *domain.InsufficientStockError
	if !errors.As(err, &sErr) {
		t.Fatalf("error = %v, want InsufficientStockError", err)
	}
	if sErr.Current != 5 || sErr.Requested != 10 {
		t.Errorf("insufficient stock error = %+v", sErr)
	}
	if len(publisher.published()) != 0 {
		t.Error("no event should be published when transition fails")
	}
}

func TestUpdateStatus_StatusConflict(t *testing.T) {
	pending := &domain.Order{ID: 10, Status: domain.OrderStatusPending, CreatedBy: 1}
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return pending, nil },
		updateStatusFunc: func(orderID int64, expectedFrom, to domain.OrderStatus, action repo.StockAction, operatedBy int64) (*domain.Order, error) {
			return nil, repo.ErrStatusConflict
		},
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	_, err := svc.UpdateStatus(adminUser(), 10, &domain.UpdateOrderStatusRequest{Status: domain.OrderStatusConfirmed})
	if !errors.Is(err, repo.ErrStatusConflict) {
		t.Fatalf("error = %v, want ErrStatusConflict", err)
	}
}

func TestUpdateStatus_OwnershipCheck(t *testing.T) {
	order := &domain.Order{ID: 10, Status: domain.OrderStatusPending, CreatedBy: 2}
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return order, nil },
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	_, err := svc.UpdateStatus(normalUser(3), 10, &domain.UpdateOrderStatusRequest{Status: domain.OrderStatusConfirmed})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestBatchUpdateStatus_PartialFailure(t *testing.T) {
	orders := map[int64]*domain.Order{
		1: {ID: 1, ProductID: 5, Status: domain.OrderStatusPending, CreatedBy: 1},
		2: {ID: 2, ProductID: 5, Status: domain.OrderStatusCompleted, CreatedBy: 1},
		3: {ID: 3, ProductID: 5, Status: domain.OrderStatusPending, CreatedBy: 1},
	}
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return orders[id], nil },
		updateStatusFunc: func(orderID int64, expectedFrom, to domain.OrderStatus, action repo.StockAction, operatedBy int64) (*domain.Order, error) {
			updated := *orders[orderID]
			updated.Status = to
			return &updated, nil
		},
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	result, err := svc.BatchUpdateStatus(adminUser(), &domain.BatchUpdateStatusRequest{
		OrderIDs: []int64{1, 2, 3, 4},
		Status:   domain.OrderStatusConfirmed,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Succeeded) != 2 {
		t.Errorf("succeeded = %v, want [1 3]", result.Succeeded)
	}
	// 订单2为终态，订单4不存在
	if len(result.Failed) != 2 {
		t.Fatalf("failed = %v, want 2 failures", result.Failed)
	}
	failedIDs := map[int64]bool{}
	for _, f := range result.Failed {
		failedIDs[f.OrderID] = true
		if f.Reason == "" {
			t.Errorf("failure for order %d has empty reason", f.OrderID)
		}
	}
	if !failedIDs[2] || !failedIDs[4] {
		t.Errorf("failed ids = %v, want orders 2 and 4", result.Failed)
	}
}

func TestUpdateOrder_OnlyPendingEditable(t *testing.T) {
	confirmed := &domain.Order{ID: 10, Status: domain.OrderStatusConfirmed, CreatedBy: 1}
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return confirmed, nil },
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	qty := 5
	_, err := svc.UpdateOrder(adminUser(), 10, &domain.UpdateOrderRequest{Quantity: &qty})
	if !errors.Is(err, ErrOrderNotEditable) {
		t.Fatalf("error = %v, want ErrOrderNotEditable", err)
	}
}

func TestUpdateOrder_RecomputesDerived(t *testing.T) {
	pending := &domain.Order{
		ID: 10, ProductID: 5, Quantity: 10, UnitPrice: 120, OtherCosts: 30,
		Status: domain.OrderStatusPending, CreatedBy: 1,
	}
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return pending, nil },
	}
	productRepo := &mockProductRepo{
		getByIDFunc: func(id int64) (*domain.Product, error) {
			return &domain.Product{ID: id, CostPrice: 50}, nil
		},
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, productRepo, &mockCustomerRepo{}, nil, &mockPublisher{})
	qty := 20
	order, err := svc.UpdateOrder(adminUser(), 10, &domain.UpdateOrderRequest{Quantity: &qty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.SalesAmount != 2400 {
		t.Errorf("sales_amount = %v, want 2400", order.SalesAmount)
	}
	if order.TotalCost != 1030 {
		t.Errorf("total_cost = %v, want 1030", order.TotalCost)
	}
	if order.GrossProfit != 1370 {
		t.Errorf("gross_profit = %v, want 1370", order.GrossProfit)
	}
}

func TestDeleteOrder_RejectsDeductedStock(t *testing.T) {
	deducted := &domain.Order{ID: 10, Status: domain.OrderStatusConfirmed, StockDeducted: true, CreatedBy: 1}
	orderRepo := &mockOrderRepo{
		getByIDFunc: func(id int64) (*domain.Order, error) { return deducted, nil },
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	err := svc.DeleteOrder(adminUser(), 10)
	if !errors.Is(err, ErrOrderNotDeletable) {
		t.Fatalf("error = %v, want ErrOrderNotDeletable", err)
	}
}

func TestListOrders_NormalUserScopedToSelf(t *testing.T) {
	var gotCreatedBy *int64
	orderRepo := &mockOrderRepo{
		listFunc: func(req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
			gotCreatedBy = req.CreatedBy
			return nil, 0, nil
		},
	}

	svc := newTestOrderService(orderRepo, &mockBatchRepo{}, &mockProductRepo{}, &mockCustomerRepo{}, nil, &mockPublisher{})
	other := int64(99)
	if _, err := svc.ListOrders(normalUser(3), &domain.OrderListRequest{CreatedBy: &other}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotCreatedBy == nil || *gotCreatedBy != 3 {
		t.Errorf("created_by = %v, want 3", gotCreatedBy)
	}
}
