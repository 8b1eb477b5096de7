package service

import (
	"context"
	"sync"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/repo"
)

// mockOrderRepo 是用于测试的订单仓储模拟实现
type mockOrderRepo struct {
	createFunc       func(order *domain.Order) error
	getByIDFunc      func(id int64) (*domain.Order, error)
	updateFunc       func(order *domain.Order) error
	deleteFunc       func(id int64) error
	listFunc         func(req *domain.OrderListRequest) ([]*domain.Order, int64, error)
	updateStatusFunc func(orderID int64, expectedFrom, to domain.OrderStatus, action repo.StockAction, operatedBy int64) (*domain.Order, error)
}

func (m *mockOrderRepo) Create(order *domain.Order) error {
	if m.createFunc != nil {
		return m.createFunc(order)
	}
	order.ID = 1
	return nil
}

func (m *mockOrderRepo) GetByID(id int64) (*domain.Order, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockOrderRepo) Update(order *domain.Order) error {
	if m.updateFunc != nil {
		return m.updateFunc(order)
	}
	return nil
}

func (m *mockOrderRepo) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockOrderRepo) List(req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(req)
	}
	return nil, 0, nil
}

func (m *mockOrderRepo) UpdateStatus(orderID int64, expectedFrom, to domain.OrderStatus, action repo.StockAction, operatedBy int64) (*domain.Order, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(orderID, expectedFrom, to, action, operatedBy)
	}
	return nil, nil
}

// mockBatchRepo 是用于测试的批次仓储模拟实现
type mockBatchRepo struct {
	createFunc           func(batch *domain.Batch) error
	getByIDFunc          func(id int64) (*domain.Batch, error)
	getByBatchNumberFunc func(batchNumber string) (*domain.Batch, error)
	updateFunc           func(batch *domain.Batch) error
	deleteFunc           func(id int64) error
	listFunc             func(req *domain.BatchListRequest) ([]*domain.Batch, int64, error)
	recalcFunc           func(batchID int64) error
	hasOrdersFunc        func(id int64) (bool, error)
}

func (m *mockBatchRepo) Create(batch *domain.Batch) error {
	if m.createFunc != nil {
		return m.createFunc(batch)
	}
	batch.ID = 1
	return nil
}

func (m *mockBatchRepo) GetByID(id int64) (*domain.Batch, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockBatchRepo) GetByBatchNumber(batchNumber string) (*domain.Batch, error) {
	if m.getByBatchNumberFunc != nil {
		return m.getByBatchNumberFunc(batchNumber)
	}
	return nil, nil
}

func (m *mockBatchRepo) Update(batch *domain.Batch) error {
	if m.updateFunc != nil {
		return m.updateFunc(batch)
	}
	return nil
}

func (m *mockBatchRepo) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockBatchRepo) List(req *domain.BatchListRequest) ([]*domain.Batch, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(req)
	}
	return nil, 0, nil
}

func (m *mockBatchRepo) RecalcTotalProfit(batchID int64) error {
	if m.recalcFunc != nil {
		return m.recalcFunc(batchID)
	}
	return nil
}

func (m *mockBatchRepo) HasOrders(id int64) (bool, error) {
	if m.hasOrdersFunc != nil {
		return m.hasOrdersFunc(id)
	}
	return false, nil
}

// mockProductRepo 是用于测试的产品仓储模拟实现
type mockProductRepo struct {
	createFunc           func(product *domain.Product) error
	getByIDFunc          func(id int64) (*domain.Product, error)
	getByNameAndSpecFunc func(name, specification string) (*domain.Product, error)
	updateFunc           func(product *domain.Product) error
	deleteFunc           func(id int64) error
	listFunc             func(req *domain.ProductListRequest) ([]*domain.Product, int64, error)
	listLowStockFunc     func(threshold int) ([]*domain.Product, error)
	hasOrdersFunc        func(id int64) (bool, error)
}

func (m *mockProductRepo) Create(product *domain.Product) error {
	if m.createFunc != nil {
		return m.createFunc(product)
	}
	product.ID = 1
	return nil
}

func (m *mockProductRepo) GetByID(id int64) (*domain.Product, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockProductRepo) GetByNameAndSpec(name, specification string) (*domain.Product, error) {
	if m.getByNameAndSpecFunc != nil {
		return m.getByNameAndSpecFunc(name, specification)
	}
	return nil, nil
}

func (m *mockProductRepo) Update(product *domain.Product) error {
	if m.updateFunc != nil {
		return m.updateFunc(product)
	}
	return nil
}

func (m *mockProductRepo) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockProductRepo) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(req)
	}
	return nil, 0, nil
}

func (m *mockProductRepo) ListLowStock(threshold int) ([]*domain.Product, error) {
	if m.listLowStockFunc != nil {
		return m.listLowStockFunc(threshold)
	}
	return nil, nil
}

func (m *mockProductRepo) HasOrders(id int64) (bool, error) {
	if m.hasOrdersFunc != nil {
		return m.hasOrdersFunc(id)
	}
	return false, nil
}

// mockCustomerRepo 是用于测试的客户仓储模拟实现
type mockCustomerRepo struct {
	createFunc    func(customer *domain.Customer) error
	getByIDFunc   func(id int64) (*domain.Customer, error)
	updateFunc    func(customer *domain.Customer) error
	deleteFunc    func(id int64) error
	listFunc      func(req *domain.CustomerListRequest) ([]*domain.Customer, int64, error)
	hasOrdersFunc func(id int64) (bool, error)
}

func (m *mockCustomerRepo) Create(customer *domain.Customer) error {
	if m.createFunc != nil {
		return m.createFunc(customer)
	}
	customer.ID = 1
	return nil
}

func (m *mockCustomerRepo) GetByID(id int64) (*domain.Customer, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockCustomerRepo) Update(customer *domain.Customer) error {
	if m.updateFunc != nil {
		return m.updateFunc(customer)
	}
	return nil
}

func (m *mockCustomerRepo) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockCustomerRepo) List(req *domain.CustomerListRequest) ([]*domain.Customer, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(req)
	}
	return nil, 0, nil
}

func (m *mockCustomerRepo) HasOrders(id int64) (bool, error) {
	if m.hasOrdersFunc != nil {
		return m.hasOrdersFunc(id)
	}
	return false, nil
}

// mockStockRecordRepo 是用于测试的库存流水仓储模拟实现
type mockStockRecordRepo struct {
	applyMovementFunc func(req *domain.CreateStockRecordRequest, operatedBy int64) (*domain.StockRecord, error)
	getByIDFunc       func(id int64) (*domain.StockRecord, error)
	listFunc          func(req *domain.StockRecordListRequest) ([]*domain.StockRecord, int64, error)
}

func (m *mockStockRecordRepo) ApplyMovement(req *domain.CreateStockRecordRequest, operatedBy int64) (*domain.StockRecord, error) {
	if m.applyMovementFunc != nil {
		return m.applyMovementFunc(req, operatedBy)
	}
	return nil, nil
}

func (m *mockStockRecordRepo) GetByID(id int64) (*domain.StockRecord, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockStockRecordRepo) List(req *domain.StockRecordListRequest) ([]*domain.StockRecord, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(req)
	}
	return nil, 0, nil
}

// mockUserRepo 是用于测试的用户仓储模拟实现
type mockUserRepo struct {
	createFunc        func(user *domain.User) error
	getByIDFunc       func(id int64) (*domain.User, error)
	getByUsernameFunc func(username string) (*domain.User, error)
	getByEmailFunc    func(email string) (*domain.User, error)
	updateFunc        func(user *domain.User) error
	deleteFunc        func(id int64) error
	listFunc          func(req *domain.UserListRequest) ([]*domain.User, int64, error)
	updateRoleFunc    func(userID int64, role domain.UserRole) error
	updateStatusFunc  func(userID int64, isActive bool) error
}

func (m *mockUserRepo) Create(user *domain.User) error {
	if m.createFunc != nil {
		return m.createFunc(user)
	}
	user.ID = 1
	return nil
}

func (m *mockUserRepo) GetByID(id int64) (*domain.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(id)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByUsername(username string) (*domain.User, error) {
	if m.getByUsernameFunc != nil {
		return m.getByUsernameFunc(username)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByEmail(email string) (*domain.User, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(email)
	}
	return nil, nil
}

func (m *mockUserRepo) Update(user *domain.User) error {
	if m.updateFunc != nil {
		return m.updateFunc(user)
	}
	return nil
}

func (m *mockUserRepo) Delete(id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(id)
	}
	return nil
}

func (m *mockUserRepo) List(req *domain.UserListRequest) ([]*domain.User, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(req)
	}
	return nil, 0, nil
}

func (m *mockUserRepo) UpdateRole(userID int64, role domain.UserRole) error {
	if m.updateRoleFunc != nil {
		return m.updateRoleFunc(userID, role)
	}
	return nil
}

func (m *mockUserRepo) UpdateStatus(userID int64, isActive bool) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(userID, isActive)
	}
	return nil
}

// publishedEvent 记录一次事件发布
type publishedEvent struct {
	routingKey string
	event      interface{}
}

// mockPublisher 是用于测试的事件发布器模拟实现
type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *mockPublisher) Publish(_ context.Context, routingKey string, event interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{routingKey: routingKey, event: event})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// mockInvalidator 记录被失效的产品缓存键
type mockInvalidator struct {
	mu  sync.Mutex
	ids []int64
}

func (m *mockInvalidator) Invalidate(productID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, productID)
}

func (m *mockInvalidator) invalidated() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.ids))
	copy(out, m.ids)
	return out
}
