package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/repo"
)

// 客户相关业务错误
var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrCustomerHasOrders = errors.New("customer has existing orders")
)

// CustomerService 定义客户服务接口
type CustomerService interface {
	CreateCustomer(req *domain.CreateCustomerRequest) (*domain.Customer, error)
	GetCustomer(id int64) (*domain.Customer, error)
	UpdateCustomer(id int64, req *domain.UpdateCustomerRequest) (*domain.Customer, error)
	DeleteCustomer(id int64) error
	ListCustomers(req *domain.CustomerListRequest) (*domain.CustomerListResponse, error)
}

// customerService 是 CustomerService 接口的实现
type customerService struct {
	customerRepo repo.CustomerRepository
	logger       *zap.Logger
}

// NewCustomerService 创建客户服务实例
func NewCustomerService(customerRepo repo.CustomerRepository, logger *zap.Logger) CustomerService {
	return &customerService{
		customerRepo: customerRepo,
		logger:       logger,
	}
}

// CreateCustomer 创建客户
func (s *customerService) CreateCustomer(req *domain.CreateCustomerRequest) (*domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "客户名称不能为空")
	}

	customer := &domain.Customer{
		Name:    name,
		Contact: strings.TrimSpace(req.Contact),
		Address: strings.TrimSpace(req.Address),
	}

	if err := s.customerRepo.Create(customer); err != nil {
		s.logger.Error("failed to create customer", zap.Error(err))
		return nil, fmt.Errorf("create customer: %w", err)
	}

	s.logger.Info("customer created", zap.Int64("customer_id", customer.ID), zap.String("name", customer.Name))
	return customer, nil
}

// GetCustomer 根据ID获取客户
func (s *customerService) GetCustomer(id int64) (*domain.Customer, error) {
	customer, err := s.customerRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get customer", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}
	return customer, nil
}

// UpdateCustomer 更新客户信息，仅更新请求中出现的字段
func (s *customerService) UpdateCustomer(id int64, req *domain.UpdateCustomerRequest) (*domain.Customer, error) {
	customer, err := s.GetCustomer(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "客户名称不能为空")
		}
		customer.Name = name
	}
	if req.Contact != nil {
		customer.Contact = strings.TrimSpace(*req.Contact)
	}
	if req.Address != nil {
		customer.Address = strings.TrimSpace(*req.Address)
	}

	if err := s.customerRepo.Update(customer); err != nil {
		s.logger.Error("failed to update customer", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("update customer: %w", err)
	}

	return customer, nil
}

// DeleteCustomer 删除客户，名下存在订单时拒绝删除
func (s *customerService) DeleteCustomer(id int64) error {
	customer, err := s.customerRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get customer", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		return ErrCustomerNotFound
	}

	hasOrders, err := s.customerRepo.HasOrders(id)
	if err != nil {
		s.logger.Error("failed to check customer orders", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("check customer orders: %w", err)
	}
	if hasOrders {
		return ErrCustomerHasOrders
	}

	if err := s.customerRepo.Delete(id); err != nil {
		s.logger.Error("failed to delete customer", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("delete customer: %w", err)
	}

	s.logger.Info("customer deleted", zap.Int64("customer_id", id))
	return nil
}

// ListCustomers 分页查询客户列表
func (s *customerService) ListCustomers(req *domain.CustomerListRequest) (*domain.CustomerListResponse, error) {
	normalizePage(&req.Page, &req.PageSize)

	customers, total, err := s.customerRepo.List(req)
	if err != nil {
		s.logger.Error("failed to list customers", zap.Error(err))
		return nil, fmt.Errorf("list customers: %w", err)
	}

	return &domain.CustomerListResponse{
		Customers: customers,
		Total:     total,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}, nil
}
