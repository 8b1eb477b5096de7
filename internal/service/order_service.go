package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/mq"
	"github.com/MorseWayne/sales_manager/internal/repo"
)

// 订单相关业务错误
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotEditable  = errors.New("only pending orders can be modified")
	ErrOrderNotDeletable = errors.New("orders holding stock cannot be deleted")
)

// ProductCacheInvalidator 库存变更提交后清除产品缓存
type ProductCacheInvalidator interface {
	Invalidate(productID int64)
}

// OrderService 定义订单服务接口。
// 状态流转遵循迁移表约束，进入占用库存状态时扣减库存，
// 进入已取消/已退款时回补库存，扣减与回补都保证恰好一次。
type OrderService interface {
	CreateOrder(actor *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error)
	GetOrder(actor *domain.User, id int64) (*domain.Order, error)
	UpdateOrder(actor *domain.User, id int64, req *domain.UpdateOrderRequest) (*domain.Order, error)
	DeleteOrder(actor *domain.User, id int64) error
	ListOrders(actor *domain.User, req *domain.OrderListRequest) (*domain.OrderListResponse, error)
	UpdateStatus(actor *domain.User, id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error)
	BatchUpdateStatus(actor *domain.User, req *domain.BatchUpdateStatusRequest) (*domain.BatchUpdateStatusResponse, error)
}

// orderService 是 OrderService 接口的实现
type orderService struct {
	orderRepo    repo.OrderRepository
	batchRepo    repo.BatchRepository
	productRepo  repo.ProductRepository
	customerRepo repo.CustomerRepository
	transitions  domain.TransitionTable
	invalidator  ProductCacheInvalidator
	publisher    mq.Publisher
	logger       *zap.Logger
}

// NewOrderService 创建订单服务实例，invalidator 可为 nil
func NewOrderService(
	orderRepo repo.OrderRepository,
	batchRepo repo.BatchRepository,
	productRepo repo.ProductRepository,
	customerRepo repo.CustomerRepository,
	invalidator ProductCacheInvalidator,
	publisher mq.Publisher,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		batchRepo:    batchRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		transitions:  domain.DefaultTransitionTable(),
		invalidator:  invalidator,
		publisher:    publisher,
		logger:       logger,
	}
}

// generateOrderNumber 生成订单号：SO + 日期 + UUID前8位
func generateOrderNumber() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("SO%s-%s", time.Now().Format("20060102"), suffix)
}

// validateTradeFields 校验订单交易字段
func validateTradeFields(quantity int, unitPrice, otherCosts float64) error {
	if quantity <= 0 {
		return domain.NewValidationError("quantity", "数量必须为正整数")
	}
	if unitPrice < 0 {
		return domain.NewValidationError("unit_price", "单价不能为负数")
	}
	if otherCosts < 0 {
		return domain.NewValidationError("other_costs", "其他费用不能为负数")
	}
	return nil
}

// CreateOrder 创建订单。
// 新订单始终处于待确认状态，不触碰库存；库存充足性在确认时校验。
func (s *orderService) CreateOrder(actor *domain.User, req *domain.CreateOrderRequest) (*domain.Order, error) {
	if err := validateTradeFields(req.Quantity, req.UnitPrice, req.OtherCosts); err != nil {
		return nil, err
	}
	orderDate, err := parseDate("order_date", req.OrderDate)
	if err != nil {
		return nil, err
	}

	batch, err := s.batchRepo.GetByID(req.BatchID)
	if err != nil {
		s.logger.Error("failed to get batch", zap.Int64("batch_id", req.BatchID), zap.Error(err))
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	if !actor.CanManage(batch.CreatedBy) {
		return nil, ErrPermissionDenied
	}

	customer, err := s.customerRepo.GetByID(req.CustomerID)
	if err != nil {
		s.logger.Error("failed to get customer", zap.Int64("customer_id", req.CustomerID), zap.Error(err))
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	product, err := s.productRepo.GetByID(req.ProductID)
	if err != nil {
		s.logger.Error("failed to get product", zap.Int64("product_id", req.ProductID), zap.Error(err))
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	order := &domain.Order{
		OrderNumber: generateOrderNumber(),
		BatchID:     req.BatchID,
		CustomerID:  req.CustomerID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		OtherCosts:  req.OtherCosts,
		Status:      domain.OrderStatusPending,
		OrderDate:   orderDate,
		Remark:      strings.TrimSpace(req.Remark),
		CreatedBy:   actor.ID,
	}
	order.ComputeDerived(product.CostPrice)
	order.StatusLabel = order.Status.Label()

	if err := s.orderRepo.Create(order); err != nil {
		s.logger.Error("failed to create order", zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("batch_id", order.BatchID),
		zap.Float64("gross_profit", order.GrossProfit),
	)
	return order, nil
}

// GetOrder 获取订单，普通用户只能查看自己创建的订单
func (s *orderService) GetOrder(actor *domain.User, id int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get order", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !actor.CanManage(order.CreatedBy) {
		return nil, ErrPermissionDenied
	}
	return order, nil
}

// UpdateOrder 更新订单交易字段，仅待确认订单允许修改；派生金额随之重算
func (s *orderService) UpdateOrder(actor *domain.User, id int64, req *domain.UpdateOrderRequest) (*domain.Order, error) {
	order, err := s.GetOrder(actor, id)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, ErrOrderNotEditable
	}

	if req.CustomerID != nil {
		customer, err := s.customerRepo.GetByID(*req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("get customer: %w", err)
		}
		if customer == nil {
			return nil, ErrCustomerNotFound
		}
		order.CustomerID = *req.CustomerID
	}
	if req.Quantity != nil {
		order.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		order.UnitPrice = *req.UnitPrice
	}
	if req.OtherCosts != nil {
		order.OtherCosts = *req.OtherCosts
	}
	if req.OrderDate != nil {
		orderDate, err := parseDate("order_date", *req.OrderDate)
		if err != nil {
			return nil, err
		}
		order.OrderDate = orderDate
	}
	if req.Remark != nil {
		order.Remark = strings.TrimSpace(*req.Remark)
	}

	if err := validateTradeFields(order.Quantity, order.UnitPrice, order.OtherCosts); err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(order.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	order.ComputeDerived(product.CostPrice)

	if err := s.orderRepo.Update(order); err != nil {
		s.logger.Error("failed to update order", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("update order: %w", err)
	}
	return order, nil
}

// DeleteOrder 删除订单，占用库存的订单不允许删除
func (s *orderService) DeleteOrder(actor *domain.User, id int64) error {
	order, err := s.GetOrder(actor, id)
	if err != nil {
		return err
	}
	if order.StockDeducted {
		return ErrOrderNotDeletable
	}

	if err := s.orderRepo.Delete(id); err != nil {
		s.logger.Error("failed to delete order", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("delete order: %w", err)
	}

	s.logger.Info("order deleted", zap.Int64("order_id", id))
	return nil
}

// ListOrders 分页查询订单列表，普通用户强制过滤为自己创建的订单
func (s *orderService) ListOrders(actor *domain.User, req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	normalizePage(&req.Page, &req.PageSize)

	if !actor.IsAdmin() {
		req.CreatedBy = &actor.ID
	}
	if req.Status != nil && !req.Status.IsValid() {
		return nil, domain.NewValidationError("status", "未知的订单状态")
	}

	orders, total, err := s.orderRepo.List(req)
	if err != nil {
		s.logger.Error("failed to list orders", zap.Error(err))
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return &domain.OrderListResponse{
		Orders:   orders,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// stockActionFor 根据迁移方向决定库存动作。
// 首次进入占用库存状态时扣减；到达已取消或已退款时回补。
// 扣减/回补是否真正执行还受订单 stock_deducted 标记约束。
func stockActionFor(from, to domain.OrderStatus) repo.StockAction {
	if to.IsStockConsuming() && !from.IsStockConsuming() {
		return repo.StockActionDeduct
	}
	if to == domain.OrderStatusCancelled || to == domain.OrderStatusRefunded {
		return repo.StockActionRestore
	}
	return repo.StockActionNone
}

// UpdateStatus 执行订单状态流转
func (s *orderService) UpdateStatus(actor *domain.User, id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
	if !req.Status.IsValid() {
		return nil, domain.NewValidationError("status", "未知的订单状态")
	}

	order, err := s.GetOrder(actor, id)
	if err != nil {
		return nil, err
	}

	from := order.Status
	to := req.Status
	if !s.transitions.CanTransition(from, to) {
		return nil, &domain.InvalidTransitionError{From: from, To: to}
	}

	updated, err := s.orderRepo.UpdateStatus(id, from, to, stockActionFor(from, to), actor.ID)
	if err != nil {
		s.logger.Warn("order status transition failed",
			zap.Int64("order_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return nil, err
	}
	if updated == nil {
		return nil, ErrOrderNotFound
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(updated.ProductID)
	}
	s.publishStatusChanged(updated, from, actor.ID)

	s.logger.Info("order status updated",
		zap.Int64("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("stock_deducted", updated.StockDeducted),
	)
	return updated, nil
}

// BatchUpdateStatus 批量状态流转，逐单独立处理，单笔失败不影响其余订单
func (s *orderService) BatchUpdateStatus(actor *domain.User, req *domain.BatchUpdateStatusRequest) (*domain.BatchUpdateStatusResponse, error) {
	if !req.Status.IsValid() {
		return nil, domain.NewValidationError("status", "未知的订单状态")
	}
	if len(req.OrderIDs) == 0 {
		return nil, domain.NewValidationError("order_ids", "订单列表不能为空")
	}

	result := &domain.BatchUpdateStatusResponse{}
	for _, orderID := range req.OrderIDs {
		_, err := s.UpdateStatus(actor, orderID, &domain.UpdateOrderStatusRequest{Status: req.Status})
		if err != nil {
			result.Failed = append(result.Failed, domain.BatchUpdateStatusFailure{
				OrderID: orderID,
				Reason:  err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, orderID)
	}
	return result, nil
}

// publishStatusChanged 发布状态变更事件，失败只记日志
func (s *orderService) publishStatusChanged(order *domain.Order, from domain.OrderStatus, operatedBy int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	event := &mq.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BatchID:     order.BatchID,
		FromStatus:  string(from),
		ToStatus:    string(order.Status),
		OperatedBy:  operatedBy,
		OccurredAt:  time.Now(),
	}
	if err := s.publisher.Publish(ctx, mq.RoutingKeyOrderStatusChanged, event); err != nil {
		s.logger.Warn("failed to publish order status event",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}
}
