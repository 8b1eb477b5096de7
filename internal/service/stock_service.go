package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/mq"
	"github.com/MorseWayne/sales_manager/internal/repo"
)

// ErrStockRecordNotFound 流水不存在
var ErrStockRecordNotFound = errors.New("stock record not found")

// StockService 定义库存台账服务接口。
// 所有库存变化都通过此服务或订单状态流转产生，每次变化追加一条不可变流水。
type StockService interface {
	// CreateMovement 执行手工入库/出库/盘点调整
	CreateMovement(actor *domain.User, req *domain.CreateStockRecordRequest) (*domain.StockRecord, error)
	GetRecord(id int64) (*domain.StockRecord, error)
	ListRecords(req *domain.StockRecordListRequest) (*domain.StockRecordListResponse, error)
}

// stockService 是 StockService 接口的实现
type stockService struct {
	recordRepo        repo.StockRecordRepository
	productRepo       repo.ProductRepository
	lowStockThreshold int
	invalidator       ProductCacheInvalidator
	publisher         mq.Publisher
	logger            *zap.Logger
}

// NewStockService 创建库存台账服务实例，invalidator 可为 nil
func NewStockService(
	recordRepo repo.StockRecordRepository,
	productRepo repo.ProductRepository,
	lowStockThreshold int,
	invalidator ProductCacheInvalidator,
	publisher mq.Publisher,
	logger *zap.Logger,
) StockService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = domain.DefaultLowStockThreshold
	}
	return &stockService{
		recordRepo:        recordRepo,
		productRepo:       productRepo,
		lowStockThreshold: lowStockThreshold,
		invalidator:       invalidator,
		publisher:         publisher,
		logger:            logger,
	}
}

// CreateMovement 执行手工库存变更
func (s *stockService) CreateMovement(actor *domain.User, req *domain.CreateStockRecordRequest) (*domain.StockRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := s.recordRepo.ApplyMovement(req, actor.ID)
	if err != nil {
		s.logger.Warn("stock movement failed",
			zap.Int64("product_id", req.ProductID),
			zap.String("operation_type", string(req.OperationType)),
			zap.Error(err),
		)
		return nil, err
	}
	if record == nil {
		return nil, ErrProductNotFound
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(record.ProductID)
	}
	s.publishMovement(record)

	s.logger.Info("stock movement applied",
		zap.Int64("record_id", record.ID),
		zap.Int64("product_id", record.ProductID),
		zap.String("operation_type", string(record.OperationType)),
		zap.Int("before_stock", record.BeforeStock),
		zap.Int("after_stock", record.AfterStock),
	)
	return record, nil
}

// GetRecord 根据ID获取流水
func (s *stockService) GetRecord(id int64) (*domain.StockRecord, error) {
	record, err := s.recordRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get stock record", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	if record == nil {
		return nil, ErrStockRecordNotFound
	}
	return record, nil
}

// ListRecords 分页查询库存流水
func (s *stockService) ListRecords(req *domain.StockRecordListRequest) (*domain.StockRecordListResponse, error) {
	normalizePage(&req.Page, &req.PageSize)

	records, total, err := s.recordRepo.List(req)
	if err != nil {
		s.logger.Error("failed to list stock records", zap.Error(err))
		return nil, fmt.Errorf("list stock records: %w", err)
	}

	return &domain.StockRecordListResponse{
		Records:  records,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// publishMovement 发布库存变更事件，跌破阈值时附带低库存告警
func (s *stockService) publishMovement(record *domain.StockRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	event := &mq.StockMovementEvent{
		RecordID:      record.ID,
		ProductID:     record.ProductID,
		OperationType: string(record.OperationType),
		Quantity:      record.Quantity,
		BeforeStock:   record.BeforeStock,
		AfterStock:    record.AfterStock,
		OrderID:       record.OrderID,
		OperatedBy:    record.OperatedBy,
		OccurredAt:    time.Now(),
	}
	if err := s.publisher.Publish(ctx, mq.RoutingKeyStockMovement, event); err != nil {
		s.logger.Warn("failed to publish stock movement event",
			zap.Int64("record_id", record.ID),
			zap.Error(err),
		)
	}

	if record.AfterStock <= s.lowStockThreshold && record.AfterStock < record.BeforeStock {
		product, err := s.productRepo.GetByID(record.ProductID)
		if err != nil || product == nil {
			return
		}
		alert := &mq.LowStockEvent{
			ProductID:    product.ID,
			ProductName:  product.Name,
			CurrentStock: record.AfterStock,
			Threshold:    s.lowStockThreshold,
			OccurredAt:   time.Now(),
		}
		if err := s.publisher.Publish(ctx, mq.RoutingKeyLowStock, alert); err != nil {
			s.logger.Warn("failed to publish low stock event",
				zap.Int64("product_id", product.ID),
				zap.Error(err),
			)
		}
	}
}
