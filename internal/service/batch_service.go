package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/repo"
)

// 批次相关业务错误
var (
	ErrBatchNotFound  = errors.New("batch not found")
	ErrBatchExists    = errors.New("batch number already exists")
	ErrBatchHasOrders = errors.New("batch has existing orders")
)

// BatchService 定义批次服务接口。
// 所有读写操作都以操作者身份进行权限判定：
// 管理员可操作全部批次，普通用户只能操作自己创建的批次。
type BatchService interface {
	CreateBatch(actor *domain.User, req *domain.CreateBatchRequest) (*domain.Batch, error)
	GetBatch(actor *domain.User, id int64) (*domain.Batch, error)
	UpdateBatch(actor *domain.User, id int64, req *domain.UpdateBatchRequest) (*domain.Batch, error)
	DeleteBatch(actor *domain.User, id int64) error
	ListBatches(actor *domain.User, req *domain.BatchListRequest) (*domain.BatchListResponse, error)
	// RecalcProfit 重算批次总利润并返回最新批次
	RecalcProfit(actor *domain.User, id int64) (*domain.Batch, error)
}

// batchService 是 BatchService 接口的实现
type batchService struct {
	batchRepo repo.BatchRepository
	logger    *zap.Logger
}

// NewBatchService 创建批次服务实例
func NewBatchService(batchRepo repo.BatchRepository, logger *zap.Logger) BatchService {
	return &batchService{
		batchRepo: batchRepo,
		logger:    logger,
	}
}

// generateBatchNumber 生成批次号：B + 日期 + UUID前8位
func generateBatchNumber(date time.Time) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("B%s-%s", date.Format("20060102"), suffix)
}

// parseDate 解析 YYYY-MM-DD 日期，为空时取当天，field 用于校验错误定位
func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	}
	date, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "日期格式应为 YYYY-MM-DD")
	}
	return date, nil
}

// CreateBatch 创建批次，批次号为空时自动生成
func (s *batchService) CreateBatch(actor *domain.User, req *domain.CreateBatchRequest) (*domain.Batch, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}

	batchNumber := strings.TrimSpace(req.BatchNumber)
	if batchNumber == "" {
		batchNumber = generateBatchNumber(date)
	}

	existing, err := s.batchRepo.GetByBatchNumber(batchNumber)
	if err != nil {
		s.logger.Error("failed to check batch number", zap.Error(err))
		return nil, fmt.Errorf("check batch number: %w", err)
	}
	if existing != nil {
		return nil, ErrBatchExists
	}

	batch := &domain.Batch{
		BatchNumber: batchNumber,
		Date:        date,
		CreatedBy:   actor.ID,
	}

	if err := s.batchRepo.Create(batch); err != nil {
		s.logger.Error("failed to create batch", zap.Error(err))
		return nil, fmt.Errorf("create batch: %w", err)
	}

	s.logger.Info("batch created",
		zap.Int64("batch_id", batch.ID),
		zap.String("batch_number", batch.BatchNumber),
		zap.Int64("created_by", actor.ID),
	)
	return batch, nil
}

// GetBatch 获取批次，普通用户只能查看自己创建的批次
func (s *batchService) GetBatch(actor *domain.User, id int64) (*domain.Batch, error) {
	batch, err := s.batchRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get batch", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	if !actor.CanManage(batch.CreatedBy) {
		return nil, ErrPermissionDenied
	}
	return batch, nil
}

// UpdateBatch 更新批次基础信息
func (s *batchService) UpdateBatch(actor *domain.User, id int64, req *domain.UpdateBatchRequest) (*domain.Batch, error) {
	batch, err := s.GetBatch(actor, id)
	if err != nil {
		return nil, err
	}

	if req.BatchNumber != nil {
		batchNumber := strings.TrimSpace(*req.BatchNumber)
		if batchNumber == "" {
			return nil, domain.NewValidationError("batch_number", "批次号不能为空")
		}
		if batchNumber != batch.BatchNumber {
			existing, err := s.batchRepo.GetByBatchNumber(batchNumber)
			if err != nil {
				s.logger.Error("failed to check batch number", zap.Error(err))
				return nil, fmt.Errorf("check batch number: %w", err)
			}
			if existing != nil {
				return nil, ErrBatchExists
			}
			batch.BatchNumber = batchNumber
		}
	}
	if req.Date != nil {
		date, err := parseDate("date", *req.Date)
		if err != nil {
			return nil, err
		}
		batch.Date = date
	}

	if err := s.batchRepo.Update(batch); err != nil {
		s.logger.Error("failed to update batch", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("update batch: %w", err)
	}
	return batch, nil
}

// DeleteBatch 删除批次，批次下存在订单时拒绝删除
func (s *batchService) DeleteBatch(actor *domain.User, id int64) error {
	if _, err := s.GetBatch(actor, id); err != nil {
		return err
	}

	hasOrders, err := s.batchRepo.HasOrders(id)
	if err != nil {
		s.logger.Error("failed to check batch orders", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("check batch orders: %w", err)
	}
	if hasOrders {
		return ErrBatchHasOrders
	}

	if err := s.batchRepo.Delete(id); err != nil {
		s.logger.Error("failed to delete batch", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("delete batch: %w", err)
	}

	s.logger.Info("batch deleted", zap.Int64("batch_id", id))
	return nil
}

// ListBatches 分页查询批次列表，普通用户强制过滤为自己创建的批次
func (s *batchService) ListBatches(actor *domain.User, req *domain.BatchListRequest) (*domain.BatchListResponse, error) {
	normalizePage(&req.Page, &req.PageSize)

	if !actor.IsAdmin() {
		req.CreatedBy = &actor.ID
	}

	batches, total, err := s.batchRepo.List(req)
	if err != nil {
		s.logger.Error("failed to list batches", zap.Error(err))
		return nil, fmt.Errorf("list batches: %w", err)
	}

	return &domain.BatchListResponse{
		Batches:  batches,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// RecalcProfit 重算批次总利润
func (s *batchService) RecalcProfit(actor *domain.User, id int64) (*domain.Batch, error) {
	if _, err := s.GetBatch(actor, id); err != nil {
		return nil, err
	}

	if err := s.batchRepo.RecalcTotalProfit(id); err != nil {
		s.logger.Error("failed to recalc batch profit", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("recalc batch profit: %w", err)
	}

	batch, err := s.batchRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	return batch, nil
}
