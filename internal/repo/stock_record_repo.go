package repo

import (
	"fmt"
	"strings"

	"github.com/MorseWayne/sales_manager/internal/database"
	"github.com/MorseWayne/sales_manager/internal/domain"
)

// StockRecordRepository 定义库存流水数据访问接口。
// 流水只增不改，接口不提供更新与删除。
type StockRecordRepository interface {
	// ApplyMovement 在单个事务内执行手工库存变更：
	// 锁定产品行、校验约束、更新库存并追加流水。
	// 产品不存在返回 (nil, nil)；出库超额返回 domain.InsufficientStockError。
	ApplyMovement(req *domain.CreateStockRecordRequest, operatedBy int64) (*domain.StockRecord, error)
	GetByID(id int64) (*domain.StockRecord, error)
	List(req *domain.StockRecordListRequest) ([]*domain.StockRecord, int64, error)
}

// stockRecordRepo 实现 StockRecordRepository 接口
type stockRecordRepo struct {
	db *database.DB
}

// NewStockRecordRepository 创建库存流水仓储实例
func NewStockRecordRepository(db *database.DB) StockRecordRepository {
	return &stockRecordRepo{db: db}
}

const stockRecordColumns = `id, product_id, operation_type, quantity, before_stock, after_stock, order_id, remark, operated_by, operated_at`

// ApplyMovement 执行手工库存变更
func (r *stockRecordRepo) ApplyMovement(req *domain.CreateStockRecordRequest, operatedBy int64) (*domain.StockRecord, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ls, err := lockProductStockTx(tx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if ls == nil {
		return nil, nil // 产品不存在
	}

	before := ls.CurrentStock
	var after, quantity int

	switch req.OperationType {
	case domain.StockOperationIn:
		quantity = req.Quantity
		after = before + quantity
	case domain.StockOperationOut:
		quantity = req.Quantity
		if before < quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: req.ProductID,
				Current:   before,
				Requested: quantity,
			}
		}
		after = before - quantity
	case domain.StockOperationAdjust:
		after = *req.AfterStock
		quantity = after - before
		if quantity < 0 {
			quantity = -quantity
		}
	default:
		return nil, fmt.Errorf("unknown stock operation type: %s", req.OperationType)
	}

	if err := updateProductStockTx(tx, req.ProductID, after, ls.SoldQuantity); err != nil {
		return nil, err
	}

	record := &domain.StockRecord{
		ProductID:     req.ProductID,
		OperationType: req.OperationType,
		Quantity:      quantity,
		BeforeStock:   before,
		AfterStock:    after,
		Remark:        req.Remark,
		OperatedBy:    operatedBy,
	}
	if err := insertStockRecordTx(tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return record, nil
}

// GetByID 根据ID查询流水
func (r *stockRecordRepo) GetByID(id int64) (*domain.StockRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM stock_records WHERE id = ?`, stockRecordColumns)

	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("get stock record by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanStockRecord(rows.Scan)
}

// List 分页查询库存流水，按操作时间倒序
func (r *stockRecordRepo) List(req *domain.StockRecordListRequest) ([]*domain.StockRecord, int64, error) {
	var conditions []string
	var args []interface{}

	if req.ProductID != nil {
		conditions = append(conditions, "product_id = ?")
		args = append(args, *req.ProductID)
	}
	if req.OperationType != nil {
		conditions = append(conditions, "operation_type = ?")
		args = append(args, string(*req.OperationType))
	}
	if req.StartTime != nil {
		conditions = append(conditions, "operated_at >= ?")
		args = append(args, *req.StartTime)
	}
	if req.EndTime != nil {
		conditions = append(conditions, "operated_at <= ?")
		args = append(args, *req.EndTime)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM stock_records %s`, where)
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stock records: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM stock_records %s
		ORDER BY operated_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, stockRecordColumns, where)

	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query stock records: %w", err)
	}
	defer rows.Close()

	var records []*domain.StockRecord
	for rows.Next() {
		record, err := scanStockRecord(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan stock record: %w", err)
		}
		records = append(records, record)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stock records: %w", err)
	}

	return records, total, nil
}

// scanStockRecord 扫描单行库存流水
func scanStockRecord(scan func(dest ...interface{}) error) (*domain.StockRecord, error) {
	record := &domain.StockRecord{}
	err := scan(
		&record.ID,
		&record.ProductID,
		&record.OperationType,
		&record.Quantity,
		&record.BeforeStock,
		&record.AfterStock,
		&record.OrderID,
		&record.Remark,
		&record.OperatedBy,
		&record.OperatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}
