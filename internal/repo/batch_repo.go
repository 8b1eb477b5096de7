package repo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/MorseWayne/sales_manager/internal/database"
	"github.com/MorseWayne/sales_manager/internal/domain"
)

// BatchRepository 定义批次数据访问接口
type BatchRepository interface {
	Create(batch *domain.Batch) error
	GetByID(id int64) (*domain.Batch, error)
	GetByBatchNumber(batchNumber string) (*domain.Batch, error)
	Update(batch *domain.Batch) error
	Delete(id int64) error
	List(req *domain.BatchListRequest) ([]*domain.Batch, int64, error)
	// RecalcTotalProfit 重算批次总利润，任何时刻调用结果一致
	RecalcTotalProfit(batchID int64) error
	// HasOrders 报告批次下是否存在订单，用于删除前校验
	HasOrders(id int64) (bool, error)
}

// batchRepo 实现 BatchRepository 接口
type batchRepo struct {
	db *database.DB
}

// NewBatchRepository 创建批次仓储实例
func NewBatchRepository(db *database.DB) BatchRepository {
	return &batchRepo{db: db}
}

const batchColumns = `id, batch_number, date, total_profit, created_by, created_at, updated_at`

// scanBatch 扫描单行批次记录
func scanBatch(scan func(dest ...interface{}) error) (*domain.Batch, error) {
	b := &domain.Batch{}
	err := scan(
		&b.ID,
		&b.BatchNumber,
		&b.Date,
		&b.TotalProfit,
		&b.CreatedBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Create 创建批次
func (r *batchRepo) Create(batch *domain.Batch) error {
	query := `
		INSERT INTO batches (batch_number, date, total_profit, created_by)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		batch.BatchNumber,
		batch.Date,
		batch.TotalProfit,
		batch.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	batch.ID = id
	return nil
}

// GetByID 根据ID查询批次
func (r *batchRepo) GetByID(id int64) (*domain.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE id = ?`, batchColumns)

	b, err := scanBatch(r.db.QueryRow(query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch by id: %w", err)
	}
	return b, nil
}

// GetByBatchNumber 根据批次号查询批次，用于唯一性校验
func (r *batchRepo) GetByBatchNumber(batchNumber string) (*domain.Batch, error) {
	query := fmt.Sprintf(`SELECT %s FROM batches WHERE batch_number = ?`, batchColumns)

	b, err := scanBatch(r.db.QueryRow(query, batchNumber).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch by batch number: %w", err)
	}
	return b, nil
}

// Update 更新批次基础信息，total_profit 只通过 RecalcTotalProfit 变更
func (r *batchRepo) Update(batch *domain.Batch) error {
	query := `
		UPDATE batches
		SET batch_number = ?, date = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query, batch.BatchNumber, batch.Date, batch.ID)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// Delete 删除批次
func (r *batchRepo) Delete(id int64) error {
	query := `DELETE FROM batches WHERE id = ?`

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// List 分页查询批次列表
func (r *batchRepo) List(req *domain.BatchListRequest) ([]*domain.Batch, int64, error) {
	var conditions []string
	var args []interface{}

	if req.Keyword != nil && *req.Keyword != "" {
		conditions = append(conditions, "batch_number LIKE ?")
		args = append(args, "%"+*req.Keyword+"%")
	}
	if req.CreatedBy != nil {
		conditions = append(conditions, "created_by = ?")
		args = append(args, *req.CreatedBy)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM batches %s`, where)
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	orderBy := r.buildOrderClause(req)
	query := fmt.Sprintf(`SELECT %s FROM batches %s %s LIMIT ? OFFSET ?`, batchColumns, where, orderBy)

	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.Batch
	for rows.Next() {
		b, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate batches: %w", err)
	}

	return batches, total, nil
}

// RecalcTotalProfit 重算批次总利润
func (r *batchRepo) RecalcTotalProfit(batchID int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := recalcBatchProfitTx(tx, batchID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// HasOrders 报告批次下是否存在订单
func (r *batchRepo) HasOrders(id int64) (bool, error) {
	var count int64
	query := `SELECT COUNT(*) FROM orders WHERE batch_id = ?`
	if err := r.db.QueryRow(query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("count batch orders: %w", err)
	}
	return count > 0, nil
}

// buildOrderClause 构建排序子句
func (r *batchRepo) buildOrderClause(req *domain.BatchListRequest) string {
	sortBy := "date"
	sortOrder := "DESC"

	if req.SortBy != nil {
		switch *req.SortBy {
		case "date", "total_profit", "created_at":
			sortBy = *req.SortBy
		}
	}
	if req.SortOrder != nil {
		if strings.ToUpper(*req.SortOrder) == "ASC" {
			sortOrder = "ASC"
		}
	}

	return fmt.Sprintf("ORDER BY %s %s", sortBy, sortOrder)
}
