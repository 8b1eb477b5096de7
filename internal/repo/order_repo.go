package repo

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MorseWayne/sales_manager/internal/database"
	"github.com/MorseWayne/sales_manager/internal/domain"
)

// ErrStatusConflict 表示状态流转时订单已被并发修改
var ErrStatusConflict = errors.New("order status changed concurrently")

// StockAction 表示状态流转伴随的库存动作
type StockAction int

const (
	StockActionNone    StockAction = iota // 不动库存
	StockActionDeduct                     // 扣减库存
	StockActionRestore                    // 回补库存
)

// OrderRepository 定义订单数据访问接口
type OrderRepository interface {
	Create(order *domain.Order) error
	GetByID(id int64) (*domain.Order, error)
	Update(order *domain.Order) error
	Delete(id int64) error
	List(req *domain.OrderListRequest) ([]*domain.Order, int64, error)
	// UpdateStatus 在单个事务内完成状态落库、库存扣减/回补、
	// 流水追加与批次利润重算。expectedFrom 与行锁下的当前状态
	// 不一致时返回 ErrStatusConflict，调用方可重读后重试。
	// stock_deducted 标记保证并发下扣减与回补各至多执行一次。
	UpdateStatus(orderID int64, expectedFrom, to domain.OrderStatus, action StockAction, operatedBy int64) (*domain.Order, error)
}

// orderRepo 实现 OrderRepository 接口
type orderRepo struct {
	db *database.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(db *database.DB) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `id, order_number, batch_id, customer_id, product_id, quantity, unit_price, other_costs,
	sales_amount, total_cost, gross_profit, status, stock_deducted, order_date, remark, created_by, created_at, updated_at`

// scanOrder 扫描单行订单记录
func scanOrder(scan func(dest ...interface{}) error) (*domain.Order, error) {
	o := &domain.Order{}
	err := scan(
		&o.ID,
		&o.OrderNumber,
		&o.BatchID,
		&o.CustomerID,
		&o.ProductID,
		&o.Quantity,
		&o.UnitPrice,
		&o.OtherCosts,
		&o.SalesAmount,
		&o.TotalCost,
		&o.GrossProfit,
		&o.Status,
		&o.StockDeducted,
		&o.OrderDate,
		&o.Remark,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.StatusLabel = o.Status.Label()
	return o, nil
}

// Create 创建订单，派生金额由服务层计算后传入
func (r *orderRepo) Create(order *domain.Order) error {
	query := `
		INSERT INTO orders (order_number, batch_id, customer_id, product_id, quantity, unit_price, other_costs,
			sales_amount, total_cost, gross_profit, status, stock_deducted, order_date, remark, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		order.OrderNumber,
		order.BatchID,
		order.CustomerID,
		order.ProductID,
		order.Quantity,
		order.UnitPrice,
		order.OtherCosts,
		order.SalesAmount,
		order.TotalCost,
		order.GrossProfit,
		string(order.Status),
		order.StockDeducted,
		order.OrderDate,
		order.Remark,
		order.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	order.ID = id
	return nil
}

// GetByID 根据ID查询订单
func (r *orderRepo) GetByID(id int64) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = ?`, orderColumns)

	o, err := scanOrder(r.db.QueryRow(query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// Update 更新订单交易字段及重算后的派生金额
func (r *orderRepo) Update(order *domain.Order) error {
	query := `
		UPDATE orders
		SET customer_id = ?, quantity = ?, unit_price = ?, other_costs = ?,
			sales_amount = ?, total_cost = ?, gross_profit = ?, order_date = ?, remark = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query,
		order.CustomerID,
		order.Quantity,
		order.UnitPrice,
		order.OtherCosts,
		order.SalesAmount,
		order.TotalCost,
		order.GrossProfit,
		order.OrderDate,
		order.Remark,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// Delete 删除订单
func (r *orderRepo) Delete(id int64) error {
	query := `DELETE FROM orders WHERE id = ?`

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// List 分页查询订单列表
func (r *orderRepo) List(req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	where, args := r.buildListWhereClause(req)

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM orders %s`, where)
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orderBy := r.buildOrderClause(req)
	query := fmt.Sprintf(`SELECT %s FROM orders %s %s LIMIT ? OFFSET ?`, orderColumns, where, orderBy)

	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus 执行订单状态流转
func (r *orderRepo) UpdateStatus(orderID int64, expectedFrom, to domain.OrderStatus, action StockAction, operatedBy int64) (*domain.Order, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 锁定订单行，后续读到的状态与标记在事务内保持稳定
	lockQuery := fmt.Sprintf(`SELECT %s FROM orders WHERE id = ? FOR UPDATE`, orderColumns)
	order, err := scanOrder(tx.QueryRow(lockQuery, orderID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if order.Status != expectedFrom {
		return nil, ErrStatusConflict
	}

	stockDeducted := order.StockDeducted
	switch action {
	case StockActionDeduct:
		// 已扣减过则跳过，保证恰好一次
		if !order.StockDeducted {
			if err := r.deductStockTx(tx, order, operatedBy); err != nil {
				return nil, err
			}
			stockDeducted = true
		}
	case StockActionRestore:
		if order.StockDeducted {
			if err := r.restoreStockTx(tx, order, operatedBy); err != nil {
				return nil, err
			}
			stockDeducted = false
		}
	}

	updateQuery := `UPDATE orders SET status = ?, stock_deducted = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := tx.Exec(updateQuery, string(to), stockDeducted, orderID); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := recalcBatchProfitTx(tx, order.BatchID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	order.Status = to
	order.StatusLabel = to.Label()
	order.StockDeducted = stockDeducted
	return order, nil
}

// deductStockTx 在事务内扣减订单对应的产品库存并追加出库流水
func (r *orderRepo) deductStockTx(tx *sql.Tx, order *domain.Order, operatedBy int64) error {
	ls, err := lockProductStockTx(tx, order.ProductID)
	if err != nil {
		return err
	}
	if ls == nil {
		return fmt.Errorf("product %d not found", order.ProductID)
	}
	if ls.CurrentStock < order.Quantity {
		return &domain.InsufficientStockError{
			ProductID: order.ProductID,
			Current:   ls.CurrentStock,
			Requested: order.Quantity,
		}
	}

	after := ls.CurrentStock - order.Quantity
	if err := updateProductStockTx(tx, order.ProductID, after, ls.SoldQuantity+order.Quantity); err != nil {
		return err
	}

	orderID := order.ID
	return insertStockRecordTx(tx, &domain.StockRecord{
		ProductID:     order.ProductID,
		OperationType: domain.StockOperationOut,
		Quantity:      order.Quantity,
		BeforeStock:   ls.CurrentStock,
		AfterStock:    after,
		OrderID:       &orderID,
		Remark:        fmt.Sprintf("订单 %s 销售出库", order.OrderNumber),
		OperatedBy:    operatedBy,
	})
}

// restoreStockTx 在事务内回补订单对应的产品库存并追加入库流水
func (r *orderRepo) restoreStockTx(tx *sql.Tx, order *domain.Order, operatedBy int64) error {
	ls, err := lockProductStockTx(tx, order.ProductID)
	if err != nil {
		return err
	}
	if ls == nil {
		return fmt.Errorf("product %d not found", order.ProductID)
	}

	after := ls.CurrentStock + order.Quantity
	if err := updateProductStockTx(tx, order.ProductID, after, ls.SoldQuantity-order.Quantity); err != nil {
		return err
	}

	orderID := order.ID
	return insertStockRecordTx(tx, &domain.StockRecord{
		ProductID:     order.ProductID,
		OperationType: domain.StockOperationIn,
		Quantity:      order.Quantity,
		BeforeStock:   ls.CurrentStock,
		AfterStock:    after,
		OrderID:       &orderID,
		Remark:        fmt.Sprintf("订单 %s 取消/退款回补", order.OrderNumber),
		OperatedBy:    operatedBy,
	})
}

// buildListWhereClause 构建查询条件子句
func (r *orderRepo) buildListWhereClause(req *domain.OrderListRequest) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if req.BatchID != nil {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, *req.BatchID)
	}
	if req.CustomerID != nil {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, *req.CustomerID)
	}
	if req.ProductID != nil {
		conditions = append(conditions, "product_id = ?")
		args = append(args, *req.ProductID)
	}
	if req.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*req.Status))
	}
	if req.CreatedBy != nil {
		conditions = append(conditions, "created_by = ?")
		args = append(args, *req.CreatedBy)
	}

	if len(conditions) > 0 {
		return "WHERE " + strings.Join(conditions, " AND "), args
	}
	return "", args
}

// buildOrderClause 构建排序子句
func (r *orderRepo) buildOrderClause(req *domain.OrderListRequest) string {
	// 默认按下单日期倒序
	sortBy := "order_date"
	sortOrder := "DESC"

	if req.SortBy != nil {
		switch *req.SortBy {
		case "order_date", "created_at", "sales_amount", "gross_profit":
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
