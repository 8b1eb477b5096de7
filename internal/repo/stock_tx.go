package repo

import (
	"database/sql"
	"fmt"

	"github.com/MorseWayne/sales_manager/internal/domain"
)

// 本文件提供事务内共享的库存操作原语。
// 订单状态流转与手工库存变更都遵循同一套写入纪律：
// 先行锁定产品行，再更新库存数量，最后在同一事务内追加流水。

// lockedStock 表示行锁下读取的库存快照
type lockedStock struct {
	CurrentStock int
	SoldQuantity int
}

// lockProductStockTx 以 FOR UPDATE 锁定产品行并读取库存快照。
// 产品不存在时返回 (nil, nil)。
func lockProductStockTx(tx *sql.Tx, productID int64) (*lockedStock, error) {
	query := `SELECT current_stock, sold_quantity FROM products WHERE id = ? FOR UPDATE`

	ls := &lockedStock{}
	err := tx.QueryRow(query, productID).Scan(&ls.CurrentStock, &ls.SoldQuantity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock product stock: %w", err)
	}
	return ls, nil
}

// updateProductStockTx 在事务内写入产品库存与已售数量
func updateProductStockTx(tx *sql.Tx, productID int64, currentStock, soldQuantity int) error {
	query := `
		UPDATE products
		SET current_stock = ?, sold_quantity = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := tx.Exec(query, currentStock, soldQuantity, productID); err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	return nil
}

// insertStockRecordTx 在事务内追加一条库存流水
func insertStockRecordTx(tx *sql.Tx, record *domain.StockRecord) error {
	query := `
		INSERT INTO stock_records (product_id, operation_type, quantity, before_stock, after_stock, order_id, remark, operated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		record.ProductID,
		string(record.OperationType),
		record.Quantity,
		record.BeforeStock,
		record.AfterStock,
		record.OrderID,
		record.Remark,
		record.OperatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert stock record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// recalcBatchProfitTx 在事务内重算批次总利润。
// 只统计已确认、发货中、已完成三种状态的订单，语句天然幂等。
func recalcBatchProfitTx(tx *sql.Tx, batchID int64) error {
	query := `
		UPDATE batches
		SET total_profit = (
			SELECT COALESCE(SUM(gross_profit), 0)
			FROM orders
			WHERE batch_id = ? AND status IN (?, ?, ?)
		), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := tx.Exec(query,
		batchID,
		string(domain.OrderStatusConfirmed),
		string(domain.OrderStatusShipping),
		string(domain.OrderStatusCompleted),
		batchID,
	)
	if err != nil {
		return fmt.Errorf("recalc batch profit: %w", err)
	}
	return nil
}
