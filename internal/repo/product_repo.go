package repo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/MorseWayne/sales_manager/internal/database"
	"github.com/MorseWayne/sales_manager/internal/domain"
)

// ProductRepository 定义产品数据访问接口。
// 库存字段（current_stock/sold_quantity）不走 Update，
// 只能通过库存流水或订单状态流转在事务内变更。
type ProductRepository interface {
	Create(product *domain.Product) error
	GetByID(id int64) (*domain.Product, error)
	GetByNameAndSpec(name, specification string) (*domain.Product, error)
	Update(product *domain.Product) error
	Delete(id int64) error
	List(req *domain.ProductListRequest) ([]*domain.Product, int64, error)
	ListLowStock(threshold int) ([]*domain.Product, error)
	// HasOrders 报告产品是否被订单引用，用于删除前校验
	HasOrders(id int64) (bool, error)
}

// productRepo 实现 ProductRepository 接口
type productRepo struct {
	db *database.DB
}

// NewProductRepository 创建产品仓储实例
func NewProductRepository(db *database.DB) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, name, specification, cost_price, current_stock, sold_quantity, created_at, updated_at`

// scanProductRow 扫描单行产品记录
func scanProductRow(scan func(dest ...interface{}) error) (*domain.Product, error) {
	p := &domain.Product{}
	err := scan(
		&p.ID,
		&p.Name,
		&p.Specification,
		&p.CostPrice,
		&p.CurrentStock,
		&p.SoldQuantity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create 创建产品，初始库存随产品一并写入
func (r *productRepo) Create(product *domain.Product) error {
	query := `
		INSERT INTO products (name, specification, cost_price, current_stock, sold_quantity)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		product.Name,
		product.Specification,
		product.CostPrice,
		product.CurrentStock,
		product.SoldQuantity,
	)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	product.ID = id
	return nil
}

// GetByID 根据ID查询产品
func (r *productRepo) GetByID(id int64) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ?`, productColumns)

	p, err := scanProductRow(r.db.QueryRow(query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// GetByNameAndSpec 根据名称与规格查询产品，用于唯一性校验
func (r *productRepo) GetByNameAndSpec(name, specification string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE name = ? AND specification = ?`, productColumns)

	p, err := scanProductRow(r.db.QueryRow(query, name, specification).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product by name and spec: %w", err)
	}
	return p, nil
}

// Update 更新产品基础信息，不包含库存字段
func (r *productRepo) Update(product *domain.Product) error {
	query := `
		UPDATE products
		SET name = ?, specification = ?, cost_price = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query,
		product.Name,
		product.Specification,
		product.CostPrice,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete 删除产品
func (r *productRepo) Delete(id int64) error {
	query := `DELETE FROM products WHERE id = ?`

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// List 分页查询产品列表
func (r *productRepo) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	where, args := r.buildListWhereClause(req)

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM products %s`, where)
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	orderBy := r.buildOrderClause(req)
	query := fmt.Sprintf(`SELECT %s FROM products %s %s LIMIT ? OFFSET ?`, productColumns, where, orderBy)

	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProductRow(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}

	return products, total, nil
}

// ListLowStock 查询库存不高于阈值的产品，按库存升序
func (r *productRepo) ListLowStock(threshold int) ([]*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE current_stock <= ?
		ORDER BY current_stock ASC
	`, productColumns)

	rows, err := r.db.Query(query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query low stock products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProductRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

// HasOrders 报告产品是否被订单引用
func (r *productRepo) HasOrders(id int64) (bool, error) {
	var count int64
	query := `SELECT COUNT(*) FROM orders WHERE product_id = ?`
	if err := r.db.QueryRow(query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("count product orders: %w", err)
	}
	return count > 0, nil
}

// buildListWhereClause 构建查询条件子句
func (r *productRepo) buildListWhereClause(req *domain.ProductListRequest) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if req.Keyword != nil && *req.Keyword != "" {
		conditions = append(conditions, "(name LIKE ? OR specification LIKE ?)")
		kw := "%" + *req.Keyword + "%"
		args = append(args, kw, kw)
	}

	if req.MaxStock != nil {
		conditions = append(conditions, "current_stock <= ?")
		args = append(args, *req.MaxStock)
	}

	if len(conditions) > 0 {
		return "WHERE " + strings.Join(conditions, " AND "), args
	}
	return "", args
}

// buildOrderClause 构建排序子句
func (r *productRepo) buildOrderClause(req *domain.ProductListRequest) string {
	sortBy := "created_at"
	sortOrder := "DESC"

	if req.SortBy != nil {
		switch *req.SortBy {
		case "name", "current_stock", "sold_quantity", "created_at":
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
