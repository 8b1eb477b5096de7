package repo

import (
	"database/sql"
	"fmt"

	"github.com/MorseWayne/sales_manager/internal/database"
	"github.com/MorseWayne/sales_manager/internal/domain"
)

// CustomerRepository 定义客户数据访问接口
type CustomerRepository interface {
	Create(customer *domain.Customer) error
	GetByID(id int64) (*domain.Customer, error)
	Update(customer *domain.Customer) error
	Delete(id int64) error
	List(req *domain.CustomerListRequest) ([]*domain.Customer, int64, error)
	// HasOrders 报告客户名下是否存在订单，用于删除前校验
	HasOrders(id int64) (bool, error)
}

// customerRepo 实现 CustomerRepository 接口
type customerRepo struct {
	db *database.DB
}

// NewCustomerRepository 创建客户仓储实例
func NewCustomerRepository(db *database.DB) CustomerRepository {
	return &customerRepo{db: db}
}

const customerColumns = `id, name, contact, address, created_at, updated_at`

// Create 创建客户
func (r *customerRepo) Create(customer *domain.Customer) error {
	query := `INSERT INTO customers (name, contact, address) VALUES (?, ?, ?)`

	result, err := r.db.Exec(query, customer.Name, customer.Contact, customer.Address)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	customer.ID = id
	return nil
}

// GetByID 根据ID查询客户
func (r *customerRepo) GetByID(id int64) (*domain.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE id = ?`, customerColumns)

	customer := &domain.Customer{}
	err := r.db.QueryRow(query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Contact,
		&customer.Address,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by id: %w", err)
	}
	return customer, nil
}

// Update 更新客户信息
func (r *customerRepo) Update(customer *domain.Customer) error {
	query := `
		UPDATE customers
		SET name = ?, contact = ?, address = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.db.Exec(query, customer.Name, customer.Contact, customer.Address, customer.ID)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// Delete 删除客户
func (r *customerRepo) Delete(id int64) error {
	query := `DELETE FROM customers WHERE id = ?`

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

// List 分页查询客户列表，支持关键字匹配名称/联系方式/地址
func (r *customerRepo) List(req *domain.CustomerListRequest) ([]*domain.Customer, int64, error) {
	where := ""
	var args []interface{}

	if req.Keyword != nil && *req.Keyword != "" {
		where = "WHERE name LIKE ? OR contact LIKE ? OR address LIKE ?"
		kw := "%" + *req.Keyword + "%"
		args = append(args, kw, kw, kw)
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM customers %s`, where)
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM customers %s
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, customerColumns, where)

	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		customer := &domain.Customer{}
		err := rows.Scan(
			&customer.ID,
			&customer.Name,
			&customer.Contact,
			&customer.Address,
			&customer.CreatedAt,
			&customer.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate customers: %w", err)
	}

	return customers, total, nil
}

// HasOrders 报告客户名下是否存在订单
func (r *customerRepo) HasOrders(id int64) (bool, error) {
	var count int64
	query := `SELECT COUNT(*) FROM orders WHERE customer_id = ?`
	if err := r.db.QueryRow(query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("count customer orders: %w", err)
	}
	return count > 0, nil
}
