package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/sales_manager/internal/domain"
	"github.com/MorseWayne/sales_manager/internal/repo"
)

// 产品相关业务错误
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrProductExists    = errors.New("product with same name and specification already exists")
	ErrProductHasOrders = errors.New("product has existing orders")
)

// ProductService 定义产品服务接口
type ProductService interface {
	CreateProduct(req *domain.CreateProductRequest) (*domain.ProductView, error)
	GetProduct(id int64) (*domain.ProductView, error)
	UpdateProduct(id int64, req *domain.UpdateProductRequest) (*domain.ProductView, error)
	DeleteProduct(id int64) error
	ListProducts(req *domain.ProductListRequest) (*domain.ProductListResponse, error)
	// ListLowStock 按阈值查询低库存产品，threshold<=0 时使用配置默认值
	ListLowStock(threshold int) ([]*domain.ProductView, error)
}

// productService 是 ProductService 接口的实现
type productService struct {
	productRepo       repo.ProductRepository
	lowStockThreshold int
	logger            *zap.Logger
}

// NewProductService 创建产品服务实例
func NewProductService(productRepo repo.ProductRepository, lowStockThreshold int, logger *zap.Logger) ProductService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = domain.DefaultLowStockThreshold
	}
	return &productService{
		productRepo:       productRepo,
		lowStockThreshold: lowStockThreshold,
		logger:            logger,
	}
}

// view 构建带库存状态的产品视图
func (s *productService) view(p *domain.Product) *domain.ProductView {
	return &domain.ProductView{
		Product:     p,
		StockStatus: p.StockStatus(s.lowStockThreshold),
	}
}

// CreateProduct 创建产品
// 业务规则：名称+规格组合唯一；初始库存随产品写入
func (s *productService) CreateProduct(req *domain.CreateProductRequest) (*domain.ProductView, error) {
	name := strings.TrimSpace(req.Name)
	spec := strings.TrimSpace(req.Specification)
	if name == "" {
		return nil, domain.NewValidationError("name", "产品名称不能为空")
	}
	if req.CostPrice < 0 {
		return nil, domain.NewValidationError("cost_price", "成本价不能为负数")
	}
	if req.InitialStock < 0 {
		return nil, domain.NewValidationError("initial_stock", "初始库存不能为负数")
	}

	existing, err := s.productRepo.GetByNameAndSpec(name, spec)
	if err != nil {
		s.logger.Error("failed to check product uniqueness", zap.Error(err))
		return nil, fmt.Errorf("check product uniqueness: %w", err)
	}
	if existing != nil {
		return nil, ErrProductExists
	}

	product := &domain.Product{
		Name:          name,
		Specification: spec,
		CostPrice:     req.CostPrice,
		CurrentStock:  req.InitialStock,
	}

	if err := s.productRepo.Create(product); err != nil {
		s.logger.Error("failed to create product", zap.Error(err))
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("initial_stock", product.CurrentStock),
	)
	return s.view(product), nil
}

// GetProduct 根据ID获取产品
func (s *productService) GetProduct(id int64) (*domain.ProductView, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get product", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return s.view(product), nil
}

// UpdateProduct 更新产品基础信息，库存字段不可经此修改
func (s *productService) UpdateProduct(id int64, req *domain.UpdateProductRequest) (*domain.ProductView, error) {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get product", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	name := product.Name
	spec := product.Specification
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "产品名称不能为空")
		}
	}
	if req.Specification != nil {
		spec = strings.TrimSpace(*req.Specification)
	}

	// 名称或规格变化时重新校验唯一性
	if name != product.Name || spec != product.Specification {
		existing, err := s.productRepo.GetByNameAndSpec(name, spec)
		if err != nil {
			s.logger.Error("failed to check product uniqueness", zap.Error(err))
			return nil, fmt.Errorf("check product uniqueness: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, ErrProductExists
		}
	}

	product.Name = name
	product.Specification = spec
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return nil, domain.NewValidationError("cost_price", "成本价不能为负数")
		}
		product.CostPrice = *req.CostPrice
	}

	if err := s.productRepo.Update(product); err != nil {
		s.logger.Error("failed to update product", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("update product: %w", err)
	}

	return s.view(product), nil
}

// DeleteProduct 删除产品，被订单引用时拒绝删除
func (s *productService) DeleteProduct(id int64) error {
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get product", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return ErrProductNotFound
	}

	hasOrders, err := s.productRepo.HasOrders(id)
	if err != nil {
		s.logger.Error("failed to check product orders", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("check product orders: %w", err)
	}
	if hasOrders {
		return ErrProductHasOrders
	}

	if err := s.productRepo.Delete(id); err != nil {
		s.logger.Error("failed to delete product", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("delete product: %w", err)
	}

	s.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// ListProducts 分页查询产品列表
func (s *productService) ListProducts(req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	normalizePage(&req.Page, &req.PageSize)

	products, total, err := s.productRepo.List(req)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, fmt.Errorf("list products: %w", err)
	}

	views := make([]*domain.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, s.view(p))
	}

	return &domain.ProductListResponse{
		Products: views,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// ListLowStock 查询低库存产品
func (s *productService) ListLowStock(threshold int) ([]*domain.ProductView, error) {
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}

	products, err := s.productRepo.ListLowStock(threshold)
	if err != nil {
		s.logger.Error("failed to list low stock products", zap.Error(err))
		return nil, fmt.Errorf("list low stock products: %w", err)
	}

	views := make([]*domain.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, &domain.ProductView{
			Product:     p,
			StockStatus: p.StockStatus(threshold),
		})
	}
	return views, nil
}
