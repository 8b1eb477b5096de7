// Package repo 提供带缓存的产品仓储实现
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/MorseWayne/sales_manager/internal/cache"
	"github.com/MorseWayne/sales_manager/internal/domain"
)

// CachedProductRepository 带缓存的产品仓储。
// 只缓存按 ID 的单体读取；库存随订单状态频繁变化，
// 写路径（含状态流转所在事务提交后）由服务层调用 Invalidate 清除。
type CachedProductRepository struct {
	repo  ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProductRepository 创建带缓存的产品仓储
func NewCachedProductRepository(repo ProductRepository, cache cache.Cache, ttl time.Duration) *CachedProductRepository {
	return &CachedProductRepository{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

// Create 创建产品
func (r *CachedProductRepository) Create(product *domain.Product) error {
	return r.repo.Create(product)
}

// GetByID 根据ID获取产品（带缓存）
func (r *CachedProductRepository) GetByID(id int64) (*domain.Product, error) {
	ctx := context.Background()
	cacheKey := productCacheKey(id)

	var product domain.Product
	if err := r.cache.Get(ctx, cacheKey, &product); err == nil {
		return &product, nil
	}

	result, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	_ = r.cache.Set(ctx, cacheKey, result, r.ttl)
	return result, nil
}

// GetByNameAndSpec 根据名称与规格获取产品（不缓存，仅用于唯一性校验）
func (r *CachedProductRepository) GetByNameAndSpec(name, specification string) (*domain.Product, error) {
	return r.repo.GetByNameAndSpec(name, specification)
}

// Update 更新产品（清除缓存）
func (r *CachedProductRepository) Update(product *domain.Product) error {
	if err := r.repo.Update(product); err != nil {
		return err
	}
	r.Invalidate(product.ID)
	return nil
}

// Delete 删除产品（清除缓存）
func (r *CachedProductRepository) Delete(id int64) error {
	if err := r.repo.Delete(id); err != nil {
		return err
	}
	r.Invalidate(id)
	return nil
}

// List 获取产品列表（不缓存，参数组合太多且库存实时性要求高）
func (r *CachedProductRepository) List(req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	return r.repo.List(req)
}

// ListLowStock 低库存查询（不缓存）
func (r *CachedProductRepository) ListLowStock(threshold int) ([]*domain.Product, error) {
	return r.repo.ListLowStock(threshold)
}

// HasOrders 订单引用检查（不缓存）
func (r *CachedProductRepository) HasOrders(id int64) (bool, error) {
	return r.repo.HasOrders(id)
}

// Invalidate 清除指定产品的缓存，库存变更提交后调用
func (r *CachedProductRepository) Invalidate(id int64) {
	_ = r.cache.Del(context.Background(), productCacheKey(id))
}

func productCacheKey(id int64) string {
	return fmt.Sprintf("product:id:%d", id)
}
