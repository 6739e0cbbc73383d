package repository

import (
	"context"

	"gorm.io/gorm"

	"scenergy_visualizer/internal/model"
)

// ==================== 仓储接口 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetWithAssets(ctx context.Context, id int64) (*model.Product, error)
	GetByWooID(ctx context.Context, clientID, wooID int64) (*model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
}

// ProductAssetRepository 商品资产仓储接口
type ProductAssetRepository interface {
	Create(ctx context.Context, asset *model.ProductAsset) error
	CreateBatch(ctx context.Context, assets []model.ProductAsset) error
	GetByID(ctx context.Context, id int64) (*model.ProductAsset, error)
	GetByProductID(ctx context.Context, productID int64) ([]model.ProductAsset, error)
	Delete(ctx context.Context, id int64) error
	DeleteByProductID(ctx context.Context, productID int64) error
}

// ProductFilter 商品过滤条件
type ProductFilter struct {
	ClientID   int64
	CategoryID int64
	Source     string
	Status     string
	Keyword    string
	Page       int
	PageSize   int
}

// ==================== Product 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) GetWithAssets(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Preload("Assets").First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetByWooID 按 WooCommerce 商品ID查找，用于导入去重
func (r *productRepo) GetByWooID(ctx context.Context, clientID, wooID int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND woo_id = ? AND source = ?", clientID, wooID, model.ProductSourceWoo).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *productRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(fields).Error
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Product{}, id).Error
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Product{})

	if filter.ClientID > 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.CategoryID > 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		query = query.Where("name LIKE ? OR sku LIKE ?", "%"+filter.Keyword+"%", "%"+filter.Keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize
	err := query.Preload("Assets").
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ==================== ProductAsset 仓储实现 ====================

type productAssetRepo struct {
	db *gorm.DB
}

// NewProductAssetRepository 创建商品资产仓储
func NewProductAssetRepository(db *gorm.DB) ProductAssetRepository {
	return &productAssetRepo{db: db}
}

func (r *productAssetRepo) Create(ctx context.Context, asset *model.ProductAsset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *productAssetRepo) CreateBatch(ctx context.Context, assets []model.ProductAsset) error {
	if len(assets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&assets).Error
}

func (r *productAssetRepo) GetByID(ctx context.Context, id int64) (*model.ProductAsset, error) {
	var asset model.ProductAsset
	if err := r.db.WithContext(ctx).First(&asset, id).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *productAssetRepo) GetByProductID(ctx context.Context, productID int64) ([]model.ProductAsset, error) {
	var assets []model.ProductAsset
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id ASC").
		Find(&assets).Error
	return assets, err
}

func (r *productAssetRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.ProductAsset{}, id).Error
}

func (r *productAssetRepo) DeleteByProductID(ctx context.Context, productID int64) error {
	return r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&model.ProductAsset{}).Error
}
