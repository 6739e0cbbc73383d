package service

import (
	"context"
	"errors"
	"time"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
	"scenergy_visualizer/pkg/utils"
)

// ==================== 错误 ====================

var ErrUnsupportedAsset = errors.New("不支持的资产格式，仅支持图片和 GLB 模型")

// ==================== 服务 ====================

// ProductService 商品与资产管理服务
type ProductService struct {
	productRepo repository.ProductRepository
	assetRepo   repository.ProductAssetRepository
	storage     *StorageService
}

// NewProductService 创建商品服务
func NewProductService(
	productRepo repository.ProductRepository,
	assetRepo repository.ProductAssetRepository,
	storage *StorageService,
) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		assetRepo:   assetRepo,
		storage:     storage,
	}
}

// ==================== 商品管理 ====================

// Create 创建手动录入的商品
func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*model.Product, error) {
	product := &model.Product{
		ClientID:    req.ClientID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
		Source:      model.ProductSourceUpload,
		Status:      model.ProductStatusActive,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Update 更新商品字段
func (s *ProductService) Update(ctx context.Context, id int64, req dto.UpdateProductRequest) error {
	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.SKU != nil {
		fields["sku"] = *req.SKU
	}
	if req.CategoryID != nil {
		fields["category_id"] = *req.CategoryID
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if len(fields) == 0 {
		return nil
	}
	return s.productRepo.UpdateFields(ctx, id, fields)
}

// Get 商品详情（带资产）
func (s *ProductService) Get(ctx context.Context, id int64) (*model.Product, error) {
	return s.productRepo.GetWithAssets(ctx, id)
}

// List 商品列表
func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) ([]model.Product, int64, error) {
	return s.productRepo.List(ctx, repository.ProductFilter{
		ClientID:   req.ClientID,
		CategoryID: req.CategoryID,
		Source:     req.Source,
		Status:     req.Status,
		Keyword:    req.Keyword,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
}

// Delete 删除商品及其资产记录
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := s.assetRepo.DeleteByProductID(ctx, id); err != nil {
		return err
	}
	return s.productRepo.Delete(ctx, id)
}

// ==================== 资产上传 ====================

// UploadAsset 上传商品资产，按文件头识别图片/GLB
func (s *ProductService) UploadAsset(ctx context.Context, productID int64, data []byte, originalName string) (*model.ProductAsset, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	kind, contentType := utils.DetectAssetKind(data)
	if kind == "" {
		return nil, ErrUnsupportedAsset
	}

	url, err := s.storage.SaveAsset(ctx, data, originalName, contentType)
	if err != nil {
		return nil, err
	}

	asset := &model.ProductAsset{
		ProductID:  productID,
		Kind:       kind,
		StorageURL: url,
		MimeType:   contentType,
		SizeBytes:  int64(len(data)),
	}
	if err := s.assetRepo.Create(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// DeleteAsset 删除资产记录并清理存储文件
func (s *ProductService) DeleteAsset(ctx context.Context, assetID int64) error {
	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		return err
	}

	if err := s.assetRepo.Delete(ctx, assetID); err != nil {
		return err
	}

	// 存储删除失败不阻塞，文件可由清理任务兜底
	deadline, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = s.storage.Delete(deadline, asset.StorageURL)

	return nil
}
