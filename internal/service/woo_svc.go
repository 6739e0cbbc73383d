package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"gorm.io/gorm"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
)

// ==================== 错误 ====================

var ErrWooNotConfigured = errors.New("客户未配置 WooCommerce 对接")

// ==================== WooCommerce DTO ====================

// wooProduct WooCommerce 商品响应
type wooProduct struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Categories  []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
	Images []struct {
		ID  int64  `json:"id"`
		Src string `json:"src"`
	} `json:"images"`
}

// wooCategory WooCommerce 品类响应
type wooCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ==================== 服务 ====================

const wooPageSize = 100

// WooService WooCommerce 商品导入服务
type WooService struct {
	clientRepo   repository.ClientRepository
	productRepo  repository.ProductRepository
	assetRepo    repository.ProductAssetRepository
	categoryRepo repository.CategoryRepository
	storage      *StorageService
}

// NewWooService 创建导入服务
func NewWooService(
	clientRepo repository.ClientRepository,
	productRepo repository.ProductRepository,
	assetRepo repository.ProductAssetRepository,
	categoryRepo repository.CategoryRepository,
	storage *StorageService,
) *WooService {
	return &WooService{
		clientRepo:   clientRepo,
		productRepo:  productRepo,
		assetRepo:    assetRepo,
		categoryRepo: categoryRepo,
		storage:      storage,
	}
}

// newWooClient 按客户配置创建 Resty 客户端
// WooCommerce REST v3 使用 consumer key/secret 做查询参数认证
func newWooClient(client *model.Client) *resty.Client {
	return resty.New().
		SetBaseURL(client.WooBaseURL).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "Scenergy-Visualizer/1.0").
		SetQueryParam("consumer_key", client.WooConsumerKey).
		SetQueryParam("consumer_secret", client.WooConsumerSecret)
}

// ==================== 导入 ====================

// ImportClient 全量同步一个客户的品类和商品
func (s *WooService) ImportClient(ctx context.Context, clientID int64) (*dto.ImportResult, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.HasWooCommerce() {
		return nil, ErrWooNotConfigured
	}

	rc := newWooClient(client)

	if err := s.importCategories(ctx, rc, client); err != nil {
		log.Printf("[Woo] 客户 %d 品类同步失败: %v", clientID, err)
	}

	return s.importProducts(ctx, rc, client)
}

// importCategories 同步品类，按 WooID 去重
func (s *WooService) importCategories(ctx context.Context, rc *resty.Client, client *model.Client) error {
	page := 1
	for {
		var cats []wooCategory
		resp, err := rc.R().
			SetContext(ctx).
			SetQueryParam("per_page", fmt.Sprintf("%d", wooPageSize)).
			SetQueryParam("page", fmt.Sprintf("%d", page)).
			SetResult(&cats).
			Get("/wp-json/wc/v3/products/categories")
		if err != nil {
			return fmt.Errorf("网络请求失败: %v", err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("API 异常 [%d]: %s", resp.StatusCode(), resp.String())
		}
		if len(cats) == 0 {
			return nil
		}

		for _, wc := range cats {
			_, err := s.categoryRepo.GetByWooID(ctx, client.ID, wc.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := s.categoryRepo.Create(ctx, &model.Category{
				ClientID: client.ID,
				WooID:    wc.ID,
				Name:     wc.Name,
			}); err != nil {
				return err
			}
		}

		if len(cats) < wooPageSize {
			return nil
		}
		page++
	}
}

// importProducts 分页拉取商品，按 WooID 做新增/更新
func (s *WooService) importProducts(ctx context.Context, rc *resty.Client, client *model.Client) (*dto.ImportResult, error) {
	result := &dto.ImportResult{ClientID: client.ID}
	page := 1

	for {
		var products []wooProduct
		resp, err := rc.R().
			SetContext(ctx).
			SetQueryParam("per_page", fmt.Sprintf("%d", wooPageSize)).
			SetQueryParam("page", fmt.Sprintf("%d", page)).
			SetQueryParam("status", "publish").
			SetResult(&products).
			Get("/wp-json/wc/v3/products")
		if err != nil {
			return result, fmt.Errorf("网络请求失败: %v", err)
		}
		if resp.StatusCode() != 200 {
			return result, fmt.Errorf("API 异常 [%d]: %s", resp.StatusCode(), resp.String())
		}
		if len(products) == 0 {
			break
		}

		for _, wp := range products {
			if err := s.upsertProduct(ctx, client, wp, result); err != nil {
				log.Printf("[Woo] 商品 %d (%s) 导入失败: %v", wp.ID, wp.Name, err)
				result.Skipped++
			}
		}

		if len(products) < wooPageSize {
			break
		}
		page++
	}

	log.Printf("[Woo] 客户 %d 导入完成: 新增 %d, 更新 %d, 跳过 %d",
		client.ID, result.Created, result.Updated, result.Skipped)
	return result, nil
}

func (s *WooService) upsertProduct(ctx context.Context, client *model.Client, wp wooProduct, result *dto.ImportResult) error {
	var categoryID int64
	if len(wp.Categories) > 0 {
		if cat, err := s.categoryRepo.GetByWooID(ctx, client.ID, wp.Categories[0].ID); err == nil {
			categoryID = cat.ID
		}
	}

	existing, err := s.productRepo.GetByWooID(ctx, client.ID, wp.ID)
	switch {
	case err == nil:
		// 已导入过，只刷新基础字段
		if err := s.productRepo.UpdateFields(ctx, existing.ID, map[string]interface{}{
			"name":        wp.Name,
			"sku":         wp.SKU,
			"description": wp.Description,
			"category_id": categoryID,
		}); err != nil {
			return err
		}
		result.Updated++
		return nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		product := &model.Product{
			ClientID:    client.ID,
			CategoryID:  categoryID,
			Name:        wp.Name,
			SKU:         wp.SKU,
			Description: wp.Description,
			Source:      model.ProductSourceWoo,
			WooID:       wp.ID,
			Status:      model.ProductStatusActive,
		}
		if err := s.productRepo.Create(ctx, product); err != nil {
			return err
		}

		// 拉首图转存，失败不影响商品本身
		if len(wp.Images) > 0 {
			s.importFirstImage(ctx, product, wp.Images[0].Src)
		}

		result.Created++
		return nil

	default:
		return err
	}
}

func (s *WooService) importFirstImage(ctx context.Context, product *model.Product, src string) {
	url, err := s.storage.UploadFromURL(ctx, src, fmt.Sprintf("woo_%d.jpg", product.WooID))
	if err != nil {
		log.Printf("[Woo] 商品 %d 首图转存失败: %v", product.ID, err)
		return
	}

	if err := s.assetRepo.Create(ctx, &model.ProductAsset{
		ProductID:  product.ID,
		Kind:       model.AssetKindImage,
		StorageURL: url,
		SourceURL:  src,
	}); err != nil {
		log.Printf("[Woo] 商品 %d 首图入库失败: %v", product.ID, err)
	}
}

// ==================== 批量 ====================

// ImportAllConfigured 同步所有配置了对接的客户，供定时任务调用
func (s *WooService) ImportAllConfigured(ctx context.Context) {
	clients, err := s.clientRepo.FindWithWooConfig(ctx)
	if err != nil {
		log.Printf("[Woo] 查询待同步客户失败: %v", err)
		return
	}

	for _, client := range clients {
		if _, err := s.ImportClient(ctx, client.ID); err != nil {
			log.Printf("[Woo] 客户 %d 同步失败: %v", client.ID, err)
		}
	}
}
