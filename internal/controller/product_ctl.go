package controller

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/service"
)

// maxAssetSize 单个资产上传上限，GLB 模型可能较大
const maxAssetSize = 100 << 20 // 100MB

// ProductController 商品与资产控制器
type ProductController struct {
	productService *service.ProductService
}

// NewProductController 创建商品控制器
func NewProductController(productService *service.ProductService) *ProductController {
	return &ProductController{productService: productService}
}

// CreateProduct 创建商品
// @Summary 手动录入商品
// @Tags Product
// @Accept json
// @Param request body dto.CreateProductRequest true "创建请求"
// @Router /api/products [post]
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	product, err := ctrl.productService.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "创建商品失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"product_id": product.ID,
		},
	})
}

// UpdateProduct 更新商品
// @Summary 更新商品字段
// @Tags Product
// @Param product_id path int true "商品ID"
// @Router /api/products/{product_id} [put]
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	productID, ok := parseIDParam(c, "product_id", "无效的商品ID")
	if !ok {
		return
	}

	var req dto.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	if err := ctrl.productService.Update(c.Request.Context(), productID, req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "更新商品失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// GetProduct 商品详情
// @Summary 商品详情（带资产）
// @Tags Product
// @Param product_id path int true "商品ID"
// @Router /api/products/{product_id} [get]
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	productID, ok := parseIDParam(c, "product_id", "无效的商品ID")
	if !ok {
		return
	}

	product, err := ctrl.productService.Get(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "商品不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询商品失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    productToVO(product),
	})
}

// ListProducts 商品列表
// @Summary 按客户/品类/来源分页查询商品
// @Tags Product
// @Router /api/products [get]
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	var req dto.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	products, total, err := ctrl.productService.List(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询商品列表失败: " + err.Error(),
		})
		return
	}

	items := make([]dto.ProductVO, 0, len(products))
	for i := range products {
		items = append(items, productToVO(&products[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"items":     items,
			"total":     total,
			"page":      req.Page,
			"page_size": req.PageSize,
		},
	})
}

// DeleteProduct 删除商品
// @Summary 删除商品及其资产记录
// @Tags Product
// @Param product_id path int true "商品ID"
// @Router /api/products/{product_id} [delete]
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	productID, ok := parseIDParam(c, "product_id", "无效的商品ID")
	if !ok {
		return
	}

	if err := ctrl.productService.Delete(c.Request.Context(), productID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "删除商品失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// ==================== 资产上传 ====================

// UploadAsset 上传商品资产
// @Summary 上传商品图片或 GLB 模型，按文件头自动识别
// @Tags Product
// @Accept multipart/form-data
// @Param product_id path int true "商品ID"
// @Param file formData file true "资产文件"
// @Router /api/products/{product_id}/assets [post]
func (ctrl *ProductController) UploadAsset(c *gin.Context) {
	productID, ok := parseIDParam(c, "product_id", "无效的商品ID")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "缺少上传文件: " + err.Error(),
		})
		return
	}
	if fileHeader.Size > maxAssetSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "文件超过大小限制 (100MB)",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "读取上传文件失败: " + err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "读取上传文件失败: " + err.Error(),
		})
		return
	}

	asset, err := ctrl.productService.UploadAsset(c.Request.Context(), productID, data, fileHeader.Filename)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "商品不存在",
			})
		case errors.Is(err, service.ErrUnsupportedAsset):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "上传资产失败: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": dto.UploadAssetResult{
			AssetID:    asset.ID,
			Kind:       asset.Kind,
			StorageURL: asset.StorageURL,
		},
	})
}

// DeleteAsset 删除商品资产
// @Summary 删除资产记录并清理存储文件
// @Tags Product
// @Param asset_id path int true "资产ID"
// @Router /api/assets/{asset_id} [delete]
func (ctrl *ProductController) DeleteAsset(c *gin.Context) {
	assetID, ok := parseIDParam(c, "asset_id", "无效的资产ID")
	if !ok {
		return
	}

	if err := ctrl.productService.DeleteAsset(c.Request.Context(), assetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "资产不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "删除资产失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// ==================== 视图转换 ====================

func productToVO(p *model.Product) dto.ProductVO {
	vo := dto.ProductVO{
		ID:          p.ID,
		ClientID:    p.ClientID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		SKU:         p.SKU,
		Description: p.Description,
		Source:      p.Source,
		WooID:       p.WooID,
		Status:      p.Status,
		Assets:      make([]dto.AssetVO, 0, len(p.Assets)),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
	for _, a := range p.Assets {
		vo.Assets = append(vo.Assets, dto.AssetVO{
			ID:         a.ID,
			Kind:       a.Kind,
			StorageURL: a.StorageURL,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
			Width:      a.Width,
			Height:     a.Height,
		})
	}
	return vo
}
