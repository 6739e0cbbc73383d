package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
)

// CatalogController 目录层级控制器：客户/品类/场景/系列
// 都是简单 CRUD，直接走仓储
type CatalogController struct {
	clientRepo     repository.ClientRepository
	categoryRepo   repository.CategoryRepository
	sceneRepo      repository.SceneRepository
	collectionRepo repository.CollectionRepository
}

// NewCatalogController 创建目录控制器
func NewCatalogController(
	clientRepo repository.ClientRepository,
	categoryRepo repository.CategoryRepository,
	sceneRepo repository.SceneRepository,
	collectionRepo repository.CollectionRepository,
) *CatalogController {
	return &CatalogController{
		clientRepo:     clientRepo,
		categoryRepo:   categoryRepo,
		sceneRepo:      sceneRepo,
		collectionRepo: collectionRepo,
	}
}

// ==================== 客户 ====================

// CreateClient 创建客户
// @Summary 创建客户（品牌方）
// @Tags Catalog
// @Router /api/clients [post]
func (ctrl *CatalogController) CreateClient(c *gin.Context) {
	var req dto.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	client := &model.Client{
		Name:              req.Name,
		Slug:              req.Slug,
		ContactEmail:      req.ContactEmail,
		WooBaseURL:        req.WooBaseURL,
		WooConsumerKey:    req.WooConsumerKey,
		WooConsumerSecret: req.WooConsumerSecret,
	}
	if err := ctrl.clientRepo.Create(c.Request.Context(), client); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "创建客户失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    clientToVO(client),
	})
}

// UpdateClient 更新客户
// @Summary 更新客户信息与 WooCommerce 配置
// @Tags Catalog
// @Param client_id path int true "客户ID"
// @Router /api/clients/{client_id} [put]
func (ctrl *CatalogController) UpdateClient(c *gin.Context) {
	clientID, ok := parseIDParam(c, "client_id", "无效的客户ID")
	if !ok {
		return
	}

	var req dto.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.ContactEmail != nil {
		fields["contact_email"] = *req.ContactEmail
	}
	if req.WooBaseURL != nil {
		fields["woo_base_url"] = *req.WooBaseURL
	}
	if req.WooConsumerKey != nil {
		fields["woo_consumer_key"] = *req.WooConsumerKey
	}
	if req.WooConsumerSecret != nil {
		fields["woo_consumer_secret"] = *req.WooConsumerSecret
	}
	if len(fields) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"code":    0,
			"message": "success",
		})
		return
	}

	if err := ctrl.clientRepo.UpdateFields(c.Request.Context(), clientID, fields); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "更新客户失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// ListClients 客户列表
// @Summary 客户列表
// @Tags Catalog
// @Router /api/clients [get]
func (ctrl *CatalogController) ListClients(c *gin.Context) {
	clients, err := ctrl.clientRepo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询客户列表失败: " + err.Error(),
		})
		return
	}

	items := make([]dto.ClientVO, 0, len(clients))
	for i := range clients {
		items = append(items, clientToVO(&clients[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    items,
	})
}

// GetClient 客户详情
// @Summary 客户详情
// @Tags Catalog
// @Param client_id path int true "客户ID"
// @Router /api/clients/{client_id} [get]
func (ctrl *CatalogController) GetClient(c *gin.Context) {
	clientID, ok := parseIDParam(c, "client_id", "无效的客户ID")
	if !ok {
		return
	}

	client, err := ctrl.clientRepo.GetByID(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "客户不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询客户失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    clientToVO(client),
	})
}

// ==================== 品类 / 场景 / 系列 ====================

// CreateCategory 创建品类
// @Summary 创建品类
// @Tags Catalog
// @Router /api/categories [post]
func (ctrl *CatalogController) CreateCategory(c *gin.Context) {
	var req dto.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	category := &model.Category{ClientID: req.ClientID, Name: req.Name}
	if err := ctrl.categoryRepo.Create(c.Request.Context(), category); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "创建品类失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    category,
	})
}

// ListCategories 品类列表
// @Summary 查询客户的品类列表
// @Tags Catalog
// @Router /api/categories [get]
func (ctrl *CatalogController) ListCategories(c *gin.Context) {
	ctrl.listByClient(c, func(ctx *gin.Context, clientID int64) (interface{}, error) {
		return ctrl.categoryRepo.ListByClient(ctx.Request.Context(), clientID)
	})
}

// CreateScene 创建场景
// @Summary 创建视觉场景
// @Tags Catalog
// @Router /api/scenes [post]
func (ctrl *CatalogController) CreateScene(c *gin.Context) {
	var req dto.CreateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	scene := &model.Scene{ClientID: req.ClientID, Name: req.Name, Description: req.Description}
	if err := ctrl.sceneRepo.Create(c.Request.Context(), scene); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "创建场景失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    scene,
	})
}

// ListScenes 场景列表
// @Summary 查询客户的场景列表
// @Tags Catalog
// @Router /api/scenes [get]
func (ctrl *CatalogController) ListScenes(c *gin.Context) {
	ctrl.listByClient(c, func(ctx *gin.Context, clientID int64) (interface{}, error) {
		return ctrl.sceneRepo.ListByClient(ctx.Request.Context(), clientID)
	})
}

// CreateCollection 创建系列
// @Summary 创建系列
// @Tags Catalog
// @Router /api/collections [post]
func (ctrl *CatalogController) CreateCollection(c *gin.Context) {
	var req dto.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	collection := &model.Collection{ClientID: req.ClientID, Name: req.Name, Season: req.Season}
	if err := ctrl.collectionRepo.Create(c.Request.Context(), collection); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "创建系列失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    collection,
	})
}

// ListCollections 系列列表
// @Summary 查询客户的系列列表
// @Tags Catalog
// @Router /api/collections [get]
func (ctrl *CatalogController) ListCollections(c *gin.Context) {
	ctrl.listByClient(c, func(ctx *gin.Context, clientID int64) (interface{}, error) {
		return ctrl.collectionRepo.ListByClient(ctx.Request.Context(), clientID)
	})
}

// listByClient 按 client_id 查列表的公共模板
func (ctrl *CatalogController) listByClient(c *gin.Context, query func(*gin.Context, int64) (interface{}, error)) {
	clientID, err := strconv.ParseInt(c.Query("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的客户ID",
		})
		return
	}

	items, err := query(c, clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    items,
	})
}

// ==================== 视图转换 ====================

func clientToVO(client *model.Client) dto.ClientVO {
	return dto.ClientVO{
		ID:            client.ID,
		Name:          client.Name,
		Slug:          client.Slug,
		ContactEmail:  client.ContactEmail,
		WooBaseURL:    client.WooBaseURL,
		WooConfigured: client.HasWooCommerce(),
		CreatedAt:     client.CreatedAt.Format(time.RFC3339),
	}
}
