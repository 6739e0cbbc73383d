package repository

import (
	"context"

	"gorm.io/gorm"

	"scenergy_visualizer/internal/model"
)

// ==================== 仓储接口 ====================

// ClientRepository 客户仓储接口
type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	GetByID(ctx context.Context, id int64) (*model.Client, error)
	List(ctx context.Context) ([]model.Client, error)
	FindWithWooConfig(ctx context.Context) ([]*model.Client, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

// CategoryRepository 品类仓储接口
type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	GetByID(ctx context.Context, id int64) (*model.Category, error)
	GetByWooID(ctx context.Context, clientID, wooID int64) (*model.Category, error)
	ListByClient(ctx context.Context, clientID int64) ([]model.Category, error)
}

// SceneRepository 场景仓储接口
type SceneRepository interface {
	Create(ctx context.Context, scene *model.Scene) error
	GetByID(ctx context.Context, id int64) (*model.Scene, error)
	ListByClient(ctx context.Context, clientID int64) ([]model.Scene, error)
}

// CollectionRepository 系列仓储接口
type CollectionRepository interface {
	Create(ctx context.Context, collection *model.Collection) error
	GetByID(ctx context.Context, id int64) (*model.Collection, error)
	ListByClient(ctx context.Context, clientID int64) ([]model.Collection, error)
}

// ==================== Client 仓储实现 ====================

type clientRepo struct {
	db *gorm.DB
}

// NewClientRepository 创建客户仓储
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepo{db: db}
}

func (r *clientRepo) Create(ctx context.Context, client *model.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *clientRepo) GetByID(ctx context.Context, id int64) (*model.Client, error) {
	var client model.Client
	if err := r.db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepo) List(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	err := r.db.WithContext(ctx).Order("id ASC").Find(&clients).Error
	return clients, err
}

// FindWithWooConfig 查找配置了 WooCommerce 对接的客户，供定时导入任务使用
func (r *clientRepo) FindWithWooConfig(ctx context.Context) ([]*model.Client, error) {
	var clients []*model.Client
	err := r.db.WithContext(ctx).
		Where("woo_base_url <> '' AND woo_consumer_key <> ''").
		Find(&clients).Error
	return clients, err
}

func (r *clientRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Client{}).Where("id = ?", id).Updates(fields).Error
}

// ==================== Category 仓储实现 ====================

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建品类仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) Create(ctx context.Context, category *model.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *categoryRepo) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepo) GetByWooID(ctx context.Context, clientID, wooID int64) (*model.Category, error) {
	var category model.Category
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND woo_id = ?", clientID, wooID).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepo) ListByClient(ctx context.Context, clientID int64) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("name ASC").
		Find(&categories).Error
	return categories, err
}

// ==================== Scene 仓储实现 ====================

type sceneRepo struct {
	db *gorm.DB
}

// NewSceneRepository 创建场景仓储
func NewSceneRepository(db *gorm.DB) SceneRepository {
	return &sceneRepo{db: db}
}

func (r *sceneRepo) Create(ctx context.Context, scene *model.Scene) error {
	return r.db.WithContext(ctx).Create(scene).Error
}

func (r *sceneRepo) GetByID(ctx context.Context, id int64) (*model.Scene, error) {
	var scene model.Scene
	if err := r.db.WithContext(ctx).First(&scene, id).Error; err != nil {
		return nil, err
	}
	return &scene, nil
}

func (r *sceneRepo) ListByClient(ctx context.Context, clientID int64) ([]model.Scene, error) {
	var scenes []model.Scene
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("name ASC").
		Find(&scenes).Error
	return scenes, err
}

// ==================== Collection 仓储实现 ====================

type collectionRepo struct {
	db *gorm.DB
}

// NewCollectionRepository 创建系列仓储
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepo{db: db}
}

func (r *collectionRepo) Create(ctx context.Context, collection *model.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *collectionRepo) GetByID(ctx context.Context, id int64) (*model.Collection, error) {
	var collection model.Collection
	if err := r.db.WithContext(ctx).First(&collection, id).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

func (r *collectionRepo) ListByClient(ctx context.Context, clientID int64) ([]model.Collection, error) {
	var collections []model.Collection
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&collections).Error
	return collections, err
}
