package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"scenergy_visualizer/internal/model"
)

// ==================== 仓储接口 ====================

// FlowRepository Flow 仓储接口
type FlowRepository interface {
	Create(ctx context.Context, flow *model.Flow) error
	GetByID(ctx context.Context, id int64) (*model.Flow, error)
	GetWithProducts(ctx context.Context, id int64) (*model.Flow, error)
	Update(ctx context.Context, flow *model.Flow) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter FlowFilter) ([]model.Flow, int64, error)
	FindExpired(ctx context.Context, before time.Time) ([]*model.Flow, error)
}

// FlowProductRepository Flow 商品关联仓储接口
type FlowProductRepository interface {
	Attach(ctx context.Context, flowID int64, productIDs []int64) error
	Detach(ctx context.Context, flowID int64, productID int64) error
	GetByFlowID(ctx context.Context, flowID int64) ([]model.FlowProduct, error)
	CountByFlowID(ctx context.Context, flowID int64) (int64, error)
}

// FlowFilter Flow 过滤条件
type FlowFilter struct {
	ClientID     int64
	CollectionID int64
	Status       string
	Page         int
	PageSize     int
}

// ==================== Flow 仓储实现 ====================

type flowRepo struct {
	db *gorm.DB
}

// NewFlowRepository 创建 Flow 仓储
func NewFlowRepository(db *gorm.DB) FlowRepository {
	return &flowRepo{db: db}
}

func (r *flowRepo) Create(ctx context.Context, flow *model.Flow) error {
	return r.db.WithContext(ctx).Create(flow).Error
}

func (r *flowRepo) GetByID(ctx context.Context, id int64) (*model.Flow, error) {
	var flow model.Flow
	if err := r.db.WithContext(ctx).First(&flow, id).Error; err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *flowRepo) GetWithProducts(ctx context.Context, id int64) (*model.Flow, error) {
	var flow model.Flow
	err := r.db.WithContext(ctx).
		Preload("Products").
		Preload("Products.Product").
		Preload("Products.Product.Assets").
		First(&flow, id).Error
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *flowRepo) Update(ctx context.Context, flow *model.Flow) error {
	return r.db.WithContext(ctx).Save(flow).Error
}

func (r *flowRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Flow{}).Where("id = ?", id).Updates(fields).Error
}

func (r *flowRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Flow{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *flowRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Flow{}, id).Error
}

func (r *flowRepo) List(ctx context.Context, filter FlowFilter) ([]model.Flow, int64, error) {
	var flows []model.Flow
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Flow{})

	if filter.ClientID > 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.CollectionID > 0 {
		query = query.Where("collection_id = ?", filter.CollectionID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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
	if err := query.Order("created_at DESC").Limit(filter.PageSize).Offset(offset).Find(&flows).Error; err != nil {
		return nil, 0, err
	}

	return flows, total, nil
}

// FindExpired 查找长期停留在 review 状态的 Flow
func (r *flowRepo) FindExpired(ctx context.Context, before time.Time) ([]*model.Flow, error) {
	var flows []*model.Flow
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.FlowStatusReview, before).
		Find(&flows).Error
	return flows, err
}

// ==================== FlowProduct 仓储实现 ====================

type flowProductRepo struct {
	db *gorm.DB
}

// NewFlowProductRepository 创建 Flow 商品关联仓储
func NewFlowProductRepository(db *gorm.DB) FlowProductRepository {
	return &flowProductRepo{db: db}
}

func (r *flowProductRepo) Attach(ctx context.Context, flowID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	links := make([]model.FlowProduct, 0, len(productIDs))
	for i, pid := range productIDs {
		links = append(links, model.FlowProduct{
			FlowID:    flowID,
			ProductID: pid,
			SortOrder: i,
		})
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

func (r *flowProductRepo) Detach(ctx context.Context, flowID int64, productID int64) error {
	return r.db.WithContext(ctx).
		Where("flow_id = ? AND product_id = ?", flowID, productID).
		Delete(&model.FlowProduct{}).Error
}

func (r *flowProductRepo) GetByFlowID(ctx context.Context, flowID int64) ([]model.FlowProduct, error) {
	var links []model.FlowProduct
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Product.Assets").
		Where("flow_id = ?", flowID).
		Order("sort_order ASC").
		Find(&links).Error
	return links, err
}

func (r *flowProductRepo) CountByFlowID(ctx context.Context, flowID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FlowProduct{}).
		Where("flow_id = ?", flowID).
		Count(&count).Error
	return count, err
}

// ==================== 事务支持 ====================

// FlowUnitOfWork Flow 工作单元（事务）
type FlowUnitOfWork struct {
	db       *gorm.DB
	Flows    FlowRepository
	Products FlowProductRepository
	Images   GeneratedImageRepository
	Jobs     GenerationJobRepository
}

// NewFlowUnitOfWork 创建工作单元
func NewFlowUnitOfWork(db *gorm.DB) *FlowUnitOfWork {
	return &FlowUnitOfWork{
		db:       db,
		Flows:    NewFlowRepository(db),
		Products: NewFlowProductRepository(db),
		Images:   NewGeneratedImageRepository(db),
		Jobs:     NewGenerationJobRepository(db),
	}
}

// Transaction 执行事务
func (u *FlowUnitOfWork) Transaction(ctx context.Context, fn func(uow *FlowUnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txUow := &FlowUnitOfWork{
			db:       tx,
			Flows:    NewFlowRepository(tx),
			Products: NewFlowProductRepository(tx),
			Images:   NewGeneratedImageRepository(tx),
			Jobs:     NewGenerationJobRepository(tx),
		}
		return fn(txUow)
	})
}
