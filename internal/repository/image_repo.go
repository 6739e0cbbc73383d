package repository

import (
	"context"

	"gorm.io/gorm"

	"scenergy_visualizer/internal/model"
)

// ==================== 仓储接口 ====================

// GeneratedImageRepository 生成图片仓储接口
type GeneratedImageRepository interface {
	Create(ctx context.Context, image *model.GeneratedImage) error
	CreateBatch(ctx context.Context, images []model.GeneratedImage) error
	GetByID(ctx context.Context, id int64) (*model.GeneratedImage, error)
	Update(ctx context.Context, image *model.GeneratedImage) error
	GetByFlowID(ctx context.Context, flowID int64) ([]model.GeneratedImage, error)
	GetByJobID(ctx context.Context, jobID int64) ([]model.GeneratedImage, error)

	// 评审操作
	SetSelected(ctx context.Context, id int64, selected bool) error
	MarkDiscarded(ctx context.Context, id int64) error
	FindDiscarded(ctx context.Context, limit int) ([]*model.GeneratedImage, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteByFlowID(ctx context.Context, flowID int64) error
}

// ==================== 仓储实现 ====================

type generatedImageRepo struct {
	db *gorm.DB
}

// NewGeneratedImageRepository 创建生成图片仓储
func NewGeneratedImageRepository(db *gorm.DB) GeneratedImageRepository {
	return &generatedImageRepo{db: db}
}

func (r *generatedImageRepo) Create(ctx context.Context, image *model.GeneratedImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *generatedImageRepo) CreateBatch(ctx context.Context, images []model.GeneratedImage) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

func (r *generatedImageRepo) GetByID(ctx context.Context, id int64) (*model.GeneratedImage, error) {
	var image model.GeneratedImage
	if err := r.db.WithContext(ctx).First(&image, id).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *generatedImageRepo) Update(ctx context.Context, image *model.GeneratedImage) error {
	return r.db.WithContext(ctx).Save(image).Error
}

func (r *generatedImageRepo) GetByFlowID(ctx context.Context, flowID int64) ([]model.GeneratedImage, error) {
	var images []model.GeneratedImage
	err := r.db.WithContext(ctx).
		Where("flow_id = ? AND discarded = ?", flowID, false).
		Order("product_id ASC, image_index ASC").
		Find(&images).Error
	return images, err
}

func (r *generatedImageRepo) GetByJobID(ctx context.Context, jobID int64) ([]model.GeneratedImage, error) {
	var images []model.GeneratedImage
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("image_index ASC").
		Find(&images).Error
	return images, err
}

// ==================== 评审操作 ====================

// SetSelected 设置选中标记
func (r *generatedImageRepo) SetSelected(ctx context.Context, id int64, selected bool) error {
	return r.db.WithContext(ctx).
		Model(&model.GeneratedImage{}).
		Where("id = ?", id).
		Update("selected", selected).Error
}

// MarkDiscarded 标记废弃，文件由清理任务异步删除
func (r *generatedImageRepo) MarkDiscarded(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.GeneratedImage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"discarded": true,
			"selected":  false,
		}).Error
}

// FindDiscarded 查找已废弃待清理的图片
func (r *generatedImageRepo) FindDiscarded(ctx context.Context, limit int) ([]*model.GeneratedImage, error) {
	var images []*model.GeneratedImage
	err := r.db.WithContext(ctx).
		Where("discarded = ?", true).
		Limit(limit).
		Find(&images).Error
	return images, err
}

func (r *generatedImageRepo) DeleteByID(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.GeneratedImage{}, id).Error
}

func (r *generatedImageRepo) DeleteByFlowID(ctx context.Context, flowID int64) error {
	return r.db.WithContext(ctx).Where("flow_id = ?", flowID).Delete(&model.GeneratedImage{}).Error
}
