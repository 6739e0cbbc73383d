package repository

import (
	"context"

	"gorm.io/gorm"

	"scenergy_visualizer/internal/model"
)

// ==================== 仓储接口 ====================

// SettingProfileRepository 设置档案仓储接口
type SettingProfileRepository interface {
	Create(ctx context.Context, profile *model.SettingProfile) error
	GetByID(ctx context.Context, id int64) (*model.SettingProfile, error)
	Update(ctx context.Context, profile *model.SettingProfile) error
	Delete(ctx context.Context, id int64) error
	ListByClient(ctx context.Context, clientID int64) ([]model.SettingProfile, error)

	// FindApplicable 查出某次生成涉及的全部层级档案（带气泡）
	FindApplicable(ctx context.Context, q ApplicableQuery) ([]model.SettingProfile, error)
}

// BubbleRepository 气泡仓储接口
type BubbleRepository interface {
	Create(ctx context.Context, bubble *model.Bubble) error
	GetByID(ctx context.Context, id int64) (*model.Bubble, error)
	Update(ctx context.Context, bubble *model.Bubble) error
	Delete(ctx context.Context, id int64) error
	GetByProfileID(ctx context.Context, profileID int64) ([]model.Bubble, error)
}

// ApplicableQuery 层级匹配条件
// 0 值维度表示该次生成不涉及对应层级
type ApplicableQuery struct {
	ClientID     int64
	CategoryID   int64
	SceneID      int64
	CollectionID int64
	FlowID       int64
}

// ==================== SettingProfile 仓储实现 ====================

type settingProfileRepo struct {
	db *gorm.DB
}

// NewSettingProfileRepository 创建设置档案仓储
func NewSettingProfileRepository(db *gorm.DB) SettingProfileRepository {
	return &settingProfileRepo{db: db}
}

func (r *settingProfileRepo) Create(ctx context.Context, profile *model.SettingProfile) error {
	level, err := profile.DeriveLevel()
	if err != nil {
		return err
	}
	profile.Level = level
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *settingProfileRepo) GetByID(ctx context.Context, id int64) (*model.SettingProfile, error) {
	var profile model.SettingProfile
	if err := r.db.WithContext(ctx).Preload("Bubbles").First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *settingProfileRepo) Update(ctx context.Context, profile *model.SettingProfile) error {
	level, err := profile.DeriveLevel()
	if err != nil {
		return err
	}
	profile.Level = level
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *settingProfileRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ?", id).Delete(&model.Bubble{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.SettingProfile{}, id).Error
	})
}

func (r *settingProfileRepo) ListByClient(ctx context.Context, clientID int64) ([]model.SettingProfile, error) {
	var profiles []model.SettingProfile
	err := r.db.WithContext(ctx).
		Preload("Bubbles").
		Where("client_id = ?", clientID).
		Order("id ASC").
		Find(&profiles).Error
	return profiles, err
}

// FindApplicable 一次查出七个层级上可能命中的档案
// 具体的优先级归并在 service 层完成，这里只负责取数
func (r *settingProfileRepo) FindApplicable(ctx context.Context, q ApplicableQuery) ([]model.SettingProfile, error) {
	db := r.db.WithContext(ctx)

	// client 层始终参与
	cond := db.Where("level = ?", model.LevelClient)

	if q.CategoryID > 0 {
		cond = cond.Or(db.Where("level = ? AND category_id = ?", model.LevelCategory, q.CategoryID))
		if q.SceneID > 0 {
			cond = cond.Or(db.Where("level = ? AND category_id = ? AND scene_id = ?",
				model.LevelCategoryScene, q.CategoryID, q.SceneID))
		}
	}
	if q.CollectionID > 0 {
		cond = cond.Or(db.Where("level = ? AND collection_id = ?", model.LevelCollection, q.CollectionID))
		if q.CategoryID > 0 {
			cond = cond.Or(db.Where("level = ? AND collection_id = ? AND category_id = ?",
				model.LevelCollectionCategory, q.CollectionID, q.CategoryID))
		}
		if q.SceneID > 0 {
			cond = cond.Or(db.Where("level = ? AND collection_id = ? AND scene_id = ?",
				model.LevelCollectionScene, q.CollectionID, q.SceneID))
		}
	}
	if q.FlowID > 0 {
		cond = cond.Or(db.Where("level = ? AND flow_id = ?", model.LevelFlow, q.FlowID))
	}

	var profiles []model.SettingProfile
	err := db.
		Preload("Bubbles").
		Where("client_id = ?", q.ClientID).
		Where(cond).
		Find(&profiles).Error
	return profiles, err
}

// ==================== Bubble 仓储实现 ====================

type bubbleRepo struct {
	db *gorm.DB
}

// NewBubbleRepository 创建气泡仓储
func NewBubbleRepository(db *gorm.DB) BubbleRepository {
	return &bubbleRepo{db: db}
}

func (r *bubbleRepo) Create(ctx context.Context, bubble *model.Bubble) error {
	return r.db.WithContext(ctx).Create(bubble).Error
}

func (r *bubbleRepo) GetByID(ctx context.Context, id int64) (*model.Bubble, error) {
	var bubble model.Bubble
	if err := r.db.WithContext(ctx).First(&bubble, id).Error; err != nil {
		return nil, err
	}
	return &bubble, nil
}

func (r *bubbleRepo) Update(ctx context.Context, bubble *model.Bubble) error {
	return r.db.WithContext(ctx).Save(bubble).Error
}

func (r *bubbleRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Bubble{}, id).Error
}

func (r *bubbleRepo) GetByProfileID(ctx context.Context, profileID int64) ([]model.Bubble, error) {
	var bubbles []model.Bubble
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("id ASC").
		Find(&bubbles).Error
	return bubbles, err
}
