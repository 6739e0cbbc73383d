package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"scenergy_visualizer/internal/model"
)

// ==================== 仓储接口 ====================

// GenerationJobRepository 生成任务队列仓储接口
type GenerationJobRepository interface {
	Create(ctx context.Context, job *model.GenerationJob) error
	GetByID(ctx context.Context, id int64) (*model.GenerationJob, error)
	List(ctx context.Context, filter JobFilter) ([]model.GenerationJob, int64, error)
	GetByFlowID(ctx context.Context, flowID int64) ([]model.GenerationJob, error)

	// 队列操作
	ClaimNext(ctx context.Context) (*model.GenerationJob, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string, requeue bool) error
	Cancel(ctx context.Context, id int64) (bool, error)
	Requeue(ctx context.Context, id int64) error

	// 统计与维护
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountUnfinishedByFlow(ctx context.Context, flowID int64) (int64, error)
	FindStaleProcessing(ctx context.Context, before time.Time) ([]*model.GenerationJob, error)
}

// JobFilter 任务过滤条件
type JobFilter struct {
	ClientID int64
	FlowID   int64
	JobType  string
	Status   string
	Page     int
	PageSize int
}

// ==================== 仓储实现 ====================

type generationJobRepo struct {
	db *gorm.DB
}

// NewGenerationJobRepository 创建生成任务仓储
func NewGenerationJobRepository(db *gorm.DB) GenerationJobRepository {
	return &generationJobRepo{db: db}
}

func (r *generationJobRepo) Create(ctx context.Context, job *model.GenerationJob) error {
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = model.DefaultMaxAttempts
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *generationJobRepo) GetByID(ctx context.Context, id int64) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *generationJobRepo) List(ctx context.Context, filter JobFilter) ([]model.GenerationJob, int64, error) {
	var jobs []model.GenerationJob
	var total int64

	query := r.db.WithContext(ctx).Model(&model.GenerationJob{})

	if filter.ClientID > 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.FlowID > 0 {
		query = query.Where("flow_id = ?", filter.FlowID)
	}
	if filter.JobType != "" {
		query = query.Where("job_type = ?", filter.JobType)
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
	if err := query.Order("id DESC").Limit(filter.PageSize).Offset(offset).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

func (r *generationJobRepo) GetByFlowID(ctx context.Context, flowID int64) ([]model.GenerationJob, error) {
	var jobs []model.GenerationJob
	err := r.db.WithContext(ctx).Where("flow_id = ?", flowID).Order("id ASC").Find(&jobs).Error
	return jobs, err
}

// ==================== 队列操作 ====================

// claimRetryLimit 乐观认领的最大重试次数
// 两个 worker 同时看中同一行时，输掉 UPDATE 的一方换下一行重试
const claimRetryLimit = 3

// ClaimNext 认领最旧的待处理任务并置为 processing
// 先按 (priority DESC, id ASC) 选出候选，再用条件 UPDATE 做乐观认领，
// 保证同一任务只被一个 worker 拿到；队列为空返回 gorm.ErrRecordNotFound
func (r *generationJobRepo) ClaimNext(ctx context.Context) (*model.GenerationJob, error) {
	for i := 0; i < claimRetryLimit; i++ {
		var job model.GenerationJob
		err := r.db.WithContext(ctx).
			Where("status = ?", model.JobStatusPending).
			Order("priority DESC, id ASC").
			First(&job).Error
		if err != nil {
			return nil, err
		}

		now := time.Now()
		result := r.db.WithContext(ctx).
			Model(&model.GenerationJob{}).
			Where("id = ? AND status = ?", job.ID, model.JobStatusPending).
			Updates(map[string]interface{}{
				"status":     model.JobStatusProcessing,
				"attempts":   gorm.Expr("attempts + 1"),
				"started_at": now,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			// 被别的 worker 抢先，换下一行
			continue
		}

		job.Status = model.JobStatusProcessing
		job.Attempts++
		job.StartedAt = &now
		return &job, nil
	}

	return nil, gorm.ErrRecordNotFound
}

// MarkDone 标记任务完成
func (r *generationJobRepo) MarkDone(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":      model.JobStatusDone,
			"error_msg":   "",
			"finished_at": time.Now(),
		}).Error
}

// MarkFailed 标记任务失败
// requeue 为 true 且未超出重试上限时回到 pending，等待下一轮认领
func (r *generationJobRepo) MarkFailed(ctx context.Context, id int64, errMsg string, requeue bool) error {
	var job model.GenerationJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"error_msg": errMsg,
	}
	if requeue && job.ShouldRequeue() {
		updates["status"] = model.JobStatusPending
		updates["started_at"] = nil
	} else {
		updates["status"] = model.JobStatusFailed
		updates["finished_at"] = time.Now()
	}

	return r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusProcessing).
		Updates(updates).Error
}

// Cancel 取消任务，仅 pending 状态可取消
// 返回是否实际取消（处理中/已结束的任务返回 false）
func (r *generationJobRepo) Cancel(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusPending).
		Updates(map[string]interface{}{
			"status":      model.JobStatusCanceled,
			"finished_at": time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}

// Requeue 将失败的任务重新入队（手动重试），并重置尝试计数
func (r *generationJobRepo) Requeue(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusFailed).
		Updates(map[string]interface{}{
			"status":      model.JobStatusPending,
			"attempts":    0,
			"error_msg":   "",
			"started_at":  nil,
			"finished_at": nil,
		}).Error
}

// ==================== 统计与维护 ====================

// CountByStatus 各状态任务数（队列深度监控）
func (r *generationJobRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// CountUnfinishedByFlow 某 Flow 下未结束的任务数，用于判断 Flow 是否可以收尾
func (r *generationJobRepo) CountUnfinishedByFlow(ctx context.Context, flowID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("flow_id = ? AND status IN ?", flowID,
			[]string{model.JobStatusPending, model.JobStatusProcessing}).
		Count(&count).Error
	return count, err
}

// FindStaleProcessing 查找卡死的处理中任务（worker 崩溃残留），由清理任务重新入队
func (r *generationJobRepo) FindStaleProcessing(ctx context.Context, before time.Time) ([]*model.GenerationJob, error) {
	var jobs []*model.GenerationJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", model.JobStatusProcessing, before).
		Find(&jobs).Error
	return jobs, err
}
