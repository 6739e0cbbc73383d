package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"scenergy_visualizer/internal/model"
)

// ==================== 仓储接口 ====================

// AICallLogRepository AI调用日志仓储接口
type AICallLogRepository interface {
	Create(ctx context.Context, log *model.AICallLog) error
	GetByJobID(ctx context.Context, jobID int64) ([]model.AICallLog, error)

	// 用量统计
	GetUsageByClient(ctx context.Context, clientID int64, start, end time.Time) (*UsageStats, error)
	GetUsageByFlow(ctx context.Context, flowID int64) (*UsageStats, error)
	GetDailyUsage(ctx context.Context, clientID int64, days int) ([]DailyUsage, error)
	GetTotalCost(ctx context.Context, clientID int64, start, end time.Time) (float64, error)
}

// UsageStats 用量汇总
type UsageStats struct {
	TotalCalls    int64   `json:"total_calls"`
	SuccessCalls  int64   `json:"success_calls"`
	FailedCalls   int64   `json:"failed_calls"`
	ImageCount    int64   `json:"image_count"`
	VideoSeconds  int64   `json:"video_seconds"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// DailyUsage 按天用量
type DailyUsage struct {
	Date       string  `json:"date"`
	CallCount  int64   `json:"call_count"`
	ImageCount int64   `json:"image_count"`
	CostUSD    float64 `json:"cost_usd"`
}

// ==================== 仓储实现 ====================

type aiCallLogRepo struct {
	db *gorm.DB
}

// NewAICallLogRepository 创建AI调用日志仓储
func NewAICallLogRepository(db *gorm.DB) AICallLogRepository {
	return &aiCallLogRepo{db: db}
}

func (r *aiCallLogRepo) Create(ctx context.Context, log *model.AICallLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *aiCallLogRepo) GetByJobID(ctx context.Context, jobID int64) ([]model.AICallLog, error) {
	var logs []model.AICallLog
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

// ==================== 用量统计 ====================

// GetUsageByClient 统计客户在时间段内的调用用量
func (r *aiCallLogRepo) GetUsageByClient(ctx context.Context, clientID int64, start, end time.Time) (*UsageStats, error) {
	return r.aggregate(r.db.WithContext(ctx).
		Model(&model.AICallLog{}).
		Where("client_id = ? AND created_at >= ? AND created_at < ?", clientID, start, end))
}

// GetUsageByFlow 统计单个 Flow 的调用用量
func (r *aiCallLogRepo) GetUsageByFlow(ctx context.Context, flowID int64) (*UsageStats, error) {
	return r.aggregate(r.db.WithContext(ctx).
		Model(&model.AICallLog{}).
		Where("flow_id = ?", flowID))
}

func (r *aiCallLogRepo) aggregate(query *gorm.DB) (*UsageStats, error) {
	var stats UsageStats

	type row struct {
		TotalCalls    int64
		SuccessCalls  int64
		ImageCount    int64
		VideoSeconds  int64
		TotalCostUSD  float64
		AvgDurationMs float64
	}
	var res row

	err := query.
		Select(`COUNT(*) AS total_calls,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS success_calls,
			COALESCE(SUM(image_count), 0) AS image_count,
			COALESCE(SUM(video_seconds), 0) AS video_seconds,
			COALESCE(SUM(cost_usd), 0) AS total_cost_usd,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms`, model.AICallStatusSuccess).
		Scan(&res).Error
	if err != nil {
		return nil, err
	}

	stats.TotalCalls = res.TotalCalls
	stats.SuccessCalls = res.SuccessCalls
	stats.FailedCalls = res.TotalCalls - res.SuccessCalls
	stats.ImageCount = res.ImageCount
	stats.VideoSeconds = res.VideoSeconds
	stats.TotalCostUSD = res.TotalCostUSD
	stats.AvgDurationMs = res.AvgDurationMs
	return &stats, nil
}

// GetDailyUsage 最近 N 天的按天用量，用于后台用量曲线
func (r *aiCallLogRepo) GetDailyUsage(ctx context.Context, clientID int64, days int) ([]DailyUsage, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var results []DailyUsage
	err := r.db.WithContext(ctx).
		Model(&model.AICallLog{}).
		Select(`DATE(created_at) AS date,
			COUNT(*) AS call_count,
			COALESCE(SUM(image_count), 0) AS image_count,
			COALESCE(SUM(cost_usd), 0) AS cost_usd`).
		Where("client_id = ? AND created_at >= ?", clientID, since).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results).Error
	return results, err
}

// GetTotalCost 时间段内总成本
func (r *aiCallLogRepo) GetTotalCost(ctx context.Context, clientID int64, start, end time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&model.AICallLog{}).
		Select("COALESCE(SUM(cost_usd), 0)").
		Where("client_id = ? AND created_at >= ? AND created_at < ?", clientID, start, end).
		Scan(&total).Error
	return total, err
}
