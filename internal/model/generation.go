package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 任务常量 ====================

const (
	// 任务类型
	JobTypeImage = "image"
	JobTypeVideo = "video"
	JobTypeEdit  = "edit"

	// 任务状态
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
	JobStatusCanceled   = "canceled"

	// 默认最大重试次数
	DefaultMaxAttempts = 3
)

// IsValidJobType 校验任务类型
func IsValidJobType(t string) bool {
	return t == JobTypeImage || t == JobTypeVideo || t == JobTypeEdit
}

// ==================== 数据库模型 ====================

// GenerationJob 生成任务（数据库队列行）
// 合并后的设置在入队时快照到 SettingsSnapshot，此后不再变化
type GenerationJob struct {
	BaseModel

	ClientID  int64  `gorm:"index;not null;comment:客户ID" json:"client_id"`
	FlowID    int64  `gorm:"index;not null;comment:FlowID" json:"flow_id"`
	ProductID int64  `gorm:"index;comment:商品ID" json:"product_id"`
	JobType   string `gorm:"size:16;index;not null;comment:任务类型(image/video/edit)" json:"job_type"`
	Status    string `gorm:"size:16;index;default:pending;comment:状态" json:"status"`
	Priority  int    `gorm:"default:0;index;comment:优先级(大者先出队)" json:"priority"`

	Prompt           string         `gorm:"type:text;comment:提示词" json:"prompt"`
	NegativePrompt   string         `gorm:"type:text;comment:负向提示词" json:"negative_prompt"`
	ReferenceURL     string         `gorm:"size:2048;comment:参考图URL" json:"reference_url"`
	SourceImageID    int64          `gorm:"index;comment:编辑/视频任务的源图ID" json:"source_image_id"`
	Instruction      string         `gorm:"type:text;comment:编辑指令或运镜描述" json:"instruction"`
	ImageCount       int            `gorm:"default:1;comment:生成张数" json:"image_count"`
	SettingsSnapshot datatypes.JSON `gorm:"type:json;comment:入队时的设置快照" json:"settings_snapshot"`

	Attempts    int    `gorm:"default:0;comment:已尝试次数" json:"attempts"`
	MaxAttempts int    `gorm:"default:3;comment:最大尝试次数" json:"max_attempts"`
	ErrorMsg    string `gorm:"size:1024;comment:最近一次错误" json:"error_msg"`

	StartedAt  *time.Time `gorm:"comment:开始处理时间" json:"started_at"`
	FinishedAt *time.Time `gorm:"comment:结束时间" json:"finished_at"`
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}

// ==================== 状态机辅助 ====================

// CanCancel 只有排队中的任务可以取消，处理中的任务让它跑完
func (j *GenerationJob) CanCancel() bool {
	return j.Status == JobStatusPending
}

// CanRetry 失败且未超出重试上限的任务可以重新入队
func (j *GenerationJob) CanRetry() bool {
	return j.Status == JobStatusFailed
}

// ShouldRequeue 失败后是否自动回到队列
func (j *GenerationJob) ShouldRequeue() bool {
	return j.Attempts < j.MaxAttempts
}

// Duration 任务处理耗时，未结束返回 0
func (j *GenerationJob) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
