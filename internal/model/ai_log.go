package model

import "time"

// AICallLog AI调用日志
// 落在按月分区的 ai_call_logs 表，只增不改不删，不带软删除列
type AICallLog struct {
	ID        int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	ClientID int64 `gorm:"index;comment:客户ID"`
	FlowID   int64 `gorm:"index;comment:FlowID"`
	JobID    int64 `gorm:"index;comment:生成任务ID"`

	// 调用信息
	CallType  string `gorm:"size:32;index;comment:调用类型(image/video/edit)"`
	ModelName string `gorm:"size:64;comment:模型名称"`

	// 用量统计
	ImageCount   int `gorm:"default:0;comment:生成图片数量"`
	VideoSeconds int `gorm:"default:0;comment:生成视频秒数"`

	// 性能与成本
	DurationMs int64   `gorm:"comment:耗时(毫秒)"`
	CostUSD    float64 `gorm:"type:decimal(10,6);default:0;comment:成本(美元)"`

	// 状态
	Status   string `gorm:"size:32;index;default:success;comment:状态(success/failed)"`
	ErrorMsg string `gorm:"size:1024;comment:错误信息"`
}

func (AICallLog) TableName() string {
	return "ai_call_logs"
}

// ==================== 调用类型常量 ====================

const (
	AICallTypeImage = "image"
	AICallTypeVideo = "video"
	AICallTypeEdit  = "edit"
)

// ==================== 状态常量 ====================

const (
	AICallStatusSuccess = "success"
	AICallStatusFailed  = "failed"
)
