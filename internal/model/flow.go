package model

// ==================== 状态常量 ====================

const (
	// Flow 状态
	FlowStatusDraft      = "draft"
	FlowStatusGenerating = "generating"
	FlowStatusReview     = "review"
	FlowStatusDone       = "done"
	FlowStatusFailed     = "failed"
	FlowStatusExpired    = "expired"

	// 生成图片状态
	ImageStatusPending = "pending"
	ImageStatusReady   = "ready"
	ImageStatusFailed  = "failed"
)

// ==================== 数据库模型 ====================

// Flow 工作流：一组商品 + 生成设置 + 生成结果
type Flow struct {
	BaseModel

	ClientID     int64  `gorm:"index;not null;comment:客户ID" json:"client_id"`
	CollectionID int64  `gorm:"index;comment:系列ID" json:"collection_id"`
	SceneID      int64  `gorm:"index;comment:场景ID" json:"scene_id"`
	Name         string `gorm:"size:255;not null;comment:Flow名称" json:"name"`
	Status       string `gorm:"size:32;index;default:draft;comment:状态" json:"status"`
	ErrorMessage string `gorm:"size:1024;comment:失败原因" json:"error_message"`

	// 关联
	Products []FlowProduct    `gorm:"foreignKey:FlowID" json:"products,omitempty"`
	Images   []GeneratedImage `gorm:"foreignKey:FlowID" json:"images,omitempty"`
}

func (Flow) TableName() string {
	return "flows"
}

// CanGenerate 检查是否可以发起生成
func (f *Flow) CanGenerate() bool {
	return f.Status == FlowStatusDraft || f.Status == FlowStatusReview
}

// FlowProduct Flow 与商品的关联
type FlowProduct struct {
	BaseModel

	FlowID    int64 `gorm:"index;not null;uniqueIndex:idx_flow_product;comment:FlowID" json:"flow_id"`
	ProductID int64 `gorm:"index;not null;uniqueIndex:idx_flow_product;comment:商品ID" json:"product_id"`
	SortOrder int   `gorm:"default:0;comment:排序" json:"sort_order"`

	// 关联
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

func (FlowProduct) TableName() string {
	return "flow_products"
}

// GeneratedImage 生成结果图片
type GeneratedImage struct {
	BaseModel

	FlowID       int64  `gorm:"index;not null;comment:FlowID" json:"flow_id"`
	JobID        int64  `gorm:"index;comment:生成任务ID" json:"job_id"`
	ProductID    int64  `gorm:"index;comment:商品ID" json:"product_id"`
	ImageIndex   int    `gorm:"comment:任务内序号" json:"image_index"`
	Prompt       string `gorm:"type:text;comment:实际使用的提示词" json:"prompt"`
	StorageURL   string `gorm:"size:2048;comment:存储URL" json:"storage_url"`
	ThumbnailURL string `gorm:"size:2048;comment:缩略图URL" json:"thumbnail_url"`
	Width        int    `gorm:"comment:图片宽度" json:"width"`
	Height       int    `gorm:"comment:图片高度" json:"height"`
	Status       string `gorm:"size:32;index;default:pending;comment:状态" json:"status"`
	Selected     bool   `gorm:"default:false;index;comment:是否选中" json:"selected"`
	Discarded    bool   `gorm:"default:false;index;comment:是否废弃" json:"discarded"`
	ErrorMessage string `gorm:"size:1024;comment:错误信息" json:"error_message"`
}

func (GeneratedImage) TableName() string {
	return "generated_images"
}
