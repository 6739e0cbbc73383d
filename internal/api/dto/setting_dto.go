package dto

// ==================== 请求 DTO ====================

// SaveProfileRequest 创建/更新设置档案请求
// 层级由非零外键组合决定，服务端校验合法性
type SaveProfileRequest struct {
	ClientID     int64 `json:"client_id" binding:"required"`
	CategoryID   int64 `json:"category_id"`
	SceneID      int64 `json:"scene_id"`
	CollectionID int64 `json:"collection_id"`
	FlowID       int64 `json:"flow_id"`

	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	ImageCount  int    `json:"image_count"`
	Quality     string `json:"quality"`
	Seed        int64  `json:"seed"`

	Bubbles []SaveBubbleRequest `json:"bubbles"`
}

// SaveBubbleRequest 气泡请求
type SaveBubbleRequest struct {
	Type   string `json:"type" binding:"required"`
	Label  string `json:"label"`
	Prompt string `json:"prompt" binding:"required"`
}

// PreviewSettingsRequest 归并预览请求
type PreviewSettingsRequest struct {
	FlowID     int64 `form:"flow_id" binding:"required"`
	CategoryID int64 `form:"category_id"`
}

// ==================== 响应 DTO ====================

// ProfileVO 设置档案视图对象
type ProfileVO struct {
	ID           int64      `json:"id"`
	ClientID     int64      `json:"client_id"`
	CategoryID   int64      `json:"category_id,omitempty"`
	SceneID      int64      `json:"scene_id,omitempty"`
	CollectionID int64      `json:"collection_id,omitempty"`
	FlowID       int64      `json:"flow_id,omitempty"`
	Level        string     `json:"level"`
	Model        string     `json:"model,omitempty"`
	AspectRatio  string     `json:"aspect_ratio,omitempty"`
	ImageCount   int        `json:"image_count,omitempty"`
	Quality      string     `json:"quality,omitempty"`
	Seed         int64      `json:"seed,omitempty"`
	Bubbles      []BubbleVO `json:"bubbles"`
}

// BubbleVO 气泡视图对象
type BubbleVO struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Label  string `json:"label,omitempty"`
	Prompt string `json:"prompt"`
}

// SettingsPreviewResponse 归并预览响应
type SettingsPreviewResponse struct {
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt"`
	Model          string   `json:"model"`
	AspectRatio    string   `json:"aspect_ratio"`
	ImageCount     int      `json:"image_count"`
	Quality        string   `json:"quality"`
	Seed           int64    `json:"seed"`
	Levels         []string `json:"levels"`
}
