package dto

// ==================== 请求 DTO ====================

// CreateFlowRequest 创建 Flow 请求
type CreateFlowRequest struct {
	ClientID     int64   `json:"client_id" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	CollectionID int64   `json:"collection_id"`
	SceneID      int64   `json:"scene_id"`
	ProductIDs   []int64 `json:"product_ids"`
}

// AttachProductsRequest 向 Flow 追加商品请求
type AttachProductsRequest struct {
	ProductIDs []int64 `json:"product_ids" binding:"required,min=1"`
}

// GenerateFlowRequest 发起生成请求
type GenerateFlowRequest struct {
	JobType  string `json:"job_type"` // image/video/edit, 默认 image
	Priority int    `json:"priority"`
}

// ListFlowsRequest Flow 列表请求
type ListFlowsRequest struct {
	ClientID     int64  `form:"client_id"`
	CollectionID int64  `form:"collection_id"`
	Status       string `form:"status"`
	Page         int    `form:"page,default=1"`
	PageSize     int    `form:"page_size,default=20"`
}

// ReviewImageRequest 评审操作请求
type ReviewImageRequest struct {
	Selected *bool `json:"selected,omitempty"`
}

// ==================== 响应 DTO ====================

// FlowListItem Flow 列表响应项
type FlowListItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ClientID     int64  `json:"client_id"`
	CollectionID int64  `json:"collection_id"`
	SceneID      int64  `json:"scene_id"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// FlowDetailResponse Flow 详情响应
type FlowDetailResponse struct {
	Flow     *FlowVO            `json:"flow"`
	Products []FlowProductVO    `json:"products"`
	Images   []GeneratedImageVO `json:"images"`
	Jobs     []JobVO            `json:"jobs"`
}

// FlowVO Flow 视图对象
type FlowVO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ClientID     int64  `json:"client_id"`
	CollectionID int64  `json:"collection_id"`
	SceneID      int64  `json:"scene_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// FlowProductVO Flow 商品视图对象
type FlowProductVO struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	CategoryID int64  `json:"category_id"`
	ImageURL   string `json:"image_url,omitempty"`
	GLBURL     string `json:"glb_url,omitempty"`
	SortOrder  int    `json:"sort_order"`
}

// GeneratedImageVO 生成图片视图对象
type GeneratedImageVO struct {
	ID           int64  `json:"id"`
	JobID        int64  `json:"job_id"`
	ProductID    int64  `json:"product_id"`
	ImageIndex   int    `json:"image_index"`
	StorageURL   string `json:"storage_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Status       string `json:"status"`
	Selected     bool   `json:"selected"`
}

// ==================== 进度事件 ====================

// ProgressEvent SSE进度事件
type ProgressEvent struct {
	FlowID   int64       `json:"flow_id"`
	JobID    int64       `json:"job_id,omitempty"`
	Stage    string      `json:"stage"` // queued, generating, saving, done, failed
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data,omitempty"`
}
