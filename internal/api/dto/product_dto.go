package dto

// ==================== 请求 DTO ====================

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	ClientID    int64  `json:"client_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	SKU         string `json:"sku"`
	CategoryID  int64  `json:"category_id"`
	Description string `json:"description"`
}

// UpdateProductRequest 更新商品请求
type UpdateProductRequest struct {
	Name        *string `json:"name,omitempty"`
	SKU         *string `json:"sku,omitempty"`
	CategoryID  *int64  `json:"category_id,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// ListProductsRequest 商品列表请求
type ListProductsRequest struct {
	ClientID   int64  `form:"client_id"`
	CategoryID int64  `form:"category_id"`
	Source     string `form:"source"`
	Status     string `form:"status"`
	Keyword    string `form:"keyword"`
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=20"`
}

// ==================== 响应 DTO ====================

// ProductVO 商品视图对象
type ProductVO struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"client_id"`
	CategoryID  int64     `json:"category_id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source"`
	WooID       int64     `json:"woo_id,omitempty"`
	Status      string    `json:"status"`
	Assets      []AssetVO `json:"assets"`
	CreatedAt   string    `json:"created_at"`
}

// AssetVO 商品资产视图对象
type AssetVO struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	StorageURL string `json:"storage_url"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// UploadAssetResult 资产上传结果
type UploadAssetResult struct {
	AssetID    int64  `json:"asset_id"`
	Kind       string `json:"kind"`
	StorageURL string `json:"storage_url"`
}

// ==================== 导入 ====================

// TriggerImportRequest 手动触发 WooCommerce 导入
type TriggerImportRequest struct {
	ClientID int64 `json:"client_id" binding:"required"`
}

// ImportResult 导入结果
type ImportResult struct {
	ClientID int64 `json:"client_id"`
	Created  int   `json:"created"`
	Updated  int   `json:"updated"`
	Skipped  int   `json:"skipped"`
}
