package dto

// ==================== 目录层级请求 DTO ====================

// CreateClientRequest 创建客户请求
type CreateClientRequest struct {
	Name         string `json:"name" binding:"required"`
	Slug         string `json:"slug"`
	ContactEmail string `json:"contact_email"`

	// WooCommerce 对接配置，可选
	WooBaseURL        string `json:"woo_base_url"`
	WooConsumerKey    string `json:"woo_consumer_key"`
	WooConsumerSecret string `json:"woo_consumer_secret"`
}

// UpdateClientRequest 更新客户请求
type UpdateClientRequest struct {
	Name              *string `json:"name,omitempty"`
	ContactEmail      *string `json:"contact_email,omitempty"`
	WooBaseURL        *string `json:"woo_base_url,omitempty"`
	WooConsumerKey    *string `json:"woo_consumer_key,omitempty"`
	WooConsumerSecret *string `json:"woo_consumer_secret,omitempty"`
}

// CreateCategoryRequest 创建品类请求
type CreateCategoryRequest struct {
	ClientID int64  `json:"client_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// CreateSceneRequest 创建场景请求
type CreateSceneRequest struct {
	ClientID    int64  `json:"client_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateCollectionRequest 创建系列请求
type CreateCollectionRequest struct {
	ClientID int64  `json:"client_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Season   string `json:"season"`
}

// ==================== 响应 DTO ====================

// ClientVO 客户视图对象，不回传密钥
type ClientVO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	ContactEmail  string `json:"contact_email"`
	WooBaseURL    string `json:"woo_base_url,omitempty"`
	WooConfigured bool   `json:"woo_configured"`
	CreatedAt     string `json:"created_at"`
}
