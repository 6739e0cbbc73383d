package model

// ==================== 目录层级模型 ====================
// 设置层级的四个维度：客户 → 品类 → 场景 → 系列
// Flow 是最末端的工作单元，定义在 flow.go

// Client 客户（品牌方）
type Client struct {
	BaseModel

	Name         string `gorm:"size:128;not null;comment:客户名称" json:"name"`
	Slug         string `gorm:"size:128;uniqueIndex;comment:URL标识" json:"slug"`
	ContactEmail string `gorm:"size:255;comment:联系邮箱" json:"contact_email"`

	// WooCommerce 对接配置
	WooBaseURL        string `gorm:"size:512;comment:WooCommerce站点地址" json:"woo_base_url"`
	WooConsumerKey    string `gorm:"size:128;comment:WooCommerce consumer key" json:"-"`
	WooConsumerSecret string `gorm:"size:128;comment:WooCommerce consumer secret" json:"-"`
}

func (Client) TableName() string {
	return "clients"
}

// HasWooCommerce 是否配置了 WooCommerce 对接
func (c *Client) HasWooCommerce() bool {
	return c.WooBaseURL != "" && c.WooConsumerKey != "" && c.WooConsumerSecret != ""
}

// Category 商品品类（家具、灯具等）
type Category struct {
	BaseModel

	ClientID int64  `gorm:"index;not null;comment:客户ID" json:"client_id"`
	Name     string `gorm:"size:128;not null;comment:品类名称" json:"name"`
	WooID    int64  `gorm:"index;comment:WooCommerce分类ID" json:"woo_id"`
}

func (Category) TableName() string {
	return "categories"
}

// Scene 视觉场景（客厅、露台、影棚等）
type Scene struct {
	BaseModel

	ClientID    int64  `gorm:"index;not null;comment:客户ID" json:"client_id"`
	Name        string `gorm:"size:128;not null;comment:场景名称" json:"name"`
	Description string `gorm:"type:text;comment:场景描述" json:"description"`
}

func (Scene) TableName() string {
	return "scenes"
}

// Collection 系列（一组 Flow 的集合，通常对应一次营销企划）
type Collection struct {
	BaseModel

	ClientID int64  `gorm:"index;not null;comment:客户ID" json:"client_id"`
	Name     string `gorm:"size:128;not null;comment:系列名称" json:"name"`
	Season   string `gorm:"size:64;comment:季度/档期" json:"season"`
}

func (Collection) TableName() string {
	return "collections"
}
