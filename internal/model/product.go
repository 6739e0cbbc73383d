package model

// ==================== 状态常量 ====================

const (
	// 商品来源
	ProductSourceWoo    = "woocommerce"
	ProductSourceUpload = "upload"

	// 商品状态
	ProductStatusActive   = "active"
	ProductStatusArchived = "archived"

	// 资产类型
	AssetKindImage = "image"
	AssetKindGLB   = "glb"
)

// ==================== 数据库模型 ====================

// Product 商品
type Product struct {
	BaseModel

	ClientID    int64  `gorm:"index;not null;comment:客户ID" json:"client_id"`
	CategoryID  int64  `gorm:"index;comment:品类ID" json:"category_id"`
	Name        string `gorm:"size:255;not null;comment:商品名称" json:"name"`
	SKU         string `gorm:"size:64;index;comment:SKU" json:"sku"`
	Description string `gorm:"type:text;comment:商品描述" json:"description"`
	Source      string `gorm:"size:32;index;default:upload;comment:来源(woocommerce/upload)" json:"source"`
	WooID       int64  `gorm:"index;comment:WooCommerce商品ID" json:"woo_id"`
	Status      string `gorm:"size:32;index;default:active;comment:状态" json:"status"`

	// 关联
	Assets []ProductAsset `gorm:"foreignKey:ProductID" json:"assets,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// PrimaryAsset 取第一个指定类型的资产
func (p *Product) PrimaryAsset(kind string) *ProductAsset {
	for i := range p.Assets {
		if p.Assets[i].Kind == kind {
			return &p.Assets[i]
		}
	}
	return nil
}

// ReferenceImageURL 生成任务的参考图：优先用图片资产
func (p *Product) ReferenceImageURL() string {
	if a := p.PrimaryAsset(AssetKindImage); a != nil {
		return a.StorageURL
	}
	return ""
}

// ProductAsset 商品资产（图片或 GLB 模型）
type ProductAsset struct {
	BaseModel

	ProductID  int64  `gorm:"index;not null;comment:商品ID" json:"product_id"`
	Kind       string `gorm:"size:16;index;not null;comment:资产类型(image/glb)" json:"kind"`
	StorageURL string `gorm:"size:2048;not null;comment:存储URL" json:"storage_url"`
	MimeType   string `gorm:"size:64;comment:MIME类型" json:"mime_type"`
	SizeBytes  int64  `gorm:"comment:文件大小(字节)" json:"size_bytes"`
	Width      int    `gorm:"comment:图片宽度" json:"width"`
	Height     int    `gorm:"comment:图片高度" json:"height"`
	SourceURL  string `gorm:"size:2048;comment:原始来源URL(导入时)" json:"source_url"`
}

func (ProductAsset) TableName() string {
	return "product_assets"
}
