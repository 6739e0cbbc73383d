package model

import (
	"errors"

	"gorm.io/datatypes"
)

// ==================== Bubble 类型常量 ====================

// BubbleType 气泡类型：一段可复用的生成设置片段
type BubbleType string

const (
	BubbleTypeStyle       BubbleType = "style"
	BubbleTypeLighting    BubbleType = "lighting"
	BubbleTypeMood        BubbleType = "mood"
	BubbleTypeCamera      BubbleType = "camera"
	BubbleTypeBackground  BubbleType = "background"
	BubbleTypeComposition BubbleType = "composition"
	BubbleTypeNegative    BubbleType = "negative"
)

// PromptBubbleOrder 渲染提示词时的固定顺序（negative 单独处理）
var PromptBubbleOrder = []BubbleType{
	BubbleTypeStyle,
	BubbleTypeLighting,
	BubbleTypeMood,
	BubbleTypeCamera,
	BubbleTypeBackground,
	BubbleTypeComposition,
}

// IsValidBubbleType 校验气泡类型
func IsValidBubbleType(t BubbleType) bool {
	switch t {
	case BubbleTypeStyle, BubbleTypeLighting, BubbleTypeMood, BubbleTypeCamera,
		BubbleTypeBackground, BubbleTypeComposition, BubbleTypeNegative:
		return true
	}
	return false
}

// ==================== 设置层级 ====================

// 七级覆盖层级，数值越大优先级越高
const (
	LevelClient             = "client"
	LevelCategory           = "category"
	LevelCategoryScene      = "category_scene"
	LevelCollection         = "collection"
	LevelCollectionCategory = "collection_category"
	LevelCollectionScene    = "collection_scene"
	LevelFlow               = "flow"
)

// LevelPrecedence 层级优先级表
var LevelPrecedence = map[string]int{
	LevelClient:             1,
	LevelCategory:           2,
	LevelCategoryScene:      3,
	LevelCollection:         4,
	LevelCollectionCategory: 5,
	LevelCollectionScene:    6,
	LevelFlow:               7,
}

var ErrInvalidLevel = errors.New("设置档案的层级组合不合法")

// ==================== 数据库模型 ====================

// Bubble 气泡：挂在某个设置档案上的类型化提示词片段
type Bubble struct {
	BaseModel

	ProfileID int64          `gorm:"index;not null;comment:设置档案ID" json:"profile_id"`
	Type      BubbleType     `gorm:"size:32;index;not null;comment:气泡类型" json:"type"`
	Label     string         `gorm:"size:128;comment:显示名称" json:"label"`
	Prompt    string         `gorm:"type:text;not null;comment:提示词片段" json:"prompt"`
	Params    datatypes.JSON `gorm:"type:json;comment:附加参数" json:"params,omitempty"`
}

func (Bubble) TableName() string {
	return "bubbles"
}

// SettingProfile 设置档案：把一组气泡和标量覆盖绑定到某一层级
// 层级由非零外键组合唯一确定，见 DeriveLevel
type SettingProfile struct {
	BaseModel

	ClientID     int64 `gorm:"index;not null;comment:客户ID" json:"client_id"`
	CategoryID   int64 `gorm:"index;comment:品类ID(0=未绑定)" json:"category_id"`
	SceneID      int64 `gorm:"index;comment:场景ID(0=未绑定)" json:"scene_id"`
	CollectionID int64 `gorm:"index;comment:系列ID(0=未绑定)" json:"collection_id"`
	FlowID       int64 `gorm:"index;comment:FlowID(0=未绑定)" json:"flow_id"`

	Level string `gorm:"size:32;index;not null;comment:层级(写入时派生)" json:"level"`

	// 标量覆盖：零值表示该层级不覆盖此项
	Model       string `gorm:"size:64;comment:生成模型覆盖" json:"model"`
	AspectRatio string `gorm:"size:16;comment:宽高比覆盖" json:"aspect_ratio"`
	ImageCount  int    `gorm:"comment:生成张数覆盖" json:"image_count"`
	Quality     string `gorm:"size:16;comment:质量档位覆盖" json:"quality"`
	Seed        int64  `gorm:"comment:随机种子覆盖" json:"seed"`

	// 关联
	Bubbles []Bubble `gorm:"foreignKey:ProfileID" json:"bubbles,omitempty"`
}

func (SettingProfile) TableName() string {
	return "setting_profiles"
}

// DeriveLevel 根据外键组合派生层级
// 合法组合（ClientID 始终必填）：
//   - 仅 client                     → client
//   - category                      → category
//   - category + scene              → category_scene
//   - collection                    → collection
//   - collection + category         → collection_category
//   - collection + scene            → collection_scene
//   - flow（其余维度必须为 0）        → flow
func (p *SettingProfile) DeriveLevel() (string, error) {
	if p.ClientID == 0 {
		return "", ErrInvalidLevel
	}

	hasCategory := p.CategoryID != 0
	hasScene := p.SceneID != 0
	hasCollection := p.CollectionID != 0
	hasFlow := p.FlowID != 0

	switch {
	case hasFlow:
		if hasCategory || hasScene || hasCollection {
			return "", ErrInvalidLevel
		}
		return LevelFlow, nil
	case hasCollection && hasScene && !hasCategory:
		return LevelCollectionScene, nil
	case hasCollection && hasCategory && !hasScene:
		return LevelCollectionCategory, nil
	case hasCollection && !hasCategory && !hasScene:
		return LevelCollection, nil
	case hasCategory && hasScene:
		return LevelCategoryScene, nil
	case hasCategory:
		return LevelCategory, nil
	case hasScene:
		// 场景必须搭配品类或系列
		return "", ErrInvalidLevel
	default:
		return LevelClient, nil
	}
}

// Precedence 当前档案的优先级，层级非法时返回 0
func (p *SettingProfile) Precedence() int {
	return LevelPrecedence[p.Level]
}
