package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
)

// ==================== 合并结果 ====================

// MergedSettings 七级归并后的生成设置
// 普通气泡按类型取最高层级整组覆盖，negative 气泡跨层级累加去重，
// 标量逐字段取最高非零层级的值
type MergedSettings struct {
	// Bubbles 每种类型最终生效的气泡（不含 negative）
	Bubbles map[model.BubbleType][]model.Bubble `json:"bubbles"`

	// Negative 累加去重后的负向提示词片段
	Negative []string `json:"negative"`

	// 标量覆盖
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	ImageCount  int    `json:"image_count"`
	Quality     string `json:"quality"`
	Seed        int64  `json:"seed"`

	// Levels 实际参与归并的层级，按优先级升序
	Levels []string `json:"levels"`
}

// BuildPrompt 按固定气泡顺序拼出完整提示词
func (s *MergedSettings) BuildPrompt(base string) string {
	parts := make([]string, 0, 8)
	if base = strings.TrimSpace(base); base != "" {
		parts = append(parts, base)
	}
	for _, bt := range model.PromptBubbleOrder {
		for _, bubble := range s.Bubbles[bt] {
			if p := strings.TrimSpace(bubble.Prompt); p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.Join(parts, ", ")
}

// NegativePrompt 负向提示词，片段间逗号分隔
func (s *MergedSettings) NegativePrompt() string {
	return strings.Join(s.Negative, ", ")
}

// Snapshot 序列化为任务快照，入队后设置变更不影响已排队任务
func (s *MergedSettings) Snapshot() (datatypes.JSON, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("序列化设置快照失败: %w", err)
	}
	return datatypes.JSON(data), nil
}

// SettingsFromSnapshot 从任务快照还原设置
func SettingsFromSnapshot(raw datatypes.JSON) (*MergedSettings, error) {
	var s MergedSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("解析设置快照失败: %w", err)
	}
	if s.Bubbles == nil {
		s.Bubbles = make(map[model.BubbleType][]model.Bubble)
	}
	return &s, nil
}

// ==================== 归并服务 ====================

// SettingsService 生成设置归并服务
type SettingsService interface {
	// Resolve 对某个 Flow 下的一个商品归并出最终生成设置
	// categoryID 来自商品，scene/collection 来自 Flow
	Resolve(ctx context.Context, flow *model.Flow, categoryID int64) (*MergedSettings, error)

	// Preview 按 flow + category 预览归并结果，供后台调试
	Preview(ctx context.Context, flowID, categoryID int64) (*MergedSettings, error)

	// 档案管理
	SaveProfile(ctx context.Context, profileID int64, req dto.SaveProfileRequest) (*model.SettingProfile, error)
	ListProfiles(ctx context.Context, clientID int64) ([]model.SettingProfile, error)
	DeleteProfile(ctx context.Context, profileID int64) error
}

type settingsService struct {
	profileRepo repository.SettingProfileRepository
	bubbleRepo  repository.BubbleRepository
	flowRepo    repository.FlowRepository
}

// NewSettingsService 创建设置归并服务
func NewSettingsService(
	profileRepo repository.SettingProfileRepository,
	bubbleRepo repository.BubbleRepository,
	flowRepo repository.FlowRepository,
) SettingsService {
	return &settingsService{
		profileRepo: profileRepo,
		bubbleRepo:  bubbleRepo,
		flowRepo:    flowRepo,
	}
}

func (s *settingsService) Resolve(ctx context.Context, flow *model.Flow, categoryID int64) (*MergedSettings, error) {
	profiles, err := s.profileRepo.FindApplicable(ctx, repository.ApplicableQuery{
		ClientID:     flow.ClientID,
		CategoryID:   categoryID,
		SceneID:      flow.SceneID,
		CollectionID: flow.CollectionID,
		FlowID:       flow.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("查询层级设置失败: %w", err)
	}

	return MergeProfiles(profiles), nil
}

func (s *settingsService) Preview(ctx context.Context, flowID, categoryID int64) (*MergedSettings, error) {
	flow, err := s.flowRepo.GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, flow, categoryID)
}

// ==================== 档案管理 ====================

// SaveProfile 创建或更新设置档案，气泡整组替换
func (s *settingsService) SaveProfile(ctx context.Context, profileID int64, req dto.SaveProfileRequest) (*model.SettingProfile, error) {
	profile := &model.SettingProfile{
		ClientID:     req.ClientID,
		CategoryID:   req.CategoryID,
		SceneID:      req.SceneID,
		CollectionID: req.CollectionID,
		FlowID:       req.FlowID,
		Model:        req.Model,
		AspectRatio:  req.AspectRatio,
		ImageCount:   req.ImageCount,
		Quality:      req.Quality,
		Seed:         req.Seed,
	}

	for _, b := range req.Bubbles {
		if !model.IsValidBubbleType(model.BubbleType(b.Type)) {
			return nil, fmt.Errorf("未知气泡类型: %s", b.Type)
		}
	}

	if profileID > 0 {
		existing, err := s.profileRepo.GetByID(ctx, profileID)
		if err != nil {
			return nil, err
		}
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt

		// 旧气泡整组清掉，按请求重建
		for _, old := range existing.Bubbles {
			if err := s.bubbleRepo.Delete(ctx, old.ID); err != nil {
				return nil, err
			}
		}
		if err := s.profileRepo.Update(ctx, profile); err != nil {
			return nil, err
		}
	} else {
		if err := s.profileRepo.Create(ctx, profile); err != nil {
			return nil, err
		}
	}

	for _, b := range req.Bubbles {
		bubble := &model.Bubble{
			ProfileID: profile.ID,
			Type:      model.BubbleType(b.Type),
			Label:     b.Label,
			Prompt:    b.Prompt,
		}
		if err := s.bubbleRepo.Create(ctx, bubble); err != nil {
			return nil, err
		}
		profile.Bubbles = append(profile.Bubbles, *bubble)
	}

	return profile, nil
}

func (s *settingsService) ListProfiles(ctx context.Context, clientID int64) ([]model.SettingProfile, error) {
	return s.profileRepo.ListByClient(ctx, clientID)
}

func (s *settingsService) DeleteProfile(ctx context.Context, profileID int64) error {
	return s.profileRepo.Delete(ctx, profileID)
}

// MergeProfiles 按层级优先级归并一组设置档案
// 同层级出现多个档案时，后创建（ID 大）的生效
func MergeProfiles(profiles []model.SettingProfile) *MergedSettings {
	sort.SliceStable(profiles, func(i, j int) bool {
		pi, pj := profiles[i].Precedence(), profiles[j].Precedence()
		if pi != pj {
			return pi < pj
		}
		return profiles[i].ID < profiles[j].ID
	})

	merged := &MergedSettings{
		Bubbles:  make(map[model.BubbleType][]model.Bubble),
		Negative: make([]string, 0),
		Levels:   make([]string, 0, len(profiles)),
	}
	seenNegative := make(map[string]bool)

	// 升序遍历：高层级后处理，自然覆盖低层级
	for i := range profiles {
		p := &profiles[i]
		if p.Precedence() == 0 {
			continue
		}
		merged.Levels = append(merged.Levels, p.Level)

		// 气泡：本档案出现过的类型整组替换，negative 单独累加
		byType := make(map[model.BubbleType][]model.Bubble)
		for _, bubble := range p.Bubbles {
			if bubble.Type == model.BubbleTypeNegative {
				prompt := strings.TrimSpace(bubble.Prompt)
				if prompt != "" && !seenNegative[prompt] {
					seenNegative[prompt] = true
					merged.Negative = append(merged.Negative, prompt)
				}
				continue
			}
			byType[bubble.Type] = append(byType[bubble.Type], bubble)
		}
		for bt, bubbles := range byType {
			merged.Bubbles[bt] = bubbles
		}

		// 标量：非零即覆盖
		if p.Model != "" {
			merged.Model = p.Model
		}
		if p.AspectRatio != "" {
			merged.AspectRatio = p.AspectRatio
		}
		if p.ImageCount > 0 {
			merged.ImageCount = p.ImageCount
		}
		if p.Quality != "" {
			merged.Quality = p.Quality
		}
		if p.Seed != 0 {
			merged.Seed = p.Seed
		}
	}

	return merged
}
