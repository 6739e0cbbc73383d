package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/service"
)

// SettingController 生成设置档案控制器
type SettingController struct {
	settings service.SettingsService
}

// NewSettingController 创建设置控制器
func NewSettingController(settings service.SettingsService) *SettingController {
	return &SettingController{settings: settings}
}

// CreateProfile 创建设置档案
// @Summary 创建设置档案，层级由外键组合决定
// @Tags Setting
// @Accept json
// @Param request body dto.SaveProfileRequest true "档案内容"
// @Router /api/settings/profiles [post]
func (ctrl *SettingController) CreateProfile(c *gin.Context) {
	ctrl.saveProfile(c, 0)
}

// UpdateProfile 更新设置档案
// @Summary 更新设置档案，气泡整组替换
// @Tags Setting
// @Param profile_id path int true "档案ID"
// @Router /api/settings/profiles/{profile_id} [put]
func (ctrl *SettingController) UpdateProfile(c *gin.Context) {
	profileID, ok := parseIDParam(c, "profile_id", "无效的档案ID")
	if !ok {
		return
	}
	ctrl.saveProfile(c, profileID)
}

func (ctrl *SettingController) saveProfile(c *gin.Context, profileID int64) {
	var req dto.SaveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	profile, err := ctrl.settings.SaveProfile(c.Request.Context(), profileID, req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "档案不存在",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "保存档案失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    profileToVO(profile),
	})
}

// ListProfiles 档案列表
// @Summary 查询客户的全部设置档案
// @Tags Setting
// @Param client_id query int true "客户ID"
// @Router /api/settings/profiles [get]
func (ctrl *SettingController) ListProfiles(c *gin.Context) {
	clientID, err := strconv.ParseInt(c.Query("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的客户ID",
		})
		return
	}

	profiles, err := ctrl.settings.ListProfiles(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询档案列表失败: " + err.Error(),
		})
		return
	}

	items := make([]dto.ProfileVO, 0, len(profiles))
	for i := range profiles {
		items = append(items, profileToVO(&profiles[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    items,
	})
}

// DeleteProfile 删除档案
// @Summary 删除设置档案及其气泡
// @Tags Setting
// @Param profile_id path int true "档案ID"
// @Router /api/settings/profiles/{profile_id} [delete]
func (ctrl *SettingController) DeleteProfile(c *gin.Context) {
	profileID, ok := parseIDParam(c, "profile_id", "无效的档案ID")
	if !ok {
		return
	}

	if err := ctrl.settings.DeleteProfile(c.Request.Context(), profileID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "删除档案失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// PreviewSettings 归并预览
// @Summary 按 Flow + 品类预览七级归并结果
// @Tags Setting
// @Param flow_id query int true "Flow ID"
// @Param category_id query int false "品类ID"
// @Router /api/settings/preview [get]
func (ctrl *SettingController) PreviewSettings(c *gin.Context) {
	var req dto.PreviewSettingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	merged, err := ctrl.settings.Preview(c.Request.Context(), req.FlowID, req.CategoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "Flow 不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "归并预览失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": dto.SettingsPreviewResponse{
			Prompt:         merged.BuildPrompt(""),
			NegativePrompt: merged.NegativePrompt(),
			Model:          merged.Model,
			AspectRatio:    merged.AspectRatio,
			ImageCount:     merged.ImageCount,
			Quality:        merged.Quality,
			Seed:           merged.Seed,
			Levels:         merged.Levels,
		},
	})
}

// ==================== 视图转换 ====================

func profileToVO(p *model.SettingProfile) dto.ProfileVO {
	vo := dto.ProfileVO{
		ID:           p.ID,
		ClientID:     p.ClientID,
		CategoryID:   p.CategoryID,
		SceneID:      p.SceneID,
		CollectionID: p.CollectionID,
		FlowID:       p.FlowID,
		Level:        p.Level,
		Model:        p.Model,
		AspectRatio:  p.AspectRatio,
		ImageCount:   p.ImageCount,
		Quality:      p.Quality,
		Seed:         p.Seed,
		Bubbles:      make([]dto.BubbleVO, 0, len(p.Bubbles)),
	}
	for _, b := range p.Bubbles {
		vo.Bubbles = append(vo.Bubbles, dto.BubbleVO{
			ID:     b.ID,
			Type:   string(b.Type),
			Label:  b.Label,
			Prompt: b.Prompt,
		})
	}
	return vo
}
