package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/service"
	"scenergy_visualizer/internal/task"
)

// SyncController WooCommerce 导入控制器
type SyncController struct {
	tasks *task.TaskManager
}

// NewSyncController 创建导入控制器
func NewSyncController(tasks *task.TaskManager) *SyncController {
	return &SyncController{tasks: tasks}
}

// TriggerImport 手动触发导入
// @Summary 手动触发单客户 WooCommerce 导入，受冷却限流约束
// @Tags Sync
// @Accept json
// @Param request body dto.TriggerImportRequest true "导入请求"
// @Router /api/sync/import [post]
func (ctrl *SyncController) TriggerImport(c *gin.Context) {
	var req dto.TriggerImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	result, err := ctrl.tasks.TriggerImport(c.Request.Context(), req.ClientID)
	if err != nil {
		var cooldown *task.CooldownError
		switch {
		case errors.As(err, &cooldown):
			c.Header("Retry-After", cooldown.RetryAfter.Round(time.Second).String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": err.Error(),
			})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "客户不存在",
			})
		case errors.Is(err, service.ErrWooNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": err.Error(),
			})
		case errors.Is(err, task.ErrTaskDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"code":    503,
				"message": "导入任务未启用",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "导入失败: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "导入完成",
		"data":    result,
	})
}

// TaskStatus 后台任务状态
// @Summary 查看后台任务启用情况
// @Tags Sync
// @Router /api/sync/status [get]
func (ctrl *SyncController) TaskStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    ctrl.tasks.Status(),
	})
}
