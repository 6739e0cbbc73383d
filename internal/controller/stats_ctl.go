package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"scenergy_visualizer/internal/repository"
)

// StatsController AI 用量与成本统计控制器
type StatsController struct {
	aiLogRepo repository.AICallLogRepository
}

// NewStatsController 创建统计控制器
func NewStatsController(aiLogRepo repository.AICallLogRepository) *StatsController {
	return &StatsController{aiLogRepo: aiLogRepo}
}

// ClientUsage 客户用量统计
// @Summary 客户在时间段内的 AI 调用用量与成本
// @Tags Stats
// @Param client_id query int true "客户ID"
// @Param days query int false "统计天数，默认 30"
// @Router /api/stats/usage [get]
func (ctrl *StatsController) ClientUsage(c *gin.Context) {
	clientID, err := strconv.ParseInt(c.Query("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的客户ID",
		})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 {
		days = 30
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	stats, err := ctrl.aiLogRepo.GetUsageByClient(c.Request.Context(), clientID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询用量统计失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"client_id": clientID,
			"start":     start.Format(time.RFC3339),
			"end":       end.Format(time.RFC3339),
			"usage":     stats,
		},
	})
}

// FlowUsage 单 Flow 用量统计
// @Summary 单个 Flow 的 AI 调用用量与成本
// @Tags Stats
// @Param flow_id path int true "Flow ID"
// @Router /api/stats/flows/{flow_id} [get]
func (ctrl *StatsController) FlowUsage(c *gin.Context) {
	flowID, ok := parseIDParam(c, "flow_id", "无效的 Flow ID")
	if !ok {
		return
	}

	stats, err := ctrl.aiLogRepo.GetUsageByFlow(c.Request.Context(), flowID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询用量统计失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    stats,
	})
}

// DailyUsage 按天用量曲线
// @Summary 客户最近 N 天的按天用量
// @Tags Stats
// @Param client_id query int true "客户ID"
// @Param days query int false "统计天数，默认 30"
// @Router /api/stats/daily [get]
func (ctrl *StatsController) DailyUsage(c *gin.Context) {
	clientID, err := strconv.ParseInt(c.Query("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的客户ID",
		})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	usage, err := ctrl.aiLogRepo.GetDailyUsage(c.Request.Context(), clientID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询按天用量失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    usage,
	})
}
