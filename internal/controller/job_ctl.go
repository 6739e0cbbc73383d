package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/repository"
	"scenergy_visualizer/internal/service"
)

// JobController 生成任务队列控制器
type JobController struct {
	queue *service.GenerationService
}

// NewJobController 创建任务控制器
func NewJobController(queue *service.GenerationService) *JobController {
	return &JobController{queue: queue}
}

// ListJobs 任务列表
// @Summary 按客户/Flow/状态分页查询生成任务
// @Tags Job
// @Router /api/jobs [get]
func (ctrl *JobController) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	jobs, total, err := ctrl.queue.ListJobs(c.Request.Context(), repository.JobFilter{
		ClientID: req.ClientID,
		FlowID:   req.FlowID,
		JobType:  req.JobType,
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询任务列表失败: " + err.Error(),
		})
		return
	}

	items := make([]dto.JobVO, 0, len(jobs))
	for i := range jobs {
		items = append(items, service.JobToVO(&jobs[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"items":     items,
			"total":     total,
			"page":      req.Page,
			"page_size": req.PageSize,
		},
	})
}

// CancelJob 取消任务
// @Summary 取消排队中的任务
// @Tags Job
// @Param job_id path int true "任务ID"
// @Router /api/jobs/{job_id}/cancel [post]
func (ctrl *JobController) CancelJob(c *gin.Context) {
	jobID, ok := parseIDParam(c, "job_id", "无效的任务ID")
	if !ok {
		return
	}

	if err := ctrl.queue.CancelJob(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, service.ErrJobNotCancelable) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "取消任务失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "任务已取消",
	})
}

// RetryJob 重试任务
// @Summary 手动重试失败的任务
// @Tags Job
// @Param job_id path int true "任务ID"
// @Router /api/jobs/{job_id}/retry [post]
func (ctrl *JobController) RetryJob(c *gin.Context) {
	jobID, ok := parseIDParam(c, "job_id", "无效的任务ID")
	if !ok {
		return
	}

	if err := ctrl.queue.RetryJob(c.Request.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "任务不存在",
			})
		case errors.Is(err, service.ErrJobNotRetryable):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "重试任务失败: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "任务已重新入队",
	})
}

// QueueStats 队列统计
// @Summary 队列各状态任务数
// @Tags Job
// @Router /api/jobs/stats [get]
func (ctrl *JobController) QueueStats(c *gin.Context) {
	stats, err := ctrl.queue.QueueStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询队列统计失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    stats,
	})
}

// ==================== 编辑与视频 ====================

// EnqueueEdit 入队图片编辑任务
// @Summary 对一张生成图发起指令式编辑
// @Tags Job
// @Accept json
// @Param request body dto.EnqueueEditRequest true "编辑请求"
// @Router /api/jobs/edit [post]
func (ctrl *JobController) EnqueueEdit(c *gin.Context) {
	var req dto.EnqueueEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	job, err := ctrl.queue.EnqueueEdit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "源图不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "入队编辑任务失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "编辑任务已入队",
		"data": gin.H{
			"job_id": job.ID,
		},
	})
}

// EnqueueVideo 入队视频生成任务
// @Summary 以一张生成图为首帧生成短视频
// @Tags Job
// @Accept json
// @Param request body dto.EnqueueVideoRequest true "视频请求"
// @Router /api/jobs/video [post]
func (ctrl *JobController) EnqueueVideo(c *gin.Context) {
	var req dto.EnqueueVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	job, err := ctrl.queue.EnqueueVideo(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "首帧图片不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "入队视频任务失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "视频任务已入队",
		"data": gin.H{
			"job_id": job.ID,
		},
	})
}
