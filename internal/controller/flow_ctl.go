package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/service"
)

// FlowController Flow 管理与评审控制器
type FlowController struct {
	flowService *service.FlowService
	queue       *service.GenerationService
}

// NewFlowController 创建 Flow 控制器
func NewFlowController(flowService *service.FlowService, queue *service.GenerationService) *FlowController {
	return &FlowController{
		flowService: flowService,
		queue:       queue,
	}
}

// CreateFlow 创建 Flow
// @Summary 创建 Flow 并关联初始商品
// @Tags Flow
// @Accept json
// @Param request body dto.CreateFlowRequest true "创建请求"
// @Router /api/flows [post]
func (ctrl *FlowController) CreateFlow(c *gin.Context) {
	var req dto.CreateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	flow, err := ctrl.flowService.CreateFlow(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "创建 Flow 失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"flow_id": flow.ID,
			"status":  flow.Status,
		},
	})
}

// ListFlows Flow 列表
// @Summary 按客户/系列/状态分页查询 Flow
// @Tags Flow
// @Router /api/flows [get]
func (ctrl *FlowController) ListFlows(c *gin.Context) {
	var req dto.ListFlowsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	items, total, err := ctrl.flowService.ListFlows(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询 Flow 列表失败: " + err.Error(),
		})
		return
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

// GetFlowDetail Flow 详情
// @Summary Flow 详情：商品、生成结果、任务
// @Tags Flow
// @Param flow_id path int true "Flow ID"
// @Router /api/flows/{flow_id} [get]
func (ctrl *FlowController) GetFlowDetail(c *gin.Context) {
	flowID, ok := parseIDParam(c, "flow_id", "无效的 Flow ID")
	if !ok {
		return
	}

	detail, err := ctrl.flowService.GetDetail(c.Request.Context(), flowID)
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
			"message": "查询 Flow 详情失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    detail,
	})
}

// AttachProducts 向 Flow 追加商品
// @Summary 向 Flow 追加商品
// @Tags Flow
// @Param flow_id path int true "Flow ID"
// @Router /api/flows/{flow_id}/products [post]
func (ctrl *FlowController) AttachProducts(c *gin.Context) {
	flowID, ok := parseIDParam(c, "flow_id", "无效的 Flow ID")
	if !ok {
		return
	}

	var req dto.AttachProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	if err := ctrl.flowService.AttachProducts(c.Request.Context(), flowID, req.ProductIDs); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "Flow 不存在",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "追加商品失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// DetachProduct 从 Flow 移除商品
// @Summary 从 Flow 移除商品
// @Tags Flow
// @Param flow_id path int true "Flow ID"
// @Param product_id path int true "商品ID"
// @Router /api/flows/{flow_id}/products/{product_id} [delete]
func (ctrl *FlowController) DetachProduct(c *gin.Context) {
	flowID, ok := parseIDParam(c, "flow_id", "无效的 Flow ID")
	if !ok {
		return
	}
	productID, ok := parseIDParam(c, "product_id", "无效的商品ID")
	if !ok {
		return
	}

	if err := ctrl.flowService.DetachProduct(c.Request.Context(), flowID, productID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "移除商品失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// Generate 发起生成
// @Summary 为 Flow 下每个商品入队一个图片生成任务
// @Tags Flow
// @Param flow_id path int true "Flow ID"
// @Param request body dto.GenerateFlowRequest false "生成参数"
// @Router /api/flows/{flow_id}/generate [post]
func (ctrl *FlowController) Generate(c *gin.Context) {
	flowID, ok := parseIDParam(c, "flow_id", "无效的 Flow ID")
	if !ok {
		return
	}

	// 请求体可省略，省略时走默认优先级
	var req dto.GenerateFlowRequest
	_ = c.ShouldBindJSON(&req)

	result, err := ctrl.queue.EnqueueForFlow(c.Request.Context(), flowID, req.Priority)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "Flow 不存在",
			})
		case errors.Is(err, service.ErrFlowNotGeneratable), errors.Is(err, service.ErrFlowEmpty):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": err.Error(),
			})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "发起生成失败: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "生成任务已入队",
		"data":    result,
	})
}

// Complete 评审收尾
// @Summary 评审通过，Flow 进入 done
// @Tags Flow
// @Param flow_id path int true "Flow ID"
// @Router /api/flows/{flow_id}/complete [post]
func (ctrl *FlowController) Complete(c *gin.Context) {
	flowID, ok := parseIDParam(c, "flow_id", "无效的 Flow ID")
	if !ok {
		return
	}

	if err := ctrl.flowService.Complete(c.Request.Context(), flowID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "Flow 不存在",
			})
		case errors.Is(err, service.ErrFlowNotInReview):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "收尾失败: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// DeleteFlow 删除 Flow
// @Summary 删除 Flow 及其生成结果记录
// @Tags Flow
// @Param flow_id path int true "Flow ID"
// @Router /api/flows/{flow_id} [delete]
func (ctrl *FlowController) DeleteFlow(c *gin.Context) {
	flowID, ok := parseIDParam(c, "flow_id", "无效的 Flow ID")
	if !ok {
		return
	}

	if err := ctrl.flowService.Delete(c.Request.Context(), flowID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "删除 Flow 失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// ==================== 评审操作 ====================

// SelectImage 设置图片选中标记
// @Summary 评审中选中/取消选中一张生成图
// @Tags Flow
// @Param image_id path int true "图片ID"
// @Router /api/images/{image_id}/select [put]
func (ctrl *FlowController) SelectImage(c *gin.Context) {
	imageID, ok := parseIDParam(c, "image_id", "无效的图片ID")
	if !ok {
		return
	}

	var req dto.ReviewImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	selected := true
	if req.Selected != nil {
		selected = *req.Selected
	}

	if err := ctrl.flowService.SetImageSelected(c.Request.Context(), imageID, selected); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "图片不存在",
			})
		case errors.Is(err, service.ErrImageDiscarded):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "更新选中状态失败: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// DiscardImage 废弃图片
// @Summary 废弃一张生成图，文件由清理任务异步删除
// @Tags Flow
// @Param image_id path int true "图片ID"
// @Router /api/images/{image_id} [delete]
func (ctrl *FlowController) DiscardImage(c *gin.Context) {
	imageID, ok := parseIDParam(c, "image_id", "无效的图片ID")
	if !ok {
		return
	}

	if err := ctrl.flowService.DiscardImage(c.Request.Context(), imageID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "废弃图片失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// ==================== 进度推送 ====================

// StreamProgress SSE 订阅 Flow 生成进度
// @Summary SSE 实时推送生成进度
// @Tags Flow
// @Param flow_id path int true "Flow ID"
// @Produce text/event-stream
// @Router /api/flows/{flow_id}/stream [get]
func (ctrl *FlowController) StreamProgress(c *gin.Context) {
	flowID, ok := parseIDParam(c, "flow_id", "无效的 Flow ID")
	if !ok {
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// 订阅进度
	progressCh := ctrl.queue.Subscribe(flowID)
	defer ctrl.queue.Unsubscribe(flowID, progressCh)

	// 发送心跳和进度
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			// 心跳
			c.SSEvent("heartbeat", gin.H{"time": time.Now().Unix()})
			c.Writer.Flush()
		case event, ok := <-progressCh:
			if !ok {
				return
			}
			data, _ := json.Marshal(event)
			c.SSEvent("progress", string(data))
			c.Writer.Flush()

			// Flow 完成或失败后关闭连接
			if event.Stage == "done" || event.Stage == "failed" {
				return
			}
		}
	}
}

// ==================== 公共工具 ====================

// parseIDParam 解析路径上的数字 ID，非法时直接写 400 响应
func parseIDParam(c *gin.Context, name, errMsg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": errMsg,
		})
		return 0, false
	}
	return id, true
}
