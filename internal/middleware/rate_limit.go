package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"scenergy_visualizer/internal/limiter"
)

// ==================== 限流中间件 ====================

// RateLimit 滑动窗口限流中间件
// 按客户维度限流，客户 ID 取自路径参数或查询参数，取不到时退化为全局键
//
// 使用示例:
//
//	router.POST("/api/v1/flows/:id/generate",
//	    middleware.RateLimit(lim, "generate", limiter.RuleGenerate),
//	    controller.Generate,
//	)
func RateLimit(lim limiter.Limiter, action string, rule limiter.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := limitKey(c, action)

		decision, err := lim.Allow(c.Request.Context(), key, rule)
		if err != nil {
			// 限流器故障时放行，不拿限流基础设施挡业务
			c.Next()
			return
		}

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(decision.RetryAfter),
				"data": gin.H{
					"retry_after": retryAfter,
					"action":      action,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// limitKey 构造限流键：client:<id>:<action> 或 global:<action>
func limitKey(c *gin.Context, action string) string {
	clientIDStr := c.Param("client_id")
	if clientIDStr == "" {
		clientIDStr = c.Query("client_id")
	}
	if clientIDStr != "" {
		if clientID, err := strconv.ParseInt(clientIDStr, 10, 64); err == nil {
			return fmt.Sprintf("client:%d:%s", clientID, action)
		}
	}
	return fmt.Sprintf("global:%s", action)
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	if seconds < 60 {
		return fmt.Sprintf("请求过于频繁，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("请求过于频繁，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("请求过于频繁，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
