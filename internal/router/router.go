package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scenergy_visualizer/internal/controller"
	"scenergy_visualizer/internal/limiter"
	"scenergy_visualizer/internal/middleware"
)

// InitRoutes 注册全部路由
func InitRoutes(
	r *gin.Engine,
	lim limiter.Limiter,
	catalogCtl *controller.CatalogController,
	productCtl *controller.ProductController,
	flowCtl *controller.FlowController,
	jobCtl *controller.JobController,
	settingCtl *controller.SettingController,
	statsCtl *controller.StatsController,
	syncCtl *controller.SyncController,
) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// 目录层级
		clients := api.Group("/clients")
		{
			clients.POST("", catalogCtl.CreateClient)        // 创建客户
			clients.GET("", catalogCtl.ListClients)          // 客户列表
			clients.GET("/:client_id", catalogCtl.GetClient) // 客户详情
			clients.PUT("/:client_id", catalogCtl.UpdateClient)
		}
		api.POST("/categories", catalogCtl.CreateCategory)
		api.GET("/categories", catalogCtl.ListCategories)
		api.POST("/scenes", catalogCtl.CreateScene)
		api.GET("/scenes", catalogCtl.ListScenes)
		api.POST("/collections", catalogCtl.CreateCollection)
		api.GET("/collections", catalogCtl.ListCollections)

		// 商品与资产
		products := api.Group("/products")
		{
			products.POST("", productCtl.CreateProduct)
			products.GET("", productCtl.ListProducts)
			products.GET("/:product_id", productCtl.GetProduct)
			products.PUT("/:product_id", productCtl.UpdateProduct)
			products.DELETE("/:product_id", productCtl.DeleteProduct)
			products.POST("/:product_id/assets", productCtl.UploadAsset) // 上传图片/GLB
		}
		api.DELETE("/assets/:asset_id", productCtl.DeleteAsset)

		// Flow 与评审
		flows := api.Group("/flows")
		{
			flows.POST("", flowCtl.CreateFlow)
			flows.GET("", flowCtl.ListFlows)
			flows.GET("/:flow_id", flowCtl.GetFlowDetail)
			flows.DELETE("/:flow_id", flowCtl.DeleteFlow)
			flows.POST("/:flow_id/products", flowCtl.AttachProducts)
			flows.DELETE("/:flow_id/products/:product_id", flowCtl.DetachProduct)
			flows.POST("/:flow_id/complete", flowCtl.Complete)
			flows.GET("/:flow_id/stream", flowCtl.StreamProgress) // SSE 进度

			// 发起生成：入口处再挂一层滑动窗口限流
			flows.POST("/:flow_id/generate",
				middleware.RateLimit(lim, "generate", limiter.RuleGenerate),
				flowCtl.Generate)
		}
		api.PUT("/images/:image_id/select", flowCtl.SelectImage)
		api.DELETE("/images/:image_id", flowCtl.DiscardImage)

		// 任务队列
		jobs := api.Group("/jobs")
		{
			jobs.GET("", jobCtl.ListJobs)
			jobs.GET("/stats", jobCtl.QueueStats)
			jobs.POST("/edit", jobCtl.EnqueueEdit)
			jobs.POST("/video", jobCtl.EnqueueVideo)
			jobs.POST("/:job_id/cancel", jobCtl.CancelJob)
			jobs.POST("/:job_id/retry", jobCtl.RetryJob)
		}

		// 生成设置
		settings := api.Group("/settings")
		{
			settings.POST("/profiles", settingCtl.CreateProfile)
			settings.GET("/profiles", settingCtl.ListProfiles)
			settings.PUT("/profiles/:profile_id", settingCtl.UpdateProfile)
			settings.DELETE("/profiles/:profile_id", settingCtl.DeleteProfile)
			settings.GET("/preview", settingCtl.PreviewSettings) // 七级归并预览
		}

		// 用量统计
		stats := api.Group("/stats")
		{
			stats.GET("/usage", statsCtl.ClientUsage)
			stats.GET("/daily", statsCtl.DailyUsage)
			stats.GET("/flows/:flow_id", statsCtl.FlowUsage)
		}

		// WooCommerce 导入
		sync := api.Group("/sync")
		{
			sync.POST("/import",
				middleware.RateLimit(lim, "import", limiter.RuleImport),
				syncCtl.TriggerImport)
			sync.GET("/status", syncCtl.TaskStatus)
		}
	}
}
