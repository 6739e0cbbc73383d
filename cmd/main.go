package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"scenergy_visualizer/internal/controller"
	"scenergy_visualizer/internal/limiter"
	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
	"scenergy_visualizer/internal/router"
	"scenergy_visualizer/internal/service"
	"scenergy_visualizer/internal/task"
	"scenergy_visualizer/pkg/database"
)

func main() {
	// .env 不存在时直接用进程环境变量
	_ = godotenv.Load()

	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 启动后台任务
	deps.Tasks.Start()
	defer deps.Tasks.Stop()
	if deps.PartitionTask != nil {
		deps.PartitionTask.Start()
		defer deps.PartitionTask.Stop()
	}

	// 4. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Limiter,
		deps.Controllers.Catalog,
		deps.Controllers.Product,
		deps.Controllers.Flow,
		deps.Controllers.Job,
		deps.Controllers.Setting,
		deps.Controllers.Stats,
		deps.Controllers.Sync,
	)

	// 5. 启动服务
	startServer(r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB            *gorm.DB
	Repos         *Repositories
	Services      *Services
	Controllers   *Controllers
	Limiter       limiter.Limiter
	Tasks         *task.TaskManager
	PartitionTask *database.PartitionTask
}

// Repositories 仓库集合
type Repositories struct {
	Client     repository.ClientRepository
	Category   repository.CategoryRepository
	Scene      repository.SceneRepository
	Collection repository.CollectionRepository
	Product    repository.ProductRepository
	Asset      repository.ProductAssetRepository
	Profile    repository.SettingProfileRepository
	Bubble     repository.BubbleRepository
	FlowUow    *repository.FlowUnitOfWork
	AiCallLog  repository.AICallLogRepository
}

// Services 服务集合
type Services struct {
	Storage  *service.StorageService
	AI       *service.AIService
	Settings service.SettingsService
	Flow     *service.FlowService
	Queue    *service.GenerationService
	Product  *service.ProductService
	Woo      *service.WooService
}

// Controllers 控制器集合
type Controllers struct {
	Catalog *controller.CatalogController
	Product *controller.ProductController
	Flow    *controller.FlowController
	Job     *controller.JobController
	Setting *controller.SettingController
	Stats   *controller.StatsController
	Sync    *controller.SyncController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
// AICallLog 是分区表，不走 AutoMigrate，见 pkg/database/partition.go
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=postgres password=postgres dbname=scenergy port=5432 sslmode=disable")

	return database.InitDB(dsn,
		// 目录层级
		&model.Client{}, &model.Category{}, &model.Scene{}, &model.Collection{},
		// 商品
		&model.Product{}, &model.ProductAsset{},
		// 生成设置
		&model.SettingProfile{}, &model.Bubble{},
		// Flow 与生成
		&model.Flow{}, &model.FlowProduct{}, &model.GenerationJob{}, &model.GeneratedImage{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := initRepositories(db)

	// -------- 分区表 --------
	partitionTask := initPartitions(db)

	// -------- 限流器 --------
	lim := initLimiter()

	// -------- 存储 & AI 服务 --------
	storageSvc := initStorageService()
	aiSvc := service.NewAIService(&service.AIConfig{
		ApiKey:     getEnv("GEMINI_API_KEY", ""),
		ImageModel: getEnv("GEMINI_IMAGE_MODEL", ""),
		VideoModel: getEnv("GEMINI_VIDEO_MODEL", ""),
	}, storageSvc, repos.AiCallLog)

	// -------- 业务服务 --------
	services := &Services{
		Storage: storageSvc,
		AI:      aiSvc,
	}
	services.Settings = service.NewSettingsService(repos.Profile, repos.Bubble, repos.FlowUow.Flows)
	services.Flow = service.NewFlowService(repos.FlowUow, repos.Product)
	services.Queue = service.NewGenerationService(
		repos.FlowUow, repos.Product, services.Settings, aiSvc, storageSvc, lim,
	)
	services.Product = service.NewProductService(repos.Product, repos.Asset, storageSvc)
	services.Woo = service.NewWooService(
		repos.Client, repos.Product, repos.Asset, repos.Category, storageSvc,
	)

	// -------- 后台任务 --------
	tasks := task.NewTaskManager(&task.TaskManagerDeps{
		Uow:       repos.FlowUow,
		Queue:     services.Queue,
		Woo:       services.Woo,
		Storage:   storageSvc,
		AILimiter: lim,
	}, nil)

	// -------- Controller 层 --------
	controllers := &Controllers{
		Catalog: controller.NewCatalogController(repos.Client, repos.Category, repos.Scene, repos.Collection),
		Product: controller.NewProductController(services.Product),
		Flow:    controller.NewFlowController(services.Flow, services.Queue),
		Job:     controller.NewJobController(services.Queue),
		Setting: controller.NewSettingController(services.Settings),
		Stats:   controller.NewStatsController(repos.AiCallLog),
		Sync:    controller.NewSyncController(tasks),
	}

	return &Dependencies{
		DB:            db,
		Repos:         repos,
		Services:      services,
		Controllers:   controllers,
		Limiter:       lim,
		Tasks:         tasks,
		PartitionTask: partitionTask,
	}
}

// initRepositories 初始化所有仓库
func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Client:     repository.NewClientRepository(db),
		Category:   repository.NewCategoryRepository(db),
		Scene:      repository.NewSceneRepository(db),
		Collection: repository.NewCollectionRepository(db),
		Product:    repository.NewProductRepository(db),
		Asset:      repository.NewProductAssetRepository(db),
		Profile:    repository.NewSettingProfileRepository(db),
		Bubble:     repository.NewBubbleRepository(db),
		FlowUow:    repository.NewFlowUnitOfWork(db),
		AiCallLog:  repository.NewAICallLogRepository(db),
	}
}

// initPartitions 初始化分区表并返回维护任务
func initPartitions(db *gorm.DB) *database.PartitionTask {
	manager := database.NewPartitionManager(db)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := manager.InitTables(ctx); err != nil {
		log.Fatalf("初始化分区表失败: %v", err)
	}
	if err := manager.EnsureFuturePartitions(ctx, 3); err != nil {
		log.Printf("警告: 创建未来分区失败: %v", err)
	}

	return database.NewPartitionTask(manager)
}

// initLimiter 初始化滑动窗口限流器
// 配了 Redis 就走混合模式，Redis 故障时自动降级到内存窗口
func initLimiter() limiter.Limiter {
	memory := limiter.NewMemoryLimiter()
	memory.StartJanitor(context.Background())

	redisAddr := getEnv("REDIS_ADDR", "")
	if redisAddr == "" {
		log.Println("[Limiter] 未配置 Redis，使用内存限流")
		return memory
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: getEnv("REDIS_PASSWORD", ""),
	})
	return limiter.NewHybridLimiter(limiter.NewRedisLimiter(rdb), memory)
}

// initStorageService 初始化存储服务
func initStorageService() *service.StorageService {
	storageSvc, err := service.NewStorageService(&service.StorageConfig{
		Provider:  getEnv("STORAGE_PROVIDER", "local"),
		Bucket:    getEnv("AWS_BUCKET", ""),
		Region:    getEnv("AWS_REGION", ""),
		AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
		CDNDomain: getEnv("AWS_CDN_DOMAIN", ""),
		BasePath:  getEnv("STORAGE_BASE_PATH", "scenergy"),
	})
	if err != nil {
		log.Printf("警告: 存储服务初始化失败: %v", err)
		return nil
	}
	return storageSvc
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
