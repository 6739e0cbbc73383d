package task

import (
	"context"
	"log"
	"time"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/limiter"
	"scenergy_visualizer/internal/repository"
	"scenergy_visualizer/internal/service"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：生成队列 worker、清理任务、WooCommerce 导入
type TaskManager struct {
	generateTask *GenerateTask
	cleanupTask  *CleanupTask
	importTask   *ImportTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Uow       *repository.FlowUnitOfWork
	Queue     *service.GenerationService
	Woo       *service.WooService
	Storage   *service.StorageService
	AILimiter limiter.Limiter
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 生成 worker
	WorkerEnabled     bool
	WorkerConcurrency int
	WorkerPollEvery   time.Duration

	// 清理
	CleanupEnabled bool

	// 导入
	ImportEnabled bool
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		WorkerEnabled:     true,
		WorkerConcurrency: 3,
		WorkerPollEvery:   3 * time.Second,

		CleanupEnabled: true,
		ImportEnabled:  true,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{}

	if cfg.WorkerEnabled && deps.Queue != nil {
		tm.generateTask = NewGenerateTask(deps.Queue, deps.AILimiter)
		tm.generateTask.SetConcurrency(cfg.WorkerConcurrency, cfg.WorkerPollEvery)
	}

	if cfg.CleanupEnabled && deps.Uow != nil {
		tm.cleanupTask = NewCleanupTask(deps.Uow, deps.Storage)
	}

	if cfg.ImportEnabled && deps.Woo != nil {
		tm.importTask = NewImportTask(deps.Woo)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	log.Println("[TaskManager] 正在启动后台任务...")

	if tm.generateTask != nil {
		tm.generateTask.Start()
	}
	if tm.cleanupTask != nil {
		tm.cleanupTask.Start()
	}
	if tm.importTask != nil {
		tm.importTask.Start()
	}

	log.Println("[TaskManager] 后台任务已全部启动")
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台任务...")

	if tm.generateTask != nil {
		tm.generateTask.Stop()
	}
	if tm.cleanupTask != nil {
		tm.cleanupTask.Stop()
	}
	if tm.importTask != nil {
		tm.importTask.Stop()
	}

	log.Println("[TaskManager] 后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerImport 触发单客户 WooCommerce 导入
func (tm *TaskManager) TriggerImport(ctx context.Context, clientID int64) (*dto.ImportResult, error) {
	if tm.importTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.importTask.TriggerClient(ctx, clientID)
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"worker":  tm.generateTask != nil,
		"cleanup": tm.cleanupTask != nil,
		"import":  tm.importTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
