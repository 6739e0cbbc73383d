package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"scenergy_visualizer/internal/model"
	"scenergy_visualizer/internal/repository"
	"scenergy_visualizer/internal/service"
)

// ==================== 清理任务 ====================

// CleanupTask 队列与存储的周期清理
// 三件事：卡死任务回收、过期 Flow 标记、废弃图片物理删除
type CleanupTask struct {
	uow     *repository.FlowUnitOfWork
	storage *service.StorageService
	Cron    *cron.Cron

	// staleAfter 处理中任务超过该时长视为 worker 崩溃残留
	staleAfter time.Duration

	// reviewTTL 评审状态停留超过该时长的 Flow 标记过期
	reviewTTL time.Duration

	// discardBatch 每轮物理删除的废弃图片上限
	discardBatch int
}

// NewCleanupTask 创建清理任务
func NewCleanupTask(uow *repository.FlowUnitOfWork, storage *service.StorageService) *CleanupTask {
	return &CleanupTask{
		uow:          uow,
		storage:      storage,
		Cron:         cron.New(cron.WithSeconds()),
		staleAfter:   30 * time.Minute,
		reviewTTL:    14 * 24 * time.Hour,
		discardBatch: 50,
	}
}

// Start 启动定时任务
func (t *CleanupTask) Start() {
	// 卡死任务回收：每 5 分钟
	if _, err := t.Cron.AddFunc("0 */5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		t.requeueStaleJobs(ctx)
	}); err != nil {
		log.Fatalf("无法启动卡死任务回收: %v", err)
	}

	// 过期 Flow + 废弃图片：每天凌晨 3 点
	if _, err := t.Cron.AddFunc("0 0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		t.expireFlows(ctx)
		t.purgeDiscardedImages(ctx)
	}); err != nil {
		log.Fatalf("无法启动每日清理任务: %v", err)
	}

	t.Cron.Start()
	log.Println("[Cleanup] 清理任务已启动 (卡死回收每5分钟, 每日清理 03:00)")
}

// Stop 停止定时任务
func (t *CleanupTask) Stop() {
	ctx := t.Cron.Stop()
	<-ctx.Done()
	log.Println("[Cleanup] 清理任务已停止")
}

// ==================== 清理逻辑 ====================

// requeueStaleJobs 回收 worker 崩溃残留的处理中任务
// 未超出重试上限的回到队列，超出的落败
func (t *CleanupTask) requeueStaleJobs(ctx context.Context) {
	before := time.Now().Add(-t.staleAfter)
	jobs, err := t.uow.Jobs.FindStaleProcessing(ctx, before)
	if err != nil {
		log.Printf("[Cleanup] 查询卡死任务失败: %v", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	log.Printf("[Cleanup] 发现 %d 个卡死任务，开始回收", len(jobs))
	for _, job := range jobs {
		if err := t.uow.Jobs.MarkFailed(ctx, job.ID, "worker 超时未完成，自动回收", true); err != nil {
			log.Printf("[Cleanup] 回收任务 #%d 失败: %v", job.ID, err)
		}
	}
}

// expireFlows 长期停留在评审状态的 Flow 标记过期
func (t *CleanupTask) expireFlows(ctx context.Context) {
	before := time.Now().Add(-t.reviewTTL)
	flows, err := t.uow.Flows.FindExpired(ctx, before)
	if err != nil {
		log.Printf("[Cleanup] 查询过期 Flow 失败: %v", err)
		return
	}

	for _, flow := range flows {
		if err := t.uow.Flows.UpdateStatus(ctx, flow.ID, model.FlowStatusExpired); err != nil {
			log.Printf("[Cleanup] 标记 Flow #%d 过期失败: %v", flow.ID, err)
		}
	}

	if len(flows) > 0 {
		log.Printf("[Cleanup] 已标记 %d 个过期 Flow", len(flows))
	}
}

// purgeDiscardedImages 物理删除废弃图片：先删存储文件，再删记录
func (t *CleanupTask) purgeDiscardedImages(ctx context.Context) {
	images, err := t.uow.Images.FindDiscarded(ctx, t.discardBatch)
	if err != nil {
		log.Printf("[Cleanup] 查询废弃图片失败: %v", err)
		return
	}

	purged := 0
	for _, img := range images {
		if img.StorageURL != "" {
			if err := t.storage.Delete(ctx, img.StorageURL); err != nil {
				// 存储删不掉就留到下一轮，避免产生孤儿文件
				log.Printf("[Cleanup] 删除图片 #%d 存储文件失败: %v", img.ID, err)
				continue
			}
		}
		if err := t.uow.Images.DeleteByID(ctx, img.ID); err != nil {
			log.Printf("[Cleanup] 删除图片 #%d 记录失败: %v", img.ID, err)
			continue
		}
		purged++
	}

	if purged > 0 {
		log.Printf("[Cleanup] 本轮清理 %d 张废弃图片", purged)
	}
}
