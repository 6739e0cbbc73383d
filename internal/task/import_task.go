package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"scenergy_visualizer/internal/api/dto"
	"scenergy_visualizer/internal/middleware"
	"scenergy_visualizer/internal/service"
)

// ==================== WooCommerce 导入任务 ====================

// ImportTask WooCommerce 定时导入
// 每天全量同步一次所有配置了对接的客户，和手动触发共用冷却限流
type ImportTask struct {
	woo  *service.WooService
	Cron *cron.Cron
}

// NewImportTask 创建导入任务
func NewImportTask(woo *service.WooService) *ImportTask {
	return &ImportTask{
		woo:  woo,
		Cron: cron.New(cron.WithSeconds()),
	}
}

// Start 启动定时任务
func (t *ImportTask) Start() {
	// 每天凌晨 2 点全量同步
	if _, err := t.Cron.AddFunc("0 0 2 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		t.syncAll(ctx)
	}); err != nil {
		log.Fatalf("无法启动 WooCommerce 导入任务: %v", err)
	}

	t.Cron.Start()
	log.Println("[Import] WooCommerce 导入任务已启动 (每日 02:00)")
}

// Stop 停止定时任务
func (t *ImportTask) Stop() {
	ctx := t.Cron.Stop()
	<-ctx.Done()
	log.Println("[Import] WooCommerce 导入任务已停止")
}

func (t *ImportTask) syncAll(ctx context.Context) {
	log.Println("[Import] 开始定时全量同步")
	t.woo.ImportAllConfigured(ctx)
}

// TriggerClient 手动触发单个客户同步，受冷却限流约束
func (t *ImportTask) TriggerClient(ctx context.Context, clientID int64) (*dto.ImportResult, error) {
	key := middleware.ImportCooldownKey(clientID)
	result := middleware.GetCooldownLimiter().Check(key, middleware.DefaultImportCooldown)
	if !result.Allowed {
		return nil, &CooldownError{RetryAfter: result.RetryAfter}
	}

	return t.woo.ImportClient(ctx, clientID)
}

// CooldownError 冷却期内触发的错误
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return "导入冷却中，请 " + e.RetryAfter.Round(time.Second).String() + " 后重试"
}
