package task

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"scenergy_visualizer/internal/limiter"
	"scenergy_visualizer/internal/service"
)

// ==================== 生成队列 worker ====================

// GenerateTask 生成任务 worker
// 轮询数据库队列认领任务，信号量控制并发，
// 令牌桶平滑对上游 AI 接口的请求波峰
type GenerateTask struct {
	queue     *service.GenerationService
	aiLimiter limiter.Limiter
	pacer     *rate.Limiter

	concurrency int
	pollEvery   time.Duration
	jobTimeout  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGenerateTask 创建生成 worker
func NewGenerateTask(queue *service.GenerationService, aiLimiter limiter.Limiter) *GenerateTask {
	return &GenerateTask{
		queue:       queue,
		aiLimiter:   aiLimiter,
		pacer:       rate.NewLimiter(rate.Every(2*time.Second), 3), // 平均 2s 一次，允许小突发
		concurrency: 3,
		pollEvery:   3 * time.Second,
		jobTimeout:  10 * time.Minute, // 视频任务最长，给足余量
	}
}

// SetConcurrency 调整并发与轮询间隔
func (t *GenerateTask) SetConcurrency(concurrency int, pollEvery time.Duration) {
	if concurrency > 0 {
		t.concurrency = concurrency
	}
	if pollEvery > 0 {
		t.pollEvery = pollEvery
	}
}

// Start 启动 worker
func (t *GenerateTask) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	sem := make(chan struct{}, t.concurrency)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.pollEvery)
		defer ticker.Stop()

		log.Printf("[Worker] 生成队列 worker 已启动 (并发=%d, 轮询=%v)", t.concurrency, t.pollEvery)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.drainOnce(ctx, sem)
			}
		}
	}()
}

// drainOnce 一轮认领：把空闲的并发槽位尽量填满
func (t *GenerateTask) drainOnce(ctx context.Context, sem chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		default:
			// 槽位已满，这一轮不再认领
			return
		}

		// 全局 AI 调用窗口：贴上游配额，超了就等下一轮
		if t.aiLimiter != nil {
			decision, err := t.aiLimiter.Allow(ctx, "global:aicall", limiter.RuleAICall)
			if err == nil && !decision.Allowed {
				<-sem
				return
			}
		}

		job, err := t.queue.ClaimNext(ctx)
		if err != nil {
			log.Printf("[Worker] 认领任务失败: %v", err)
			<-sem
			return
		}
		if job == nil {
			// 队列已空
			<-sem
			return
		}

		// 平滑请求波峰
		if err := t.pacer.Wait(ctx); err != nil {
			<-sem
			return
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer func() { <-sem }()

			jobCtx, cancel := context.WithTimeout(context.Background(), t.jobTimeout)
			defer cancel()
			t.queue.HandleJob(jobCtx, job)
		}()
	}
}

// Stop 停止 worker，等待在途任务完成
func (t *GenerateTask) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	log.Println("[Worker] 生成队列 worker 已停止")
}
