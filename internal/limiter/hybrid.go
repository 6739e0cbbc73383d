package limiter

import (
	"context"
	"log"
	"sync"
	"time"
)

// ==================== 混合限流器 ====================

// HybridLimiter Redis 优先、内存兜底的组合限流器
// Redis 不可用时降级到内存窗口（降级期间各实例独立计数，限流会偏松），
// 并在冷却期内不再反复探测 Redis
type HybridLimiter struct {
	redis  Limiter
	memory Limiter

	mu          sync.Mutex
	downUntil   time.Time
	downBackoff time.Duration

	now func() time.Time
}

// NewHybridLimiter 创建混合限流器
// redis 可以为 nil，此时退化为纯内存限流
func NewHybridLimiter(redisLimiter Limiter, memoryLimiter Limiter) *HybridLimiter {
	return &HybridLimiter{
		redis:       redisLimiter,
		memory:      memoryLimiter,
		downBackoff: 30 * time.Second,
		now:         time.Now,
	}
}

// Allow 判定并记录一次调用
func (h *HybridLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	if h.redis != nil && h.redisUp() {
		decision, err := h.redis.Allow(ctx, key, rule)
		if err == nil {
			return decision, nil
		}
		h.markDown(err)
	}
	return h.memory.Allow(ctx, key, rule)
}

func (h *HybridLimiter) redisUp() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now().After(h.downUntil)
}

func (h *HybridLimiter) markDown(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.downUntil = h.now().Add(h.downBackoff)
	log.Printf("[Limiter] Redis 限流不可用，降级到内存窗口: %v", err)
}
