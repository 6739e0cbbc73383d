package limiter

import (
	"context"
	"sync"
	"time"
)

// ==================== 内存滑动窗口限流器 ====================

// MemoryLimiter 进程内滑动窗口限流器
// 每个 key 维护一个时间戳切片，判定时剔除窗口外的记录
// 单实例部署时可独立使用，多实例时作为 Redis 的降级后备
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	// now 可注入，便于测试
	now func() time.Time

	idleTTL      time.Duration
	cleanupEvery time.Duration
}

// MemoryOption 内存限流器可选配置
type MemoryOption func(*MemoryLimiter)

// WithClock 注入时钟，测试用
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) { m.now = now }
}

// WithIdleTTL 设置空闲 key 的保留时长
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(m *MemoryLimiter) { m.idleTTL = d }
}

// WithCleanupEvery 设置清理周期
func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(m *MemoryLimiter) { m.cleanupEvery = d }
}

// NewMemoryLimiter 创建内存限流器
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		windows:      make(map[string][]time.Time),
		now:          time.Now,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow 判定并记录一次调用
func (m *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := m.now()
	cutoff := now.Add(-rule.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	// 原地剔除窗口外的时间戳
	stamps := m.windows[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rule.Limit {
		m.windows[key] = kept
		// 最老的记录滑出窗口后才有新额度
		retryAfter := kept[0].Add(rule.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	kept = append(kept, now)
	m.windows[key] = kept
	return Decision{Allowed: true, Remaining: rule.Limit - len(kept)}, nil
}

// Cleanup 删除长时间无记录的 key，防止 map 无限增长
func (m *MemoryLimiter) Cleanup() {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, stamps := range m.windows {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(m.windows, key)
		}
	}
}

// StartJanitor 启动后台清理，随 ctx 取消退出
func (m *MemoryLimiter) StartJanitor(ctx context.Context) {
	if m.cleanupEvery <= 0 {
		return
	}

	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}
