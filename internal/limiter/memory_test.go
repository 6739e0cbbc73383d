package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock 可拨动的测试时钟
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func TestMemoryLimiter_WindowLimit(t *testing.T) {
	clock := newTestClock()
	m := NewMemoryLimiter(WithClock(clock.Now))
	ctx := context.Background()
	rule := Rule{Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		d, err := m.Allow(ctx, "client:1:generate", rule)
		if err != nil {
			t.Fatalf("第 %d 次调用出错: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("第 %d 次调用应放行", i+1)
		}
		if d.Remaining != rule.Limit-i-1 {
			t.Errorf("第 %d 次剩余额度 = %d, 期望 %d", i+1, d.Remaining, rule.Limit-i-1)
		}
	}

	d, err := m.Allow(ctx, "client:1:generate", rule)
	if err != nil {
		t.Fatalf("超限调用出错: %v", err)
	}
	if d.Allowed {
		t.Error("第 4 次调用应被拒绝")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, 应在 (0, 1m] 区间", d.RetryAfter)
	}
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	clock := newTestClock()
	m := NewMemoryLimiter(WithClock(clock.Now))
	ctx := context.Background()
	rule := Rule{Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		if d, _ := m.Allow(ctx, "k", rule); !d.Allowed {
			t.Fatalf("第 %d 次调用应放行", i+1)
		}
	}
	if d, _ := m.Allow(ctx, "k", rule); d.Allowed {
		t.Fatal("窗口满后应被拒绝")
	}

	// 窗口滑过后额度恢复
	clock.Advance(61 * time.Second)
	if d, _ := m.Allow(ctx, "k", rule); !d.Allowed {
		t.Error("窗口滑过后应重新放行")
	}
}

func TestMemoryLimiter_KeysIndependent(t *testing.T) {
	clock := newTestClock()
	m := NewMemoryLimiter(WithClock(clock.Now))
	ctx := context.Background()
	rule := Rule{Limit: 1, Window: time.Minute}

	if d, _ := m.Allow(ctx, "client:1:generate", rule); !d.Allowed {
		t.Fatal("client:1 首次调用应放行")
	}
	if d, _ := m.Allow(ctx, "client:1:generate", rule); d.Allowed {
		t.Fatal("client:1 第二次调用应被拒绝")
	}
	if d, _ := m.Allow(ctx, "client:2:generate", rule); !d.Allowed {
		t.Error("client:2 不应受 client:1 影响")
	}
}

func TestMemoryLimiter_ZeroRuleAlwaysAllows(t *testing.T) {
	m := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d, err := m.Allow(ctx, "k", Rule{})
		if err != nil || !d.Allowed {
			t.Fatal("空规则应始终放行")
		}
	}
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	clock := newTestClock()
	m := NewMemoryLimiter(WithClock(clock.Now), WithIdleTTL(5*time.Minute))
	ctx := context.Background()
	rule := Rule{Limit: 10, Window: time.Minute}

	m.Allow(ctx, "stale", rule)
	clock.Advance(10 * time.Minute)
	m.Allow(ctx, "fresh", rule)

	m.Cleanup()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.windows["stale"]; ok {
		t.Error("过期 key 应被清理")
	}
	if _, ok := m.windows["fresh"]; !ok {
		t.Error("活跃 key 不应被清理")
	}
}

// ==================== 混合限流器 ====================

// flakyLimiter 按开关返回错误的假限流器
type flakyLimiter struct {
	fail     bool
	calls    int
	decision Decision
}

func (f *flakyLimiter) Allow(_ context.Context, _ string, _ Rule) (Decision, error) {
	f.calls++
	if f.fail {
		return Decision{}, errors.New("connection refused")
	}
	return f.decision, nil
}

func TestHybridLimiter_PrefersRedis(t *testing.T) {
	redis := &flakyLimiter{decision: Decision{Allowed: true, Remaining: 7}}
	memory := NewMemoryLimiter()
	h := NewHybridLimiter(redis, memory)

	d, err := h.Allow(context.Background(), "k", Rule{Limit: 10, Window: time.Minute})
	if err != nil {
		t.Fatalf("调用出错: %v", err)
	}
	if !d.Allowed || d.Remaining != 7 {
		t.Errorf("应返回 Redis 的判定结果, got %+v", d)
	}
	if redis.calls != 1 {
		t.Errorf("Redis 应被调用 1 次, got %d", redis.calls)
	}
}

func TestHybridLimiter_FallsBackToMemory(t *testing.T) {
	redis := &flakyLimiter{fail: true}
	memory := NewMemoryLimiter()
	h := NewHybridLimiter(redis, memory)
	ctx := context.Background()
	rule := Rule{Limit: 1, Window: time.Minute}

	d, err := h.Allow(ctx, "k", rule)
	if err != nil {
		t.Fatalf("降级后不应返回错误: %v", err)
	}
	if !d.Allowed {
		t.Error("降级到内存后首次调用应放行")
	}

	// 冷却期内不再探测 Redis
	h.Allow(ctx, "k", rule)
	if redis.calls != 1 {
		t.Errorf("冷却期内 Redis 调用次数 = %d, 期望 1", redis.calls)
	}

	// 内存窗口依然生效
	if d, _ := h.Allow(ctx, "k", rule); d.Allowed {
		t.Error("内存窗口满后应被拒绝")
	}
}

func TestHybridLimiter_NilRedis(t *testing.T) {
	h := NewHybridLimiter(nil, NewMemoryLimiter())

	d, err := h.Allow(context.Background(), "k", Rule{Limit: 5, Window: time.Minute})
	if err != nil {
		t.Fatalf("纯内存模式出错: %v", err)
	}
	if !d.Allowed {
		t.Error("纯内存模式应放行")
	}
}
