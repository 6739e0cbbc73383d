package middleware

import (
	"testing"
	"time"
)

func TestCooldownLimiter_Check(t *testing.T) {
	limiter := &CooldownLimiter{}
	key := ImportCooldownKey(1)

	// 首次执行放行
	result := limiter.Check(key, time.Minute)
	if !result.Allowed {
		t.Fatal("首次执行应放行")
	}

	// 冷却期内拒绝
	result = limiter.Check(key, time.Minute)
	if result.Allowed {
		t.Fatal("冷却期内应拒绝")
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, 应在 (0, 1m] 内", result.RetryAfter)
	}
}

func TestCooldownLimiter_KeysIndependent(t *testing.T) {
	limiter := &CooldownLimiter{}

	if result := limiter.Check(ImportCooldownKey(1), time.Minute); !result.Allowed {
		t.Fatal("客户 1 首次执行应放行")
	}
	if result := limiter.Check(ImportCooldownKey(2), time.Minute); !result.Allowed {
		t.Fatal("客户 2 不应受客户 1 的冷却影响")
	}
}

func TestCooldownLimiter_CheckOnly(t *testing.T) {
	limiter := &CooldownLimiter{}
	key := ImportCooldownKey(3)

	// CheckOnly 不记录执行时间
	if result := limiter.CheckOnly(key, time.Minute); !result.Allowed {
		t.Fatal("未执行过的 key CheckOnly 应放行")
	}
	if result := limiter.Check(key, time.Minute); !result.Allowed {
		t.Fatal("CheckOnly 不应占用冷却窗口")
	}
	if result := limiter.CheckOnly(key, time.Minute); result.Allowed {
		t.Fatal("Check 之后 CheckOnly 应看到冷却")
	}
}

func TestCooldownLimiter_Reset(t *testing.T) {
	limiter := &CooldownLimiter{}
	key := ImportCooldownKey(4)

	limiter.Check(key, time.Hour)
	if result := limiter.Check(key, time.Hour); result.Allowed {
		t.Fatal("冷却期内应拒绝")
	}

	limiter.Reset(key)
	if result := limiter.Check(key, time.Hour); !result.Allowed {
		t.Fatal("Reset 后应立即放行")
	}
}
