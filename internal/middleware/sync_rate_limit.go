package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ==================== 冷却限流器 ====================

// CooldownLimiter 冷却式限流器
// 与滑动窗口不同，这里只关心"距离上次执行是否超过冷却期"，
// 用于手动触发的 WooCommerce 导入等重操作
type CooldownLimiter struct {
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// 全局限流器实例
var globalCooldown = &CooldownLimiter{}

// GetCooldownLimiter 获取全局冷却限流器
func GetCooldownLimiter() *CooldownLimiter {
	return globalCooldown
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时顺带记录执行时间
// key: 限流键，如 "client:3:import"
func (r *CooldownLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// CheckOnly 仅检查，不更新时间
func (r *CooldownLimiter) CheckOnly(key string, interval time.Duration) CheckResult {
	actual, ok := r.locks.Load(key)
	if !ok {
		return CheckResult{Allowed: true}
	}

	entry := actual.(*lockEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	elapsed := time.Since(entry.lastTime)
	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的冷却（管理员使用）
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key 生成工具 ====================

// ImportCooldownKey 生成客户导入冷却 Key
func ImportCooldownKey(clientID int64) string {
	return fmt.Sprintf("client:%d:import", clientID)
}

// DefaultImportCooldown 手动导入默认冷却时间
const DefaultImportCooldown = 10 * time.Minute
