package limiter

import (
	"context"
	"time"
)

// ==================== 限流核心类型 ====================

// Rule 滑动窗口限流规则
type Rule struct {
	Limit  int           // 窗口内允许的最大次数
	Window time.Duration // 窗口长度
}

// Decision 单次限流判定结果
type Decision struct {
	Allowed    bool          // 是否放行
	Remaining  int           // 窗口内剩余额度
	RetryAfter time.Duration // 拒绝时建议的等待时间，放行时为 0
}

// Limiter 滑动窗口限流器
// key 由调用方构造，如 client:3:generate、client:3:import
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

// ==================== 常用规则 ====================

// 各场景默认规则，可被环境变量覆盖（见 cmd/main.go）
var (
	// RuleGenerate 每客户生成任务入队限流
	RuleGenerate = Rule{Limit: 30, Window: time.Minute}

	// RuleAICall 全局 AI 调用限流，贴着上游配额走
	RuleAICall = Rule{Limit: 10, Window: time.Minute}

	// RuleImport 每客户 WooCommerce 导入限流
	RuleImport = Rule{Limit: 2, Window: time.Hour}
)
