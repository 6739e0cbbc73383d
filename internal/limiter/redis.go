package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ==================== Redis 滑动窗口限流器 ====================

// RedisLimiter 基于有序集合的滑动窗口限流器
// member 为唯一ID，score 为调用时间戳（纳秒），多实例共享同一份窗口
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// RedisOption Redis 限流器可选配置
type RedisOption func(*RedisLimiter)

// WithPrefix 设置 key 前缀
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisLimiter) { r.prefix = prefix }
}

// WithRedisClock 注入时钟，测试用
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisLimiter) { r.now = now }
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(rdb *redis.Client, opts ...RedisOption) *RedisLimiter {
	r := &RedisLimiter{
		rdb:    rdb,
		prefix: "ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow 判定并记录一次调用
// 流程：清理窗口外成员 -> 写入本次调用 -> 统计窗口内数量 -> 超限则回滚本次写入
func (r *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := r.now()
	redisKey := r.prefix + ":" + key
	cutoff := strconv.FormatInt(now.Add(-rule.Window).UnixNano(), 10)
	member := uuid.NewString()

	pipe := r.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rule.Window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("限流窗口写入失败: %w", err)
	}

	count := int(countCmd.Val())
	if count <= rule.Limit {
		return Decision{Allowed: true, Remaining: rule.Limit - count}, nil
	}

	// 超限：撤销本次写入，并用最老成员算出重试时间
	retryAfter := rule.Window
	if err := r.rdb.ZRem(ctx, redisKey, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("限流窗口回滚失败: %w", err)
	}

	oldest, err := r.rdb.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err == nil && len(oldest) > 0 {
		oldestAt := time.Unix(0, int64(oldest[0].Score))
		retryAfter = oldestAt.Add(rule.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
}
