// Package throttle 提供跨副本一致的报警节流
//
// 同一 (异常类型, 严重级别) 在冷却窗口内至多放行一条非紧急报警，
// 由 Redis SetNX + TTL 的单一原子操作保证——这是整个子系统里
// 唯一的强一致性要求；Critical/Emergency 永不被抑制
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// Throttle 分布式报警节流器
type Throttle struct {
	redisClient *redis.Client
	keyPrefix   string
	cooldown    time.Duration
	logger      *zap.Logger
}

// NewThrottle 创建节流器
func NewThrottle(redisClient *redis.Client, keyPrefix string, cooldown time.Duration, logger *zap.Logger) *Throttle {
	return &Throttle{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		cooldown:    cooldown,
		logger:      logger,
	}
}

// throttleKey 构建节流键
func (t *Throttle) throttleKey(anomalyType models.AnomalyType, severity models.Severity) string {
	return fmt.Sprintf("%s%s:%s", t.keyPrefix, anomalyType, severity)
}

// ShouldSend 判断该类报警当前是否可发送
//
// Critical/Emergency：总是放行，同时为该类型所有不高于本级别的键刷新
// 标记，冷却期内随后的同类型低级别报警仍被抑制（放行不依赖刷新成功）；
// 其他级别：对共享状态执行一次"不存在才创建、带冷却过期"的原子操作，
// 只有真正创建键的调用方得到 true；
// 共享状态不可用：非紧急级别失败关闭（抑制），避免故障期间的报警风暴
func (t *Throttle) ShouldSend(ctx context.Context, anomalyType models.AnomalyType, severity models.Severity) bool {
	key := t.throttleKey(anomalyType, severity)

	if severity.BypassesThrottle() {
		pipe := t.redisClient.Pipeline()
		now := time.Now().Unix()
		for s := models.SeverityInfo; s <= severity; s++ {
			pipe.Set(ctx, t.throttleKey(anomalyType, s), now, t.cooldown)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			t.logger.Warn("Failed to refresh throttle markers for bypassing alert",
				zap.String("anomaly_type", string(anomalyType)),
				zap.String("severity", severity.String()),
				zap.Error(err),
			)
		}
		return true
	}

	created, err := t.redisClient.SetNX(ctx, key, time.Now().Unix(), t.cooldown).Result()
	if err != nil {
		// 失败关闭：存储故障期间抑制非紧急报警
		t.logger.Error("Throttle store unavailable, suppressing non-critical alert",
			zap.String("anomaly_type", string(anomalyType)),
			zap.String("severity", severity.String()),
			zap.Error(err),
		)
		return false
	}

	return created
}

// Reset 清除指定类别的节流标记
func (t *Throttle) Reset(ctx context.Context, anomalyType models.AnomalyType, severity models.Severity) error {
	key := t.throttleKey(anomalyType, severity)
	if err := t.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to reset throttle: %w", err)
	}
	return nil
}

// ResetAll 清除全部节流标记
func (t *Throttle) ResetAll(ctx context.Context) error {
	iter := t.redisClient.Scan(ctx, 0, t.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := t.redisClient.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete throttle key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan throttle keys: %w", err)
	}
	return nil
}

// Pending 返回当前处于冷却中的类别及剩余时间（运维观测用）
func (t *Throttle) Pending(ctx context.Context) (map[string]time.Duration, error) {
	pending := make(map[string]time.Duration)

	iter := t.redisClient.Scan(ctx, 0, t.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := t.redisClient.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read throttle TTL: %w", err)
		}
		if ttl > 0 {
			pending[key[len(t.keyPrefix):]] = ttl
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan throttle keys: %w", err)
	}

	return pending, nil
}
