package window

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// RedisStore 基于 Redis List 的滑动窗口存储
//
// 每设备一个 list 键，RPUSH 追加 + LTRIM 截断在同一 pipeline 中执行，
// 保证同设备采样的追加与读回顺序一致
type RedisStore struct {
	redisClient *redis.Client
	keyPrefix   string
	capacity    int
	ttl         time.Duration
	logger      *zap.Logger
}

// NewRedisStore 创建滑动窗口存储
func NewRedisStore(redisClient *redis.Client, keyPrefix string, capacity int, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		capacity:    capacity,
		ttl:         ttl,
		logger:      logger,
	}
}

// windowKey 构建窗口键
func (s *RedisStore) windowKey(deviceID string) string {
	return s.keyPrefix + deviceID
}

// Append 追加采样并截断到容量上限
func (s *RedisStore) Append(ctx context.Context, deviceID string, sample models.Sample) error {
	jsonData, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}

	key := s.windowKey(deviceID)

	// RPUSH + LTRIM + EXPIRE 在同一 pipeline 中执行
	pipe := s.redisClient.TxPipeline()
	pipe.RPush(ctx, key, jsonData)
	pipe.LTrim(ctx, key, int64(-s.capacity), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}

	return nil
}

// ReadWindow 读取当前窗口（最旧在前）
func (s *RedisStore) ReadWindow(ctx context.Context, deviceID string) ([]models.Sample, error) {
	key := s.windowKey(deviceID)

	vals, err := s.redisClient.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read window: %w", err)
	}

	samples := make([]models.Sample, 0, len(vals))
	for _, val := range vals {
		var sample models.Sample
		if err := json.Unmarshal([]byte(val), &sample); err != nil {
			// 损坏的条目跳过，不让单条坏数据阻断整个窗口
			s.logger.Warn("Skipping corrupt window entry",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			continue
		}
		samples = append(samples, sample)
	}

	return samples, nil
}
