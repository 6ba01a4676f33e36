// Package notify 提供各投递通道的处理器实现
//
// 处理器按严重级别被管道选择注册：静默日志 → 应用内/实时流 →
// 推送通知 → 紧急（短信级）通道
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// LogHandler 静默日志通道（最低档位，只记录不打扰）
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler 创建日志通道处理器
func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) ID() models.Channel {
	return models.ChannelLog
}

func (h *LogHandler) Deliver(ctx context.Context, alert *models.Alert) error {
	h.logger.Info("Alert recorded",
		zap.String("alert_id", alert.ID),
		zap.String("device_id", alert.DeviceID),
		zap.String("anomaly_type", string(alert.AnomalyType)),
		zap.String("severity", alert.Severity.String()),
		zap.Float64("risk_score", alert.RiskScore),
	)
	return nil
}

// InAppHandler 应用内报警卡片通道（写入带 TTL 的 Redis 缓存键）
type InAppHandler struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
	logger      *zap.Logger
}

// NewInAppHandler 创建应用内通道处理器
func NewInAppHandler(redisClient *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *InAppHandler {
	return &InAppHandler{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		ttl:         ttl,
		logger:      logger,
	}
}

func (h *InAppHandler) ID() models.Channel {
	return models.ChannelInApp
}

func (h *InAppHandler) Deliver(ctx context.Context, alert *models.Alert) error {
	key := fmt.Sprintf("%s%s:alerts", h.keyPrefix, alert.DeviceID)

	jsonData, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := h.redisClient.Set(ctx, key, jsonData, h.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in-app alert cache: %w", err)
	}

	return nil
}

// StreamHandler 实时推送流通道（XADD 到共享报警 stream）
type StreamHandler struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewStreamHandler 创建实时流通道处理器
func NewStreamHandler(redisClient *redis.Client, stream string, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

func (h *StreamHandler) ID() models.Channel {
	return models.ChannelRealtime
}

func (h *StreamHandler) Deliver(ctx context.Context, alert *models.Alert) error {
	jsonData, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	err = h.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: h.stream,
		Values: map[string]interface{}{
			"data":      string(jsonData),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish alert to stream: %w", err)
	}

	return nil
}

// Publisher MQTT 发布接口（便于测试替换真实 broker 连接）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// PushHandler 推送通知通道（按设备主题发布到 MQTT）
type PushHandler struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewPushHandler 创建推送通道处理器
func NewPushHandler(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *PushHandler {
	return &PushHandler{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

func (h *PushHandler) ID() models.Channel {
	return models.ChannelPush
}

func (h *PushHandler) Deliver(ctx context.Context, alert *models.Alert) error {
	jsonData, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := h.topicPrefix + alert.DeviceID
	if err := h.publisher.Publish(topic, h.qos, false, jsonData); err != nil {
		return fmt.Errorf("failed to publish push notification: %w", err)
	}

	return nil
}

// WebhookHandler 紧急通道（短信级 webhook，最高档位）
type WebhookHandler struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewWebhookHandler 创建紧急通道处理器
func NewWebhookHandler(webhookURL string, timeout time.Duration, logger *zap.Logger) *WebhookHandler {
	client := resty.New().
		SetBaseURL(webhookURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &WebhookHandler{
		httpClient: client,
		logger:     logger,
	}
}

func (h *WebhookHandler) ID() models.Channel {
	return models.ChannelUrgent
}

func (h *WebhookHandler) Deliver(ctx context.Context, alert *models.Alert) error {
	resp, err := h.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post("")
	if err != nil {
		return fmt.Errorf("failed to call urgent webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("urgent webhook returned status %d", resp.StatusCode())
	}
	return nil
}
