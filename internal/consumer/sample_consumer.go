// Package consumer 订阅设备采样消息并驱动检测分析
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
	"github.com/9046balaji/Heart-sub003/internal/mqtt"
)

// Analyzer 采样分析入口
type Analyzer interface {
	HandleSample(ctx context.Context, deviceID string, hr, spo2 float64, steps int, ibiMs float64) (*models.PredictionResult, *models.Alert, error)
}

// Subscriber 采样消息订阅端
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// samplePayload 设备上报的采样消息体
type samplePayload struct {
	HeartRate   float64 `json:"heart_rate"`
	SpO2        float64 `json:"spo2"`
	StepCount   int     `json:"step_count"`
	InterBeatMs float64 `json:"inter_beat_interval_ms"`
}

// SampleConsumer 采样消息消费者
//
// 主题末段为设备 ID，如 vitalguard/samples/device-123；
// 单条消息处理失败只记录，不中断订阅
type SampleConsumer struct {
	subscriber Subscriber
	analyzer   Analyzer
	topic      string
	qos        byte
	logger     *zap.Logger

	ctx context.Context
}

// NewSampleConsumer 创建采样消费者
func NewSampleConsumer(subscriber Subscriber, analyzer Analyzer, topic string, qos byte, logger *zap.Logger) *SampleConsumer {
	return &SampleConsumer{
		subscriber: subscriber,
		analyzer:   analyzer,
		topic:      topic,
		qos:        qos,
		logger:     logger,
	}
}

// Start 订阅采样主题
func (c *SampleConsumer) Start(ctx context.Context) error {
	c.ctx = ctx

	if err := c.subscriber.Subscribe(c.topic, c.qos, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to sample topic: %w", err)
	}

	c.logger.Info("Sample consumer started",
		zap.String("topic", c.topic),
	)
	return nil
}

// HandleMessage 处理一条采样消息
func (c *SampleConsumer) HandleMessage(topic string, payload []byte) error {
	deviceID := deviceIDFromTopic(topic)
	if deviceID == "" {
		return fmt.Errorf("missing device id in topic %s", topic)
	}

	var sample samplePayload
	if err := json.Unmarshal(payload, &sample); err != nil {
		return fmt.Errorf("failed to unmarshal sample payload: %w", err)
	}

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	result, alert, err := c.analyzer.HandleSample(ctx, deviceID, sample.HeartRate, sample.SpO2, sample.StepCount, sample.InterBeatMs)
	if err != nil {
		return fmt.Errorf("failed to analyze sample from %s: %w", deviceID, err)
	}

	if alert != nil {
		c.logger.Info("Sample produced alert",
			zap.String("device_id", deviceID),
			zap.String("alert_id", alert.ID),
			zap.String("severity", alert.Severity.String()),
		)
	} else {
		c.logger.Debug("Sample analyzed",
			zap.String("device_id", deviceID),
			zap.String("risk_level", string(result.RiskLevel)),
		)
	}

	return nil
}

// deviceIDFromTopic 取主题末段作为设备 ID
func deviceIDFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}
