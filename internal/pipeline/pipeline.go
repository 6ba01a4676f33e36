// Package pipeline 将需要报警的预测结果转化为已投递的报警
//
// 流程：主异常选择 → 节流裁决 → 通道选择 → 说明补充 → 构建报警 →
// 历史记录 → 并发投递；单个通道的失败只记录、不外溢
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/explain"
	"github.com/9046balaji/Heart-sub003/internal/models"
	"github.com/9046balaji/Heart-sub003/internal/throttle"
)

// Handler 报警投递通道处理器
type Handler interface {
	ID() models.Channel
	Deliver(ctx context.Context, alert *models.Alert) error
}

// Pipeline 报警管道
type Pipeline struct {
	throttle        *throttle.Throttle
	generator       explain.Generator // 可为 nil，缺失时直接使用预置文案
	explainTimeout  time.Duration
	deliveryTimeout time.Duration
	history         *History
	pool            *WorkerPool
	logger          *zap.Logger

	mu       sync.RWMutex
	handlers map[models.Channel]Handler
}

// Options 管道配置参数
type Options struct {
	HistorySize     int
	WorkerPoolSize  int
	DeliveryTimeout time.Duration
	ExplainTimeout  time.Duration
}

// NewPipeline 创建报警管道
func NewPipeline(thr *throttle.Throttle, generator explain.Generator, opts Options, logger *zap.Logger) *Pipeline {
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	if opts.ExplainTimeout <= 0 {
		opts.ExplainTimeout = 2 * time.Second
	}

	return &Pipeline{
		throttle:        thr,
		generator:       generator,
		explainTimeout:  opts.ExplainTimeout,
		deliveryTimeout: opts.DeliveryTimeout,
		history:         NewHistory(opts.HistorySize),
		pool:            NewWorkerPool(opts.WorkerPoolSize),
		logger:          logger,
	}
}

// RegisterHandler 注册通道处理器，同一通道后注册者覆盖先注册者
func (p *Pipeline) RegisterHandler(handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handlers == nil {
		p.handlers = make(map[models.Channel]Handler)
	}
	p.handlers[handler.ID()] = handler
}

// ProcessPrediction 处理一条预测结果
//
// 不需要报警或被节流抑制时返回 (nil, nil)；返回的报警不受
// 任何单通道投递结果影响
func (p *Pipeline) ProcessPrediction(ctx context.Context, result *models.PredictionResult) (*models.Alert, error) {
	if result == nil {
		return nil, fmt.Errorf("prediction result is nil")
	}
	if !result.RequiresAlert {
		return nil, nil
	}

	primary := p.selectPrimary(result)

	if !p.throttle.ShouldSend(ctx, primary.Type, primary.Severity) {
		p.logger.Info("Alert suppressed by throttle",
			zap.String("device_id", result.DeviceID),
			zap.String("anomaly_type", string(primary.Type)),
			zap.String("severity", primary.Severity.String()),
		)
		return nil, nil
	}

	channels := channelsForSeverity(primary.Severity)

	alert := &models.Alert{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		DeviceID:       result.DeviceID,
		AnomalyType:    primary.Type,
		Severity:       primary.Severity,
		RiskScore:      result.RiskScore,
		Title:          fmt.Sprintf("%s: %s", titleForSeverity(primary.Severity), primary.Type),
		Message:        primary.Message,
		Recommendation: primary.Recommendation,
		Channels:       channels,
	}

	alert.Explanation = explain.Explain(ctx, p.generator, p.explainTimeout, alert, p.logger)

	p.history.Append(alert)

	p.dispatch(alert, channels)

	return alert, nil
}

// selectPrimary 选择主异常：最高级别的规则异常，规则静默时由
// 融合风险等级合成一条模式异常
func (p *Pipeline) selectPrimary(result *models.PredictionResult) models.Anomaly {
	if top := models.MaxSeverityAnomaly(result.Anomalies); top != nil {
		return *top
	}

	severity := models.SeverityInfo
	switch result.RiskLevel {
	case models.RiskCritical:
		severity = models.SeverityCritical
	case models.RiskHigh:
		severity = models.SeverityWarning
	}

	return models.Anomaly{
		Type:           models.AnomalyPattern,
		Severity:       severity,
		Confidence:     result.Model.Confidence,
		Observed:       result.Model.AnomalyScore,
		Threshold:      0.5,
		Message:        fmt.Sprintf("Statistical model detected an unusual vital-sign pattern (risk %.2f)", result.RiskScore),
		Recommendation: "Review recent readings and monitor for recurring deviations",
	}
}

// dispatch 将报警并发投递到各选定通道
//
// 每条投递在工作池上独立执行并持有自己的超时，互不等待；
// 结果只记录日志，不向调用方传播
func (p *Pipeline) dispatch(alert *models.Alert, channels []models.Channel) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range channels {
		handler, ok := p.handlers[ch]
		if !ok {
			p.logger.Warn("No handler registered for channel",
				zap.String("channel", string(ch)),
				zap.String("alert_id", alert.ID),
			)
			continue
		}

		h := handler
		submitted := p.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), p.deliveryTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- h.Deliver(ctx, alert)
			}()

			select {
			case err := <-done:
				if err != nil {
					p.logger.Error("Channel delivery failed",
						zap.String("channel", string(h.ID())),
						zap.String("alert_id", alert.ID),
						zap.Error(err),
					)
					return
				}
				p.logger.Debug("Channel delivery succeeded",
					zap.String("channel", string(h.ID())),
					zap.String("alert_id", alert.ID),
				)
			case <-ctx.Done():
				p.logger.Error("Channel delivery timed out",
					zap.String("channel", string(h.ID())),
					zap.String("alert_id", alert.ID),
					zap.Duration("timeout", p.deliveryTimeout),
				)
			}
		})
		if !submitted {
			// 工作池满或已停止：按投递失败记录，不阻塞其余通道
			p.logger.Error("Channel delivery dropped, worker pool saturated or stopped",
				zap.String("channel", string(ch)),
				zap.String("alert_id", alert.ID),
			)
		}
	}
}

// Acknowledge 按 ID 确认一条报警
func (p *Pipeline) Acknowledge(id string) bool {
	return p.history.Acknowledge(id)
}

// Recent 返回最近 n 条报警
func (p *Pipeline) Recent(n int) []*models.Alert {
	return p.history.Recent(n)
}

// Stats 返回当前报警历史统计
func (p *Pipeline) Stats() models.AlertStats {
	return p.history.Stats()
}

// Stop 停止工作池，等待在途投递完成
func (p *Pipeline) Stop() {
	p.pool.Stop()
}

// channelsForSeverity 按严重级别选择投递通道集合
//
// 级别逐级叠加：info 仅静默日志；warning 加应用内与实时流；
// critical 加推送；emergency 加紧急通道
func channelsForSeverity(severity models.Severity) []models.Channel {
	switch severity {
	case models.SeverityEmergency:
		return []models.Channel{
			models.ChannelLog, models.ChannelInApp, models.ChannelRealtime,
			models.ChannelPush, models.ChannelUrgent,
		}
	case models.SeverityCritical:
		return []models.Channel{
			models.ChannelLog, models.ChannelInApp, models.ChannelRealtime,
			models.ChannelPush,
		}
	case models.SeverityWarning:
		return []models.Channel{
			models.ChannelLog, models.ChannelInApp, models.ChannelRealtime,
		}
	default:
		return []models.Channel{models.ChannelLog}
	}
}

func titleForSeverity(severity models.Severity) string {
	switch severity {
	case models.SeverityEmergency:
		return "Emergency"
	case models.SeverityCritical:
		return "Critical"
	case models.SeverityWarning:
		return "Warning"
	default:
		return "Notice"
	}
}
