// Package explain 对接外部文本生成协作方，为报警补充自然语言说明
//
// 生成器缺失、超时或出错时立即使用按 (异常类型, 级别) 预置的文案，
// 管道不等待、不失败
package explain

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// Request 生成请求
type Request struct {
	SystemPrompt string  `json:"system_prompt"`
	UserPrompt   string  `json:"user_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

// Result 生成结果
type Result struct {
	Content string `json:"content"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Generator 说明文本生成器接口
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// HTTPGenerator 基于 HTTP 的生成器客户端
type HTTPGenerator struct {
	httpClient  *resty.Client
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewHTTPGenerator 创建生成器客户端
func NewHTTPGenerator(baseURL string, timeout time.Duration, temperature float64, maxTokens int, logger *zap.Logger) *HTTPGenerator {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPGenerator{
		httpClient:  client,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// Generate 调用生成服务
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Temperature == 0 {
		req.Temperature = g.temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = g.maxTokens
	}

	var result Result
	resp, err := g.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/generate")

	if err != nil {
		return nil, fmt.Errorf("failed to call explanation generator: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("explanation generator returned status %d", resp.StatusCode())
	}

	if !result.Success {
		return nil, fmt.Errorf("explanation generator error: %s", result.Error)
	}

	return &result, nil
}

// Explain 为报警生成说明文本；任何失败路径都返回预置文案
func Explain(ctx context.Context, generator Generator, timeout time.Duration, alert *models.Alert, logger *zap.Logger) string {
	fallback := FallbackText(alert.AnomalyType, alert.Severity)
	if generator == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := generator.Generate(ctx, Request{
		SystemPrompt: "You are a health monitoring assistant. Explain the alert in plain language, in two sentences, without diagnosing.",
		UserPrompt: fmt.Sprintf("Alert: %s (severity %s). %s Risk score %.2f.",
			alert.AnomalyType, alert.Severity, alert.Message, alert.RiskScore),
	})
	if err != nil {
		logger.Warn("Explanation generator unavailable, using fallback text",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		return fallback
	}

	if result.Content == "" {
		return fallback
	}
	return result.Content
}

// FallbackText 按 (异常类型, 级别) 预置的说明文案
func FallbackText(anomalyType models.AnomalyType, severity models.Severity) string {
	urgent := severity >= models.SeverityCritical

	switch anomalyType {
	case models.AnomalyTachycardia, models.AnomalyRestingTachycardia:
		if urgent {
			return "Your heart rate is significantly above the safe range. Please stop any activity, sit down, and seek medical help if it does not come down within a few minutes."
		}
		return "Your heart rate is higher than usual. Take a break, breathe slowly, and keep an eye on your readings."
	case models.AnomalyBradycardia:
		if urgent {
			return "Your heart rate is significantly below the safe range. Please contact a healthcare provider right away."
		}
		return "Your heart rate is lower than usual. If you feel dizzy or weak, contact a healthcare provider."
	case models.AnomalyHypoxemia:
		if urgent {
			return "Your blood oxygen level is critically low. Please seek medical attention immediately."
		}
		return "Your blood oxygen level is below normal. Rest, breathe deeply, and re-check in a few minutes."
	case models.AnomalyLowHRV, models.AnomalyHighHRV:
		return "Your heart rate variability is outside its usual range. This can reflect stress, fatigue, or an irregular rhythm; monitor your readings."
	case models.AnomalyHRSpike, models.AnomalyHRDrop:
		return "Your heart rate changed unusually fast. Sit down, rest, and watch for symptoms such as dizziness or chest discomfort."
	default:
		if urgent {
			return "An unusual pattern was detected in your vital signs. Please check how you are feeling and seek help if unwell."
		}
		return "An unusual pattern was detected in your vital signs. Keep monitoring your readings."
	}
}
