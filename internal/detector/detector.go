// Package detector 编排窗口读取、特征提取、规则与模型评估和风险融合
package detector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/features"
	"github.com/9046balaji/Heart-sub003/internal/models"
	"github.com/9046balaji/Heart-sub003/internal/outlier"
	"github.com/9046balaji/Heart-sub003/internal/rules"
	"github.com/9046balaji/Heart-sub003/internal/window"
)

// Detector 异常检测器
//
// 自身不保存任何每设备状态：每次调用都把新采样写入共享窗口并整窗读回，
// 任意副本对同一设备历史产出相同结果（水平扩展与节流一致性的前提）
type Detector struct {
	windowStore window.Store
	extractor   *features.Extractor
	evaluator   *rules.Evaluator
	model       outlier.Model
	fusion      FusionConfig
	logger      *zap.Logger
}

// NewDetector 创建检测器
func NewDetector(
	windowStore window.Store,
	extractor *features.Extractor,
	evaluator *rules.Evaluator,
	model outlier.Model,
	fusion FusionConfig,
	logger *zap.Logger,
) *Detector {
	return &Detector{
		windowStore: windowStore,
		extractor:   extractor,
		evaluator:   evaluator,
		model:       model,
		fusion:      fusion,
		logger:      logger,
	}
}

// Analyze 分析一条新采样，返回聚合预测快照
func (d *Detector) Analyze(ctx context.Context, deviceID string, hr, spo2 float64, steps int, ibiMs float64) (*models.PredictionResult, error) {
	sample := models.Sample{
		HeartRate:   hr,
		SpO2:        spo2,
		StepCount:   steps,
		InterBeatMs: ibiMs,
		Timestamp:   time.Now(),
	}

	// 1. 追加采样并读回当前窗口
	if err := d.windowStore.Append(ctx, deviceID, sample); err != nil {
		// 窗口不可用时降级为对原始采样的紧急快速检查，而非无结果
		d.logger.Error("Failed to append sample, falling back to quick check",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return d.quickCheckResult(deviceID, sample), nil
	}

	samples, err := d.windowStore.ReadWindow(ctx, deviceID)
	if err != nil {
		d.logger.Error("Failed to read window, falling back to quick check",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return d.quickCheckResult(deviceID, sample), nil
	}

	// 2. 采样不足 → 仅紧急级别阈值检查
	fv, err := d.extractor.Compute(samples)
	if err != nil {
		return d.quickCheckResult(deviceID, sample), nil
	}

	// 3. 规则与模型无共享可变状态，可并发执行
	var (
		wg        sync.WaitGroup
		anomalies []models.Anomaly
		modelPred models.ModelPrediction
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		anomalies = d.evaluator.Analyze(fv)
	}()
	go func() {
		defer wg.Done()
		pred, err := d.model.Predict(fv)
		if err != nil {
			// 模型失败只降级为无信号，绝不让整次分析失败
			d.logger.Warn("Outlier model unavailable, continuing rule-only",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			pred = models.NoSignal()
		}
		modelPred = pred
	}()
	wg.Wait()

	// 4-6. 融合
	return d.buildResult(deviceID, anomalies, modelPred, models.DataStateOK), nil
}

// quickCheckResult 采样不足或窗口不可用时的降级结果
func (d *Detector) quickCheckResult(deviceID string, sample models.Sample) *models.PredictionResult {
	anomalies := d.evaluator.QuickEmergencyCheck(sample)
	result := d.buildResult(deviceID, anomalies, models.NoSignal(), models.DataStateInsufficient)
	return result
}

// buildResult 融合两路信号并组装快照
func (d *Detector) buildResult(deviceID string, anomalies []models.Anomaly, modelPred models.ModelPrediction, dataState string) *models.PredictionResult {
	risk := d.fusion.FuseRisk(anomalies, modelPred)

	result := &models.PredictionResult{
		DeviceID:      deviceID,
		Timestamp:     time.Now(),
		Anomalies:     anomalies,
		Model:         modelPred,
		RiskScore:     risk,
		RiskLevel:     d.fusion.RiskLevel(risk),
		RequiresAlert: d.fusion.RequiresAlert(risk, anomalies),
		DataState:     dataState,
	}

	if top := models.MaxSeverityAnomaly(anomalies); top != nil {
		result.AlertMessage = top.Message
	}

	return result
}
