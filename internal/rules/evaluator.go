// Package rules 提供确定性的阈值异常分类
//
// 各检查相互独立、与顺序无关，可在每条采样上调用；
// 评估器无副作用、永不失败，是整条管道中唯一保证成功的环节
package rules

import (
	"fmt"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// Evaluator 规则评估器
type Evaluator struct {
	thresholds       Thresholds
	sampleRatePerMin float64 // 每分钟采样数（把趋势斜率换算为 BPM/分钟）
}

// NewEvaluator 创建规则评估器
func NewEvaluator(thresholds Thresholds, sampleRatePerMin float64) *Evaluator {
	if sampleRatePerMin <= 0 {
		sampleRatePerMin = 12
	}
	return &Evaluator{
		thresholds:       thresholds,
		sampleRatePerMin: sampleRatePerMin,
	}
}

// Analyze 对特征向量运行全部独立检查，返回触发的异常列表
func (e *Evaluator) Analyze(fv *models.FeatureVector) []models.Anomaly {
	var anomalies []models.Anomaly

	anomalies = appendIfFired(anomalies, e.checkTachycardia(fv))
	anomalies = appendIfFired(anomalies, e.checkBradycardia(fv))
	anomalies = appendIfFired(anomalies, e.checkHypoxemia(fv))
	anomalies = appendIfFired(anomalies, e.checkHRV(fv))
	anomalies = appendIfFired(anomalies, e.checkRateOfChange(fv))
	anomalies = appendIfFired(anomalies, e.checkRestingTachycardia(fv))

	return anomalies
}

// OverallStatus 返回最高级别异常的状态（空列表为 Normal），幂等
func (e *Evaluator) OverallStatus(anomalies []models.Anomaly) models.Severity {
	top := models.MaxSeverityAnomaly(anomalies)
	if top == nil {
		return models.SeverityNormal
	}
	return top.Severity
}

// QuickEmergencyCheck 采样不足时对原始采样做仅紧急级别的阈值检查
func (e *Evaluator) QuickEmergencyCheck(sample models.Sample) []models.Anomaly {
	var anomalies []models.Anomaly

	if sample.HeartRate >= e.thresholds.EmergencyHighHR {
		anomalies = append(anomalies, models.Anomaly{
			Type:           models.AnomalyTachycardia,
			Severity:       models.SeverityEmergency,
			Confidence:     0.95,
			Observed:       sample.HeartRate,
			Threshold:      e.thresholds.EmergencyHighHR,
			Message:        fmt.Sprintf("Heart rate %.0f BPM at or above emergency threshold %.0f", sample.HeartRate, e.thresholds.EmergencyHighHR),
			Recommendation: "Seek immediate medical attention",
		})
	}

	if sample.HeartRate > 0 && sample.HeartRate <= e.thresholds.EmergencyLowHR {
		anomalies = append(anomalies, models.Anomaly{
			Type:           models.AnomalyBradycardia,
			Severity:       models.SeverityEmergency,
			Confidence:     0.95,
			Observed:       sample.HeartRate,
			Threshold:      e.thresholds.EmergencyLowHR,
			Message:        fmt.Sprintf("Heart rate %.0f BPM at or below emergency threshold %.0f", sample.HeartRate, e.thresholds.EmergencyLowHR),
			Recommendation: "Seek immediate medical attention",
		})
	}

	if sample.SpO2 > 0 && sample.SpO2 <= e.thresholds.EmergencyLowSpO2 {
		anomalies = append(anomalies, models.Anomaly{
			Type:           models.AnomalyHypoxemia,
			Severity:       models.SeverityEmergency,
			Confidence:     0.95,
			Observed:       sample.SpO2,
			Threshold:      e.thresholds.EmergencyLowSpO2,
			Message:        fmt.Sprintf("Blood oxygen %.0f%% at or below emergency threshold %.0f%%", sample.SpO2, e.thresholds.EmergencyLowSpO2),
			Recommendation: "Seek immediate medical attention",
		})
	}

	return anomalies
}

// checkTachycardia 心动过速检查（Warning / Critical / Emergency 三档）
func (e *Evaluator) checkTachycardia(fv *models.FeatureVector) *models.Anomaly {
	hr := fv.CurrentHR

	if hr >= e.thresholds.EmergencyHighHR {
		return &models.Anomaly{
			Type:           models.AnomalyTachycardia,
			Severity:       models.SeverityEmergency,
			Confidence:     0.95,
			Observed:       hr,
			Threshold:      e.thresholds.EmergencyHighHR,
			Message:        fmt.Sprintf("Heart rate %.0f BPM at or above emergency threshold %.0f", hr, e.thresholds.EmergencyHighHR),
			Recommendation: "Seek immediate medical attention",
		}
	}

	if hr >= e.thresholds.TachycardiaCritical {
		return &models.Anomaly{
			Type:           models.AnomalyTachycardia,
			Severity:       models.SeverityCritical,
			Confidence:     0.9,
			Observed:       hr,
			Threshold:      e.thresholds.TachycardiaCritical,
			Message:        fmt.Sprintf("Heart rate %.0f BPM exceeds critical threshold %.0f", hr, e.thresholds.TachycardiaCritical),
			Recommendation: "Stop activity and contact a healthcare provider",
		}
	}

	if hr > e.thresholds.TachycardiaWarning {
		return &models.Anomaly{
			Type:           models.AnomalyTachycardia,
			Severity:       models.SeverityWarning,
			Confidence:     0.75,
			Observed:       hr,
			Threshold:      e.thresholds.TachycardiaWarning,
			Message:        fmt.Sprintf("Heart rate %.0f BPM above warning threshold %.0f", hr, e.thresholds.TachycardiaWarning),
			Recommendation: "Rest and monitor your heart rate",
		}
	}

	return nil
}

// checkBradycardia 心动过缓检查（Warning / Critical / Emergency 三档）
func (e *Evaluator) checkBradycardia(fv *models.FeatureVector) *models.Anomaly {
	hr := fv.CurrentHR
	if hr <= 0 {
		return nil
	}

	if hr <= e.thresholds.EmergencyLowHR {
		return &models.Anomaly{
			Type:           models.AnomalyBradycardia,
			Severity:       models.SeverityEmergency,
			Confidence:     0.95,
			Observed:       hr,
			Threshold:      e.thresholds.EmergencyLowHR,
			Message:        fmt.Sprintf("Heart rate %.0f BPM at or below emergency threshold %.0f", hr, e.thresholds.EmergencyLowHR),
			Recommendation: "Seek immediate medical attention",
		}
	}

	if hr < e.thresholds.BradycardiaCritical {
		return &models.Anomaly{
			Type:           models.AnomalyBradycardia,
			Severity:       models.SeverityCritical,
			Confidence:     0.9,
			Observed:       hr,
			Threshold:      e.thresholds.BradycardiaCritical,
			Message:        fmt.Sprintf("Heart rate %.0f BPM below critical threshold %.0f", hr, e.thresholds.BradycardiaCritical),
			Recommendation: "Contact a healthcare provider promptly",
		}
	}

	if hr < e.thresholds.BradycardiaWarning {
		return &models.Anomaly{
			Type:           models.AnomalyBradycardia,
			Severity:       models.SeverityWarning,
			Confidence:     0.75,
			Observed:       hr,
			Threshold:      e.thresholds.BradycardiaWarning,
			Message:        fmt.Sprintf("Heart rate %.0f BPM below warning threshold %.0f", hr, e.thresholds.BradycardiaWarning),
			Recommendation: "Monitor for dizziness or fatigue",
		}
	}

	return nil
}

// checkHypoxemia 低氧血症检查（Warning / Critical / Emergency 三档）
func (e *Evaluator) checkHypoxemia(fv *models.FeatureVector) *models.Anomaly {
	spo2 := fv.CurrentSpO2
	if spo2 <= 0 {
		return nil
	}

	if spo2 <= e.thresholds.EmergencyLowSpO2 {
		return &models.Anomaly{
			Type:           models.AnomalyHypoxemia,
			Severity:       models.SeverityEmergency,
			Confidence:     0.95,
			Observed:       spo2,
			Threshold:      e.thresholds.EmergencyLowSpO2,
			Message:        fmt.Sprintf("Blood oxygen %.0f%% at or below emergency threshold %.0f%%", spo2, e.thresholds.EmergencyLowSpO2),
			Recommendation: "Seek immediate medical attention",
		}
	}

	if spo2 < e.thresholds.SpO2Critical {
		return &models.Anomaly{
			Type:           models.AnomalyHypoxemia,
			Severity:       models.SeverityCritical,
			Confidence:     0.9,
			Observed:       spo2,
			Threshold:      e.thresholds.SpO2Critical,
			Message:        fmt.Sprintf("Blood oxygen %.0f%% below critical threshold %.0f%%", spo2, e.thresholds.SpO2Critical),
			Recommendation: "Seek medical evaluation promptly",
		}
	}

	if spo2 < e.thresholds.SpO2Warning {
		return &models.Anomaly{
			Type:           models.AnomalyHypoxemia,
			Severity:       models.SeverityWarning,
			Confidence:     0.75,
			Observed:       spo2,
			Threshold:      e.thresholds.SpO2Warning,
			Message:        fmt.Sprintf("Blood oxygen %.0f%% below warning threshold %.0f%%", spo2, e.thresholds.SpO2Warning),
			Recommendation: "Rest and re-check in a few minutes",
		}
	}

	return nil
}

// checkHRV 心率变异性检查（SDNN 过低或异常偏高）
func (e *Evaluator) checkHRV(fv *models.FeatureVector) *models.Anomaly {
	if fv.SDNN <= 0 {
		// 无心搏间期数据，跳过
		return nil
	}

	if fv.SDNN < e.thresholds.SDNNLow {
		return &models.Anomaly{
			Type:           models.AnomalyLowHRV,
			Severity:       models.SeverityWarning,
			Confidence:     0.6,
			Observed:       fv.SDNN,
			Threshold:      e.thresholds.SDNNLow,
			Message:        fmt.Sprintf("Heart rate variability (SDNN %.1f ms) below threshold %.1f ms", fv.SDNN, e.thresholds.SDNNLow),
			Recommendation: "Low variability may indicate stress or fatigue",
		}
	}

	if fv.SDNN > e.thresholds.SDNNHigh {
		return &models.Anomaly{
			Type:           models.AnomalyHighHRV,
			Severity:       models.SeverityInfo,
			Confidence:     0.5,
			Observed:       fv.SDNN,
			Threshold:      e.thresholds.SDNNHigh,
			Message:        fmt.Sprintf("Heart rate variability (SDNN %.1f ms) unusually high", fv.SDNN),
			Recommendation: "May indicate irregular rhythm; monitor readings",
		}
	}

	return nil
}

// checkRateOfChange 心率变化率检查（每分钟突升/突降）
func (e *Evaluator) checkRateOfChange(fv *models.FeatureVector) *models.Anomaly {
	perMinute := fv.TrendHR * e.sampleRatePerMin

	if perMinute >= e.thresholds.SpikePerMinute {
		return &models.Anomaly{
			Type:           models.AnomalyHRSpike,
			Severity:       models.SeverityWarning,
			Confidence:     0.7,
			Observed:       perMinute,
			Threshold:      e.thresholds.SpikePerMinute,
			Message:        fmt.Sprintf("Heart rate rising %.0f BPM/min", perMinute),
			Recommendation: "Sudden increase detected; sit down and rest",
		}
	}

	if perMinute <= -e.thresholds.DropPerMinute {
		return &models.Anomaly{
			Type:           models.AnomalyHRDrop,
			Severity:       models.SeverityWarning,
			Confidence:     0.7,
			Observed:       perMinute,
			Threshold:      -e.thresholds.DropPerMinute,
			Message:        fmt.Sprintf("Heart rate falling %.0f BPM/min", -perMinute),
			Recommendation: "Sudden decrease detected; monitor for symptoms",
		}
	}

	return nil
}

// checkRestingTachycardia 静息状态下心率升高检查
func (e *Evaluator) checkRestingTachycardia(fv *models.FeatureVector) *models.Anomaly {
	if !fv.Resting {
		return nil
	}

	if fv.CurrentHR > e.thresholds.TachycardiaWarning {
		return &models.Anomaly{
			Type:           models.AnomalyRestingTachycardia,
			Severity:       models.SeverityWarning,
			Confidence:     0.8,
			Observed:       fv.CurrentHR,
			Threshold:      e.thresholds.TachycardiaWarning,
			Message:        fmt.Sprintf("Heart rate %.0f BPM elevated while at rest", fv.CurrentHR),
			Recommendation: "Elevated resting heart rate; consider medical review if persistent",
		}
	}

	return nil
}

func appendIfFired(anomalies []models.Anomaly, a *models.Anomaly) []models.Anomaly {
	if a == nil {
		return anomalies
	}
	return append(anomalies, *a)
}
