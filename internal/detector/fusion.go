package detector

import (
	"github.com/9046balaji/Heart-sub003/internal/models"
)

// FusionConfig 风险融合配置
// 权重与分界点是运维默认值，并非经过验证的临床阈值
type FusionConfig struct {
	RuleWeight         float64
	ModelWeight        float64
	CriticalBreakpoint float64
	HighBreakpoint     float64
	MediumBreakpoint   float64
	AlertThreshold     float64
}

// DefaultFusionConfig 缺省融合配置
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		RuleWeight:         0.7,
		ModelWeight:        0.3,
		CriticalBreakpoint: 0.75,
		HighBreakpoint:     0.50,
		MediumBreakpoint:   0.25,
		AlertThreshold:     0.5,
	}
}

// FuseRisk 融合规则信号与模型信号为单一风险分
//
// risk = ruleWeight × (maxSeverity / Emergency) + modelWeight × (score × confidence)
// 规则权重更高：规则有临床阈值依据，模型只补充规则覆盖不到的模式信号。
// 融合对两路信号均单调非减
func (c FusionConfig) FuseRisk(anomalies []models.Anomaly, model models.ModelPrediction) float64 {
	ruleComponent := 0.0
	if top := models.MaxSeverityAnomaly(anomalies); top != nil {
		ruleComponent = float64(top.Severity) / float64(models.MaxSeverity)
	}

	modelComponent := model.AnomalyScore * model.Confidence

	risk := c.RuleWeight*ruleComponent + c.ModelWeight*modelComponent
	if risk < 0 {
		return 0
	}
	if risk > 1 {
		return 1
	}
	return risk
}

// RiskLevel 按固定分界点映射风险分到等级
func (c FusionConfig) RiskLevel(risk float64) models.RiskLevel {
	switch {
	case risk >= c.CriticalBreakpoint:
		return models.RiskCritical
	case risk >= c.HighBreakpoint:
		return models.RiskHigh
	case risk >= c.MediumBreakpoint:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// RequiresAlert 风险分超阈值或任一规则异常达到 Warning 级别
func (c FusionConfig) RequiresAlert(risk float64, anomalies []models.Anomaly) bool {
	if risk > c.AlertThreshold {
		return true
	}
	for _, a := range anomalies {
		if a.Severity >= models.SeverityWarning {
			return true
		}
	}
	return false
}
