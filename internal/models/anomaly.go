package models

// AnomalyType 异常类型
type AnomalyType string

const (
	AnomalyTachycardia        AnomalyType = "tachycardia"         // 心动过速
	AnomalyBradycardia        AnomalyType = "bradycardia"         // 心动过缓
	AnomalyHypoxemia          AnomalyType = "hypoxemia"           // 低氧血症
	AnomalyLowHRV             AnomalyType = "low_hrv"             // 心率变异性过低
	AnomalyHighHRV            AnomalyType = "high_hrv"            // 心率变异性过高
	AnomalyHRSpike            AnomalyType = "hr_spike"            // 心率突升
	AnomalyHRDrop             AnomalyType = "hr_drop"             // 心率突降
	AnomalyRestingTachycardia AnomalyType = "resting_tachycardia" // 静息状态心动过速
	AnomalyPattern            AnomalyType = "pattern_anomaly"     // 统计模型检出的模式异常
)

// Anomaly 规则评估器产出的单条异常（瞬态对象，可零条/多条并存）
type Anomaly struct {
	Type           AnomalyType `json:"type"`
	Severity       Severity    `json:"severity"`
	Confidence     float64     `json:"confidence"`   // [0,1]
	Observed       float64     `json:"observed"`     // 观测值
	Threshold      float64     `json:"threshold"`    // 触发阈值
	Message        string      `json:"message"`
	Recommendation string      `json:"recommendation"`
}

// MaxSeverityAnomaly 返回列表中严重级别最高的异常（空列表返回 nil）
// 各检查相互独立、与顺序无关，级别相同时保留先出现者
func MaxSeverityAnomaly(anomalies []Anomaly) *Anomaly {
	var top *Anomaly
	for i := range anomalies {
		if top == nil || anomalies[i].Severity > top.Severity {
			top = &anomalies[i]
		}
	}
	return top
}
