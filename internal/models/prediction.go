package models

import "time"

// ModelKind 统计模型类型
const (
	ModelKindZScore = "zscore"
	// ModelKindNone 表示"无可用信号"，调用方不得解释为"确认正常"
	ModelKindNone = "none"
)

// ModelPrediction 统计离群模型的瞬态输出
type ModelPrediction struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	AnomalyScore float64 `json:"anomaly_score"` // [0,1]
	Confidence   float64 `json:"confidence"`    // [0,1]
	ModelKind    string  `json:"model_kind"`
}

// NoSignal 返回"无可用信号"的降级预测
func NoSignal() ModelPrediction {
	return ModelPrediction{ModelKind: ModelKindNone}
}

// RiskLevel 融合后的风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// PredictionResult 检测器返回的聚合快照（可由外部协作方持久化）
type PredictionResult struct {
	DeviceID      string          `json:"device_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Anomalies     []Anomaly       `json:"anomalies"`      // 规则评估器产出
	Model         ModelPrediction `json:"model"`          // 统计模型产出
	RiskScore     float64         `json:"risk_score"`     // [0,1]
	RiskLevel     RiskLevel       `json:"risk_level"`
	RequiresAlert bool            `json:"requires_alert"`
	AlertMessage  string          `json:"alert_message"`  // 最高级别规则异常的消息
	DataState     string          `json:"data_state"`     // "ok" 或 "insufficient"
}

// DataState 取值
const (
	DataStateOK           = "ok"
	DataStateInsufficient = "insufficient"
)
