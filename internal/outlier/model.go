// Package outlier 提供无监督统计离群评分
//
// 模型输出是对规则信号的补充；不可用时降级为 "none"（无信号），
// 调用方不得把无信号解释为"确认正常"
package outlier

import (
	"github.com/9046balaji/Heart-sub003/internal/models"
)

// Model 离群模型接口
type Model interface {
	// Predict 返回特征向量的异常分与置信度（均为 [0,1]）
	Predict(fv *models.FeatureVector) (models.ModelPrediction, error)

	// Fit 用确认正常的采样批次重训练基线；样本不足或拟合失败时
	// 保留现有基线不变
	Fit(samples []models.Sample) error

	// Kind 模型类型标识
	Kind() string
}
