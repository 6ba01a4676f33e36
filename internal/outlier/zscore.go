package outlier

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// baseline 各特征维度的高斯基线
type baseline struct {
	meanHR   float64
	stdHR    float64
	meanSpO2 float64
	stdSpO2  float64
	meanSDNN float64
	stdSDNN  float64

	trainedOn int  // 拟合样本数
	synthetic bool // 是否为合成引导基线
}

// ZScoreModel 基于 z 分数的离群模型
//
// 无训练数据时从合成正常值域引导出默认基线，系统永远不会因缺少
// 训练数据而失去模型信号；Fit 成功后才整体替换基线
type ZScoreModel struct {
	mu              sync.RWMutex
	baseline        baseline
	minTrainSamples int
	scoreThreshold  float64
	logger          *zap.Logger
}

// NewZScoreModel 创建模型（携带合成引导基线）
func NewZScoreModel(minTrainSamples int, logger *zap.Logger) *ZScoreModel {
	if minTrainSamples <= 0 {
		minTrainSamples = 100
	}
	return &ZScoreModel{
		baseline:        syntheticBaseline(),
		minTrainSamples: minTrainSamples,
		scoreThreshold:  0.5,
		logger:          logger,
	}
}

// syntheticBaseline 成人静息正常值域的合成基线
func syntheticBaseline() baseline {
	return baseline{
		meanHR:   72,
		stdHR:    12,
		meanSpO2: 97.5,
		stdSpO2:  1.2,
		meanSDNN: 50,
		stdSDNN:  20,

		trainedOn: 0,
		synthetic: true,
	}
}

// Kind 模型类型
func (m *ZScoreModel) Kind() string {
	return models.ModelKindZScore
}

// Predict 计算特征向量的异常分
// 分数取各维度 |z| 的最大值经压缩映射到 [0,1]；置信度随基线来源与
// 窗口样本数增长
func (m *ZScoreModel) Predict(fv *models.FeatureVector) (models.ModelPrediction, error) {
	if fv == nil {
		return models.NoSignal(), fmt.Errorf("nil feature vector")
	}

	m.mu.RLock()
	b := m.baseline
	m.mu.RUnlock()

	maxZ := 0.0
	maxZ = math.Max(maxZ, absZ(fv.CurrentHR, b.meanHR, b.stdHR))
	maxZ = math.Max(maxZ, absZ(fv.MeanHR, b.meanHR, b.stdHR))
	maxZ = math.Max(maxZ, absZ(fv.CurrentSpO2, b.meanSpO2, b.stdSpO2))
	if fv.SDNN > 0 {
		maxZ = math.Max(maxZ, absZ(fv.SDNN, b.meanSDNN, b.stdSDNN))
	}

	// z=2 → 0.5，z=4 → 1.0，线性压缩后截断
	score := clamp01(maxZ / 4)

	// 合成基线按一般人群给出固定置信度；个性化基线随拟合样本数增长
	confidence := 0.8
	if !b.synthetic {
		confidence = clamp(0.8+0.15*float64(b.trainedOn)/1000, 0.8, 0.95)
	}

	return models.ModelPrediction{
		IsAnomaly:    score >= m.scoreThreshold,
		AnomalyScore: score,
		Confidence:   confidence,
		ModelKind:    models.ModelKindZScore,
	}, nil
}

// Fit 用确认正常的采样批次重建个性化基线
func (m *ZScoreModel) Fit(samples []models.Sample) error {
	if len(samples) < m.minTrainSamples {
		return fmt.Errorf("need at least %d samples to fit, got %d", m.minTrainSamples, len(samples))
	}

	hr := make([]float64, 0, len(samples))
	spo2 := make([]float64, 0, len(samples))
	ibi := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.HeartRate > 0 {
			hr = append(hr, s.HeartRate)
		}
		if s.SpO2 > 0 {
			spo2 = append(spo2, s.SpO2)
		}
		if s.InterBeatMs > 0 {
			ibi = append(ibi, s.InterBeatMs)
		}
	}

	if len(hr) < m.minTrainSamples/2 {
		return fmt.Errorf("too few usable heart rate samples: %d", len(hr))
	}

	meanHR, stdHR := meanStd(hr)
	if stdHR <= 0 {
		return fmt.Errorf("degenerate training batch: zero heart rate variance")
	}

	b := baseline{
		meanHR:    meanHR,
		stdHR:     stdHR,
		trainedOn: len(samples),
	}

	if len(spo2) >= 2 {
		b.meanSpO2, b.stdSpO2 = meanStd(spo2)
	}
	if b.stdSpO2 <= 0 {
		// 血氧几乎恒定时回退到合成方差，避免除零放大噪声
		synth := syntheticBaseline()
		if b.meanSpO2 <= 0 {
			b.meanSpO2 = synth.meanSpO2
		}
		b.stdSpO2 = synth.stdSpO2
	}

	if len(ibi) >= 2 {
		// SDNN 基线：训练批内心搏间期的标准差作为均值锚点
		_, sdnn := meanStd(ibi)
		b.meanSDNN = sdnn
		b.stdSDNN = math.Max(sdnn*0.4, 5)
	} else {
		synth := syntheticBaseline()
		b.meanSDNN, b.stdSDNN = synth.meanSDNN, synth.stdSDNN
	}

	// 拟合成功后才替换现役基线
	m.mu.Lock()
	m.baseline = b
	m.mu.Unlock()

	m.logger.Info("Outlier model baseline refitted",
		zap.Int("samples", len(samples)),
		zap.Float64("mean_hr", meanHR),
		zap.Float64("std_hr", stdHR),
	)

	return nil
}

func absZ(value, mean, std float64) float64 {
	if std <= 0 {
		return 0
	}
	return math.Abs((value - mean) / std)
}

func meanStd(values []float64) (float64, float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
