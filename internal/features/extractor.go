// Package features 提供采样窗口上的统计特征提取
package features

import (
	"errors"
	"math"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

// ErrInsufficientData 采样数不足（正常状态而非故障，调用方转入紧急快速检查）
var ErrInsufficientData = errors.New("insufficient samples for feature extraction")

// Extractor 特征提取器（纯函数，无共享状态）
type Extractor struct {
	minSamples        int
	activityThreshold int
}

// NewExtractor 创建特征提取器
func NewExtractor(minSamples, activityThreshold int) *Extractor {
	return &Extractor{
		minSamples:        minSamples,
		activityThreshold: activityThreshold,
	}
}

// Compute 从有序采样窗口计算特征向量
// 采样数低于 minSamples 时返回 ErrInsufficientData
func (e *Extractor) Compute(samples []models.Sample) (*models.FeatureVector, error) {
	if len(samples) < e.minSamples {
		return nil, ErrInsufficientData
	}

	hr := make([]float64, len(samples))
	spo2 := make([]float64, len(samples))
	ibi := make([]float64, 0, len(samples))
	steps := 0

	for i, s := range samples {
		hr[i] = s.HeartRate
		spo2[i] = s.SpO2
		steps += s.StepCount
		if s.InterBeatMs > 0 {
			ibi = append(ibi, s.InterBeatMs)
		}
	}

	fv := &models.FeatureVector{
		CurrentHR:     hr[len(hr)-1],
		MeanHR:        mean(hr),
		StdHR:         stdDev(hr),
		MinHR:         minOf(hr),
		MaxHR:         maxOf(hr),
		TrendHR:       slope(hr),
		SDNN:          stdDev(ibi),
		RMSSD:         rmssd(ibi),
		CurrentSpO2:   spo2[len(spo2)-1],
		MeanSpO2:      mean(spo2),
		MinSpO2:       minOf(spo2),
		StepsInWindow: steps,
		Resting:       steps < e.activityThreshold,
		SampleCount:   len(samples),
	}

	return fv, nil
}

// mean 算术平均
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev 总体标准差
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - avg
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// slope 窗口索引上的最小二乘斜率（每采样单位，调用方按采样率换算为每分钟）
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	// x = 0..n-1
	meanX := (n - 1) / 2
	meanY := mean(values)

	var num, den float64
	for i, y := range values {
		dx := float64(i) - meanX
		num += dx * (y - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// rmssd 相邻心搏间期差的均方根
func rmssd(ibi []float64) float64 {
	if len(ibi) < 2 {
		return 0
	}
	var sumSq float64
	for i := 1; i < len(ibi); i++ {
		diff := ibi[i] - ibi[i-1]
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(ibi)-1))
}
