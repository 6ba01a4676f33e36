package models

import "time"

// Sample 单条生理采样数据（由采集边界创建，创建后不再修改）
type Sample struct {
	HeartRate       float64   `json:"heart_rate"`                 // 心率（BPM）
	SpO2            float64   `json:"spo2"`                       // 血氧饱和度（%）
	StepCount       int       `json:"step_count"`                 // 步数（增量）
	InterBeatMs     float64   `json:"inter_beat_interval_ms"`     // 心搏间期（毫秒）
	Timestamp       time.Time `json:"timestamp"`                  // 采样时间
}

// FeatureVector 滑动窗口上的统计特征摘要（每次分析重新计算，不持久化）
type FeatureVector struct {
	// 心率特征
	CurrentHR float64 `json:"current_hr"`
	MeanHR    float64 `json:"mean_hr"`
	StdHR     float64 `json:"std_hr"`
	MinHR     float64 `json:"min_hr"`
	MaxHR     float64 `json:"max_hr"`
	TrendHR   float64 `json:"trend_hr"` // 窗口索引上的线性斜率（每采样），调用方按采样率换算为每分钟

	// HRV 特征（来自心搏间期）
	SDNN  float64 `json:"hrv_sdnn"`  // 心搏间期标准差
	RMSSD float64 `json:"hrv_rmssd"` // 相邻心搏间期差的均方根

	// 血氧特征
	CurrentSpO2 float64 `json:"current_spo2"`
	MeanSpO2    float64 `json:"mean_spo2"`
	MinSpO2     float64 `json:"min_spo2"`

	// 活动特征
	StepsInWindow int  `json:"steps_in_window"`
	Resting       bool `json:"resting"` // 窗口内步数低于活动阈值

	SampleCount int `json:"sample_count"`
}
