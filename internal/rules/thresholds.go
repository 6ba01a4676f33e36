package rules

// Thresholds 规则评估器的阈值集合
//
// 默认值为运维缺省，可被住户档案覆盖：
// - 已知年龄时，危急心动过速阈值 = 220 − 年龄
// - 运动员档案下调心动过缓阈值
type Thresholds struct {
	// 心率（BPM）
	TachycardiaWarning  float64 // 高于此值 → Warning
	TachycardiaCritical float64 // 高于此值 → Critical（默认 220 − 年龄，未知年龄按 40 岁计）
	BradycardiaWarning  float64 // 低于此值 → Warning
	BradycardiaCritical float64 // 低于此值 → Critical

	// 紧急快速检查阈值（采样不足时对原始采样使用）
	EmergencyHighHR float64
	EmergencyLowHR  float64

	// 血氧（%）
	SpO2Warning      float64 // 低于此值 → Warning
	SpO2Critical     float64 // 低于此值 → Critical
	EmergencyLowSpO2 float64

	// HRV（SDNN，毫秒）
	SDNNLow  float64 // 低于此值 → Warning（变异性过低）
	SDNNHigh float64 // 高于此值 → Info（变异性异常偏高）

	// 心率变化率（BPM/分钟）
	SpikePerMinute float64 // 突升
	DropPerMinute  float64 // 突降
}

// Profile 住户阈值档案（来自 Postgres，可为空）
type Profile struct {
	DeviceID string
	Age      *int
	Athlete  bool

	// 档案级覆盖（为 nil 时不覆盖）
	TachycardiaWarning *float64
	SpO2Warning        *float64
}

// DefaultThresholds 缺省阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		TachycardiaWarning:  100,
		TachycardiaCritical: 180, // 220 − 40
		BradycardiaWarning:  50,
		BradycardiaCritical: 40,

		EmergencyHighHR: 190,
		EmergencyLowHR:  35,

		SpO2Warning:      94,
		SpO2Critical:     90,
		EmergencyLowSpO2: 85,

		SDNNLow:  20,
		SDNNHigh: 200,

		SpikePerMinute: 30,
		DropPerMinute:  30,
	}
}

// ForProfile 应用住户档案后的阈值
func (t Thresholds) ForProfile(profile *Profile) Thresholds {
	if profile == nil {
		return t
	}

	out := t

	if profile.Age != nil && *profile.Age > 0 {
		out.TachycardiaCritical = 220 - float64(*profile.Age)
	}

	// 运动员静息心率常低于普通人群，下调过缓阈值
	if profile.Athlete {
		out.BradycardiaWarning = 40
		out.BradycardiaCritical = 32
	}

	if profile.TachycardiaWarning != nil {
		out.TachycardiaWarning = *profile.TachycardiaWarning
	}
	if profile.SpO2Warning != nil {
		out.SpO2Warning = *profile.SpO2Warning
	}

	return out
}
