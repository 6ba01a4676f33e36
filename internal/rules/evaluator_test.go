package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/9046balaji/Heart-sub003/internal/models"
)

func normalFeatures() *models.FeatureVector {
	return &models.FeatureVector{
		CurrentHR:     72,
		MeanHR:        72,
		MinHR:         68,
		MaxHR:         78,
		SDNN:          45,
		RMSSD:         38,
		CurrentSpO2:   98,
		MeanSpO2:      98,
		MinSpO2:       97,
		StepsInWindow: 300,
		Resting:       false,
		SampleCount:   60,
	}
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(DefaultThresholds(), 12)
}

func TestAnalyze_NormalFeatures_NoAnomalies(t *testing.T) {
	evaluator := newTestEvaluator()

	anomalies := evaluator.Analyze(normalFeatures())

	assert.Empty(t, anomalies)
	assert.Equal(t, models.SeverityNormal, evaluator.OverallStatus(anomalies))
}

func TestAnalyze_CriticalTachycardia(t *testing.T) {
	evaluator := newTestEvaluator()

	fv := normalFeatures()
	fv.CurrentHR = 185

	anomalies := evaluator.Analyze(fv)

	// 危急阈值之上恰好一条心动过速异常，且为 Critical 档
	var tachy []models.Anomaly
	for _, a := range anomalies {
		if a.Type == models.AnomalyTachycardia {
			tachy = append(tachy, a)
		}
	}
	require.Len(t, tachy, 1)
	assert.Equal(t, models.SeverityCritical, tachy[0].Severity)
	assert.InDelta(t, 185, tachy[0].Observed, 1e-9)
}

func TestAnalyze_CriticalTachycardia_IndependentOfOtherFeatures(t *testing.T) {
	evaluator := newTestEvaluator()

	// 其他特征同时异常也不影响心动过速检查
	fv := normalFeatures()
	fv.CurrentHR = 185
	fv.CurrentSpO2 = 80
	fv.SDNN = 5
	fv.Resting = true

	anomalies := evaluator.Analyze(fv)

	count := 0
	for _, a := range anomalies {
		if a.Type == models.AnomalyTachycardia {
			count++
			assert.Equal(t, models.SeverityCritical, a.Severity)
		}
	}
	assert.Equal(t, 1, count)
	// 低氧与低 HRV 同时独立触发
	assert.GreaterOrEqual(t, len(anomalies), 3)
}

func TestAnalyze_WarningTiers(t *testing.T) {
	evaluator := newTestEvaluator()

	tests := []struct {
		name     string
		mutate   func(*models.FeatureVector)
		wantType models.AnomalyType
	}{
		{"tachycardia warning", func(fv *models.FeatureVector) { fv.CurrentHR = 110 }, models.AnomalyTachycardia},
		{"bradycardia warning", func(fv *models.FeatureVector) { fv.CurrentHR = 45 }, models.AnomalyBradycardia},
		{"bradycardia critical", func(fv *models.FeatureVector) { fv.CurrentHR = 38 }, models.AnomalyBradycardia},
		{"hypoxemia warning", func(fv *models.FeatureVector) { fv.CurrentSpO2 = 92 }, models.AnomalyHypoxemia},
		{"hypoxemia critical", func(fv *models.FeatureVector) { fv.CurrentSpO2 = 88 }, models.AnomalyHypoxemia},
		{"low hrv", func(fv *models.FeatureVector) { fv.SDNN = 12 }, models.AnomalyLowHRV},
		{"high hrv", func(fv *models.FeatureVector) { fv.SDNN = 250 }, models.AnomalyHighHRV},
		{"hr spike", func(fv *models.FeatureVector) { fv.TrendHR = 3 }, models.AnomalyHRSpike},
		{"hr drop", func(fv *models.FeatureVector) { fv.TrendHR = -3 }, models.AnomalyHRDrop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := normalFeatures()
			tt.mutate(fv)

			anomalies := evaluator.Analyze(fv)

			found := false
			for _, a := range anomalies {
				if a.Type == tt.wantType {
					found = true
				}
			}
			assert.True(t, found, "expected anomaly %s", tt.wantType)
		})
	}
}

func TestAnalyze_EmergencyTiers(t *testing.T) {
	evaluator := newTestEvaluator()

	tests := []struct {
		name     string
		mutate   func(*models.FeatureVector)
		wantType models.AnomalyType
	}{
		{"tachycardia emergency", func(fv *models.FeatureVector) { fv.CurrentHR = 190 }, models.AnomalyTachycardia},
		{"bradycardia emergency", func(fv *models.FeatureVector) { fv.CurrentHR = 34 }, models.AnomalyBradycardia},
		{"hypoxemia emergency", func(fv *models.FeatureVector) { fv.CurrentSpO2 = 84 }, models.AnomalyHypoxemia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := normalFeatures()
			tt.mutate(fv)

			anomalies := evaluator.Analyze(fv)

			found := false
			for _, a := range anomalies {
				if a.Type == tt.wantType && a.Severity == models.SeverityEmergency {
					found = true
				}
			}
			assert.True(t, found, "expected emergency %s", tt.wantType)
		})
	}
}

func TestAnalyze_RestingTachycardia(t *testing.T) {
	evaluator := newTestEvaluator()

	fv := normalFeatures()
	fv.CurrentHR = 105
	fv.Resting = true
	fv.StepsInWindow = 3

	anomalies := evaluator.Analyze(fv)

	types := map[models.AnomalyType]bool{}
	for _, a := range anomalies {
		types[a.Type] = true
	}
	// 普通心动过速与静息心动过速独立并存
	assert.True(t, types[models.AnomalyTachycardia])
	assert.True(t, types[models.AnomalyRestingTachycardia])
}

func TestOverallStatus_Idempotent(t *testing.T) {
	evaluator := newTestEvaluator()

	fv := normalFeatures()
	fv.CurrentHR = 185
	fv.CurrentSpO2 = 92
	anomalies := evaluator.Analyze(fv)

	first := evaluator.OverallStatus(anomalies)
	second := evaluator.OverallStatus(anomalies)
	third := evaluator.OverallStatus(anomalies)

	assert.Equal(t, models.SeverityCritical, first)
	assert.Equal(t, first, second)
	assert.Equal(t, second, third)
}

func TestQuickEmergencyCheck(t *testing.T) {
	evaluator := newTestEvaluator()

	t.Run("emergency high heart rate", func(t *testing.T) {
		anomalies := evaluator.QuickEmergencyCheck(models.Sample{HeartRate: 195, SpO2: 97})
		require.Len(t, anomalies, 1)
		assert.Equal(t, models.AnomalyTachycardia, anomalies[0].Type)
		assert.Equal(t, models.SeverityEmergency, anomalies[0].Severity)
	})

	t.Run("emergency low spo2", func(t *testing.T) {
		anomalies := evaluator.QuickEmergencyCheck(models.Sample{HeartRate: 75, SpO2: 82})
		require.Len(t, anomalies, 1)
		assert.Equal(t, models.AnomalyHypoxemia, anomalies[0].Type)
		assert.Equal(t, models.SeverityEmergency, anomalies[0].Severity)
	})

	t.Run("normal sample passes", func(t *testing.T) {
		anomalies := evaluator.QuickEmergencyCheck(models.Sample{HeartRate: 75, SpO2: 98})
		assert.Empty(t, anomalies)
	})

	t.Run("sub-emergency abnormality not flagged", func(t *testing.T) {
		// 快速检查只看紧急阈值，Warning 级别留给完整分析
		anomalies := evaluator.QuickEmergencyCheck(models.Sample{HeartRate: 120, SpO2: 92})
		assert.Empty(t, anomalies)
	})
}

func TestThresholds_ForProfile(t *testing.T) {
	base := DefaultThresholds()

	t.Run("nil profile keeps defaults", func(t *testing.T) {
		assert.Equal(t, base, base.ForProfile(nil))
	})

	t.Run("age sets critical tachycardia", func(t *testing.T) {
		age := 70
		adjusted := base.ForProfile(&Profile{Age: &age})
		assert.InDelta(t, 150, adjusted.TachycardiaCritical, 1e-9)
	})

	t.Run("athlete lowers bradycardia bounds", func(t *testing.T) {
		adjusted := base.ForProfile(&Profile{Athlete: true})
		assert.InDelta(t, 40, adjusted.BradycardiaWarning, 1e-9)
		assert.InDelta(t, 32, adjusted.BradycardiaCritical, 1e-9)
	})

	t.Run("explicit overrides win", func(t *testing.T) {
		warn := 95.0
		adjusted := base.ForProfile(&Profile{TachycardiaWarning: &warn})
		assert.InDelta(t, 95, adjusted.TachycardiaWarning, 1e-9)
	})
}

func TestAnalyze_AthleteProfileSuppressesBradycardiaWarning(t *testing.T) {
	thresholds := DefaultThresholds().ForProfile(&Profile{Athlete: true})
	evaluator := NewEvaluator(thresholds, 12)

	fv := normalFeatures()
	fv.CurrentHR = 45

	anomalies := evaluator.Analyze(fv)
	for _, a := range anomalies {
		assert.NotEqual(t, models.AnomalyBradycardia, a.Type)
	}
}
