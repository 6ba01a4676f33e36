package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/features"
	"github.com/9046balaji/Heart-sub003/internal/models"
	"github.com/9046balaji/Heart-sub003/internal/outlier"
	"github.com/9046balaji/Heart-sub003/internal/rules"
	"github.com/9046balaji/Heart-sub003/internal/window"
)

func newTestDetector(t *testing.T) (*Detector, window.Store) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	logger := zap.NewNop()
	windowStore := window.NewRedisStore(redisClient, "vitalguard:window:", 120, time.Hour, logger)
	extractor := features.NewExtractor(30, 50)
	evaluator := rules.NewEvaluator(rules.DefaultThresholds(), 12)
	model := outlier.NewZScoreModel(100, logger)

	d := NewDetector(windowStore, extractor, evaluator, model, DefaultFusionConfig(), logger)
	return d, windowStore
}

// fillWindow 预填充窗口（不含最后一条，由 Analyze 追加）
func fillWindow(t *testing.T, store window.Store, deviceID string, n int, hr, spo2 float64, steps int) {
	ctx := context.Background()
	base := time.Now().Add(-time.Duration(n) * 5 * time.Second)
	for i := 0; i < n; i++ {
		err := store.Append(ctx, deviceID, models.Sample{
			HeartRate:   hr,
			SpO2:        spo2,
			StepCount:   steps,
			InterBeatMs: 60000 / hr,
			Timestamp:   base.Add(time.Duration(i) * 5 * time.Second),
		})
		require.NoError(t, err)
	}
}

func TestAnalyze_InsufficientData_QuickCheckOnly(t *testing.T) {
	d, _ := newTestDetector(t)

	// 第一条采样，窗口远低于最小数量
	result, err := d.Analyze(context.Background(), "device-1", 120, 92, 0, 500)
	require.NoError(t, err)

	assert.Equal(t, models.DataStateInsufficient, result.DataState)
	// 快速检查只看紧急阈值：120/92 未过线，不产出完整规则结果
	assert.Empty(t, result.Anomalies)
	assert.Equal(t, models.ModelKindNone, result.Model.ModelKind)
	assert.False(t, result.RequiresAlert)
}

func TestAnalyze_InsufficientData_EmergencyStillFires(t *testing.T) {
	d, _ := newTestDetector(t)

	result, err := d.Analyze(context.Background(), "device-1", 195, 97, 0, 300)
	require.NoError(t, err)

	assert.Equal(t, models.DataStateInsufficient, result.DataState)
	require.NotEmpty(t, result.Anomalies)
	assert.Equal(t, models.SeverityEmergency, result.Anomalies[0].Severity)
	assert.True(t, result.RequiresAlert)
}

func TestAnalyze_ScenarioCriticalTachycardia(t *testing.T) {
	d, store := newTestDetector(t)
	fillWindow(t, store, "device-1", 59, 185, 97, 0)

	result, err := d.Analyze(context.Background(), "device-1", 185, 97, 0, 60000/185.0)
	require.NoError(t, err)

	assert.Equal(t, models.DataStateOK, result.DataState)
	assert.Equal(t, models.RiskCritical, result.RiskLevel)
	assert.True(t, result.RequiresAlert)
	assert.NotEmpty(t, result.AlertMessage)

	top := models.MaxSeverityAnomaly(result.Anomalies)
	require.NotNil(t, top)
	assert.GreaterOrEqual(t, top.Severity, models.SeverityCritical)
}

func TestAnalyze_ScenarioNormalVitals(t *testing.T) {
	d, store := newTestDetector(t)
	fillWindow(t, store, "device-1", 59, 75, 98, 8)

	result, err := d.Analyze(context.Background(), "device-1", 75, 98, 8, 800)
	require.NoError(t, err)

	assert.Equal(t, models.DataStateOK, result.DataState)
	assert.Equal(t, models.RiskLow, result.RiskLevel)
	assert.False(t, result.RequiresAlert)
	assert.Empty(t, result.Anomalies)
}

func TestAnalyze_StatelessAcrossReplicas(t *testing.T) {
	// 两个检测器副本共享同一窗口存储，对同一历史产出相同结果
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	logger := zap.NewNop()
	store := window.NewRedisStore(redisClient, "vitalguard:window:", 120, time.Hour, logger)

	newReplica := func() *Detector {
		return NewDetector(
			store,
			features.NewExtractor(30, 50),
			rules.NewEvaluator(rules.DefaultThresholds(), 12),
			outlier.NewZScoreModel(100, logger),
			DefaultFusionConfig(),
			logger,
		)
	}
	replicaA := newReplica()
	replicaB := newReplica()

	fillWindow(t, store, "device-1", 60, 110, 96, 0)

	resultA, err := replicaA.Analyze(context.Background(), "device-1", 110, 96, 0, 545)
	require.NoError(t, err)
	resultB, err := replicaB.Analyze(context.Background(), "device-1", 110, 96, 0, 545)
	require.NoError(t, err)

	assert.Equal(t, resultA.RiskLevel, resultB.RiskLevel)
	assert.Equal(t, resultA.RequiresAlert, resultB.RequiresAlert)
	assert.InDelta(t, resultA.RiskScore, resultB.RiskScore, 0.05)
}

// failingStore 模拟窗口存储不可用
type failingStore struct{}

func (failingStore) Append(ctx context.Context, deviceID string, sample models.Sample) error {
	return errors.New("window store down")
}

func (failingStore) ReadWindow(ctx context.Context, deviceID string) ([]models.Sample, error) {
	return nil, errors.New("window store down")
}

func TestAnalyze_WindowUnavailable_FallsBackToQuickCheck(t *testing.T) {
	logger := zap.NewNop()
	d := NewDetector(
		failingStore{},
		features.NewExtractor(30, 50),
		rules.NewEvaluator(rules.DefaultThresholds(), 12),
		outlier.NewZScoreModel(100, logger),
		DefaultFusionConfig(),
		logger,
	)

	result, err := d.Analyze(context.Background(), "device-1", 195, 97, 0, 300)
	require.NoError(t, err)

	// 窗口整体不可用也必须产出结果：紧急快速检查
	assert.Equal(t, models.DataStateInsufficient, result.DataState)
	require.NotEmpty(t, result.Anomalies)
	assert.Equal(t, models.SeverityEmergency, result.Anomalies[0].Severity)
}

// failingModel 模拟模型不可用
type failingModel struct{}

func (failingModel) Predict(fv *models.FeatureVector) (models.ModelPrediction, error) {
	return models.NoSignal(), errors.New("model unavailable")
}

func (failingModel) Fit(samples []models.Sample) error { return errors.New("model unavailable") }

func (failingModel) Kind() string { return models.ModelKindNone }

func TestAnalyze_ModelFailure_RuleOnlyResult(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	logger := zap.NewNop()
	store := window.NewRedisStore(redisClient, "vitalguard:window:", 120, time.Hour, logger)

	d := NewDetector(
		store,
		features.NewExtractor(30, 50),
		rules.NewEvaluator(rules.DefaultThresholds(), 12),
		failingModel{},
		DefaultFusionConfig(),
		logger,
	)

	fillWindow(t, store, "device-1", 59, 185, 97, 0)

	result, err := d.Analyze(context.Background(), "device-1", 185, 97, 0, 324)
	require.NoError(t, err)

	// 模型失败降级为无信号，规则结果完整保留
	assert.Equal(t, models.ModelKindNone, result.Model.ModelKind)
	assert.Zero(t, result.Model.AnomalyScore)
	assert.NotEmpty(t, result.Anomalies)
	assert.True(t, result.RequiresAlert)
}
