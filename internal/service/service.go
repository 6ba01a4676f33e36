// Package service 组装各层组件并管理其生命周期
package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/9046balaji/Heart-sub003/internal/config"
	"github.com/9046balaji/Heart-sub003/internal/consumer"
	"github.com/9046balaji/Heart-sub003/internal/detector"
	"github.com/9046balaji/Heart-sub003/internal/explain"
	"github.com/9046balaji/Heart-sub003/internal/features"
	"github.com/9046balaji/Heart-sub003/internal/models"
	"github.com/9046balaji/Heart-sub003/internal/mqtt"
	"github.com/9046balaji/Heart-sub003/internal/notify"
	"github.com/9046balaji/Heart-sub003/internal/outlier"
	"github.com/9046balaji/Heart-sub003/internal/pipeline"
	"github.com/9046balaji/Heart-sub003/internal/repository"
	"github.com/9046balaji/Heart-sub003/internal/rules"
	"github.com/9046balaji/Heart-sub003/internal/throttle"
	"github.com/9046balaji/Heart-sub003/internal/window"
)

// 每设备一次训练拉取的样本上限
const trainingBatchLimit = 500

// deviceRuntime 单设备的检测组件（阈值与模型按设备个性化）
type deviceRuntime struct {
	detector *detector.Detector
	model    *outlier.ZScoreModel
}

// MonitorService 生理监测服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client // 可为 nil（未配置 broker）
	logger      *zap.Logger

	// 共享组件
	windowStore  *window.RedisStore
	extractor    *features.Extractor
	fusion       detector.FusionConfig
	profileRepo  *repository.ProfileRepository
	trainingRepo *repository.TrainingSampleRepository
	pipeline     *pipeline.Pipeline
	consumer     *consumer.SampleConsumer // 可为 nil（未配置 broker）

	// 每设备组件（按需惰性创建）
	mu      sync.Mutex
	devices map[string]*deviceRuntime
}

// NewMonitorService 创建监测服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT（可选，未配置 broker 时不注册推送通道）
	var mqttClient *mqtt.Client
	if cfg.MQTT.Broker != "" {
		mqttClient, err = mqtt.NewClient(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
	}

	// 4. 创建 Repository 层
	profileRepo := repository.NewProfileRepository(db, logger)
	trainingRepo := repository.NewTrainingSampleRepository(db, logger)

	// 5. 创建检测侧共享组件
	windowStore := window.NewRedisStore(redisClient, cfg.Window.KeyPrefix, cfg.Window.Capacity, cfg.Window.TTL, logger)
	extractor := features.NewExtractor(cfg.Analysis.MinSamples, cfg.Analysis.ActivityThreshold)
	fusion := detector.FusionConfig{
		RuleWeight:         cfg.Fusion.RuleWeight,
		ModelWeight:        cfg.Fusion.ModelWeight,
		CriticalBreakpoint: cfg.Fusion.CriticalBreakpoint,
		HighBreakpoint:     cfg.Fusion.HighBreakpoint,
		MediumBreakpoint:   cfg.Fusion.MediumBreakpoint,
		AlertThreshold:     cfg.Fusion.AlertThreshold,
	}

	// 6. 创建报警管道与通道处理器
	thr := throttle.NewThrottle(redisClient, cfg.Throttle.KeyPrefix, cfg.Throttle.Cooldown, logger)

	var generator explain.Generator
	if cfg.Explain.BaseURL != "" {
		generator = explain.NewHTTPGenerator(cfg.Explain.BaseURL, cfg.Explain.Timeout, cfg.Explain.Temperature, cfg.Explain.MaxTokens, logger)
	}

	pipe := pipeline.NewPipeline(thr, generator, pipeline.Options{
		HistorySize:     cfg.Pipeline.HistorySize,
		WorkerPoolSize:  cfg.Pipeline.WorkerPoolSize,
		DeliveryTimeout: cfg.Pipeline.DeliveryTimeout,
		ExplainTimeout:  cfg.Explain.Timeout,
	}, logger)

	pipe.RegisterHandler(notify.NewLogHandler(logger))
	pipe.RegisterHandler(notify.NewInAppHandler(redisClient, cfg.Pipeline.InAppKeyPrefix, cfg.Pipeline.InAppTTL, logger))
	pipe.RegisterHandler(notify.NewStreamHandler(redisClient, cfg.Pipeline.AlertStream, logger))
	if mqttClient != nil {
		pipe.RegisterHandler(notify.NewPushHandler(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger))
	}
	if cfg.Urgent.WebhookURL != "" {
		pipe.RegisterHandler(notify.NewWebhookHandler(cfg.Urgent.WebhookURL, cfg.Urgent.Timeout, logger))
	}

	svc := &MonitorService{
		config:       cfg,
		db:           db,
		redisClient:  redisClient,
		mqttClient:   mqttClient,
		logger:       logger,
		windowStore:  windowStore,
		extractor:    extractor,
		fusion:       fusion,
		profileRepo:  profileRepo,
		trainingRepo: trainingRepo,
		pipeline:     pipe,
		devices:      make(map[string]*deviceRuntime),
	}

	// 7. 创建采样消费者（与推送通道共用 MQTT 连接）
	if mqttClient != nil {
		svc.consumer = consumer.NewSampleConsumer(mqttClient, svc, cfg.MQTT.SampleTopic, cfg.MQTT.QoS, logger)
	}

	return svc, nil
}

// HandleSample 处理一条设备采样：检测分析，必要时经管道发出报警
func (s *MonitorService) HandleSample(ctx context.Context, deviceID string, hr, spo2 float64, steps int, ibiMs float64) (*models.PredictionResult, *models.Alert, error) {
	rt := s.runtimeFor(deviceID)

	result, err := rt.detector.Analyze(ctx, deviceID, hr, spo2, steps, ibiMs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to analyze sample: %w", err)
	}

	alert, err := s.pipeline.ProcessPrediction(ctx, result)
	if err != nil {
		return result, nil, fmt.Errorf("failed to process prediction: %w", err)
	}

	return result, alert, nil
}

// Pipeline 暴露报警历史的检视与确认入口
func (s *MonitorService) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// runtimeFor 获取或创建设备的检测组件
//
// 首次见到设备时加载其阈值档案并尝试一次个性化训练；
// 档案或训练数据缺失都只降级为缺省行为，不阻塞分析。
// 数据库访问在锁外进行，慢查询不会拖住其他设备的采样处理；
// 同设备并发首见时先插入者胜出，后到的装配结果被丢弃
func (s *MonitorService) runtimeFor(deviceID string) *deviceRuntime {
	s.mu.Lock()
	if rt, ok := s.devices[deviceID]; ok {
		s.mu.Unlock()
		return rt
	}
	s.mu.Unlock()

	rt := s.buildRuntime(deviceID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.devices[deviceID]; ok {
		return existing
	}
	s.devices[deviceID] = rt
	return rt
}

// buildRuntime 装配设备的检测组件（含数据库访问，不持有服务锁）
func (s *MonitorService) buildRuntime(deviceID string) *deviceRuntime {
	thresholds := rules.DefaultThresholds()
	profile, err := s.profileRepo.GetProfile(deviceID)
	if err != nil {
		s.logger.Warn("Failed to load threshold profile, using defaults",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	} else {
		thresholds = thresholds.ForProfile(profile)
	}

	eval := rules.NewEvaluator(thresholds, s.config.Analysis.SampleRatePerMin)
	model := outlier.NewZScoreModel(s.config.Model.MinTrainSamples, s.logger)

	s.trainDevice(deviceID, model)

	return &deviceRuntime{
		detector: detector.NewDetector(s.windowStore, s.extractor, eval, model, s.fusion, s.logger),
		model:    model,
	}
}

// trainDevice 用已确认正常的样本训练设备的个性化基线
func (s *MonitorService) trainDevice(deviceID string, model *outlier.ZScoreModel) {
	samples, err := s.trainingRepo.GetConfirmedNormal(deviceID, trainingBatchLimit)
	if err != nil {
		s.logger.Warn("Failed to load training samples",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}

	if err := model.Fit(samples); err != nil {
		// 样本不足时依赖合成基线，属正常降级
		s.logger.Debug("Model fit skipped",
			zap.String("device_id", deviceID),
			zap.Int("samples", len(samples)),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Model baseline personalized",
		zap.String("device_id", deviceID),
		zap.Int("samples", len(samples)),
	)
}

// Start 启动采样订阅与后台重训练循环，循环随 ctx 取消而退出
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.Duration("retrain_interval", s.config.Model.RetrainInterval),
	)

	if s.consumer != nil {
		if err := s.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sample consumer: %w", err)
		}
	}

	go s.retrainLoop(ctx)
	return nil
}

// retrainLoop 周期性地为每个已知设备重训个性化基线
func (s *MonitorService) retrainLoop(ctx context.Context) {
	interval := s.config.Model.RetrainInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for deviceID, model := range s.snapshotDevices() {
				s.trainDevice(deviceID, model)
			}
		}
	}
}

func (s *MonitorService) snapshotDevices() map[string]*outlier.ZScoreModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*outlier.ZScoreModel, len(s.devices))
	for id, rt := range s.devices {
		out[id] = rt.model
	}
	return out
}

// Stop 停止服务并释放连接
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	s.pipeline.Stop()

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// buildDSN 构建数据库连接字符串
func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)
}
