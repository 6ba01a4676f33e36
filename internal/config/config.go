package config

import (
	"os"
	"strconv"
	"time"
)

// Config 生理监测报警服务配置
type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
		SSLMode  string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	MQTT struct {
		Broker   string
		ClientID string
		Username string
		Password string
		// 推送通道的主题前缀，如 "vitalguard/alerts/"
		TopicPrefix string
		// 采样订阅主题，如 "vitalguard/samples/+"（末段为设备 ID）
		SampleTopic string
		QoS         byte
	}

	// 滑动窗口配置
	Window struct {
		KeyPrefix string        // Redis 键前缀，如 "vitalguard:window:"
		Capacity  int           // 每设备最大采样数，默认 120
		TTL       time.Duration // 窗口键的过期时间（清理长期无数据的设备）
	}

	// 特征提取 / 规则评估配置
	Analysis struct {
		MinSamples        int     // 完整分析所需的最小采样数，默认 30
		ActivityThreshold int     // 静息判定的步数阈值，默认 50
		SampleRatePerMin  float64 // 每分钟采样数（用于把趋势换算为每分钟变化率），默认 12
	}

	// 风险融合配置
	// 注意：权重与分界点是运维默认值，并非经过验证的临床阈值
	Fusion struct {
		RuleWeight         float64 // 规则信号权重，默认 0.7
		ModelWeight        float64 // 模型信号权重，默认 0.3
		CriticalBreakpoint float64 // 默认 0.75
		HighBreakpoint     float64 // 默认 0.50
		MediumBreakpoint   float64 // 默认 0.25
		AlertThreshold     float64 // requires_alert 的风险分界，默认 0.5
	}

	// 离群模型配置
	Model struct {
		MinTrainSamples int           // 个性化训练的最小样本数，默认 100
		RetrainInterval time.Duration // 后台重训练间隔，默认 24h
	}

	// 节流配置
	Throttle struct {
		KeyPrefix string        // Redis 键前缀，如 "vitalguard:throttle:"
		Cooldown  time.Duration // 同类报警冷却时间，默认 5 分钟
	}

	// 报警管道配置
	Pipeline struct {
		HistorySize     int           // 报警历史环形缓冲容量，默认 100
		WorkerPoolSize  int           // 通道投递工作池大小，默认 8
		DeliveryTimeout time.Duration // 单通道投递超时，默认 10s
		InAppKeyPrefix  string        // 应用内报警缓存键前缀
		InAppTTL        time.Duration // 应用内报警缓存 TTL
		AlertStream     string        // 实时推送流的 stream 名称
	}

	// 说明文本生成器配置
	Explain struct {
		BaseURL     string        // 为空则禁用，直接使用预置文案
		Timeout     time.Duration // 单次调用超时，默认 2s
		Temperature float64
		MaxTokens   int
	}

	// 紧急通道（短信级 webhook）配置
	Urgent struct {
		WebhookURL string // 为空则不注册紧急通道
		Timeout    time.Duration
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量优先，未设置时使用默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "vitalguard")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "vitalguard")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "vitalguard/alerts/")
	cfg.MQTT.SampleTopic = getEnv("MQTT_SAMPLE_TOPIC", "vitalguard/samples/+")
	cfg.MQTT.QoS = 1

	cfg.Window.KeyPrefix = getEnv("WINDOW_KEY_PREFIX", "vitalguard:window:")
	cfg.Window.Capacity = getEnvInt("WINDOW_CAPACITY", 120)
	cfg.Window.TTL = getEnvDuration("WINDOW_TTL", 24*time.Hour)

	cfg.Analysis.MinSamples = getEnvInt("ANALYSIS_MIN_SAMPLES", 30)
	cfg.Analysis.ActivityThreshold = getEnvInt("ANALYSIS_ACTIVITY_THRESHOLD", 50)
	cfg.Analysis.SampleRatePerMin = getEnvFloat("ANALYSIS_SAMPLE_RATE_PER_MIN", 12)

	cfg.Fusion.RuleWeight = getEnvFloat("FUSION_RULE_WEIGHT", 0.7)
	cfg.Fusion.ModelWeight = getEnvFloat("FUSION_MODEL_WEIGHT", 0.3)
	cfg.Fusion.CriticalBreakpoint = getEnvFloat("FUSION_CRITICAL_BREAKPOINT", 0.75)
	cfg.Fusion.HighBreakpoint = getEnvFloat("FUSION_HIGH_BREAKPOINT", 0.50)
	cfg.Fusion.MediumBreakpoint = getEnvFloat("FUSION_MEDIUM_BREAKPOINT", 0.25)
	cfg.Fusion.AlertThreshold = getEnvFloat("FUSION_ALERT_THRESHOLD", 0.5)

	cfg.Model.MinTrainSamples = getEnvInt("MODEL_MIN_TRAIN_SAMPLES", 100)
	cfg.Model.RetrainInterval = getEnvDuration("MODEL_RETRAIN_INTERVAL", 24*time.Hour)

	cfg.Throttle.KeyPrefix = getEnv("THROTTLE_KEY_PREFIX", "vitalguard:throttle:")
	cfg.Throttle.Cooldown = getEnvDuration("THROTTLE_COOLDOWN", 5*time.Minute)

	cfg.Pipeline.HistorySize = getEnvInt("PIPELINE_HISTORY_SIZE", 100)
	cfg.Pipeline.WorkerPoolSize = getEnvInt("PIPELINE_WORKER_POOL_SIZE", 8)
	cfg.Pipeline.DeliveryTimeout = getEnvDuration("PIPELINE_DELIVERY_TIMEOUT", 10*time.Second)
	cfg.Pipeline.InAppKeyPrefix = getEnv("PIPELINE_INAPP_KEY_PREFIX", "vitalguard:device:")
	cfg.Pipeline.InAppTTL = getEnvDuration("PIPELINE_INAPP_TTL", 30*time.Second)
	cfg.Pipeline.AlertStream = getEnv("PIPELINE_ALERT_STREAM", "vitalguard:alerts")

	cfg.Explain.BaseURL = getEnv("EXPLAIN_BASE_URL", "")
	cfg.Explain.Timeout = getEnvDuration("EXPLAIN_TIMEOUT", 2*time.Second)
	cfg.Explain.Temperature = getEnvFloat("EXPLAIN_TEMPERATURE", 0.3)
	cfg.Explain.MaxTokens = getEnvInt("EXPLAIN_MAX_TOKENS", 160)

	cfg.Urgent.WebhookURL = getEnv("URGENT_WEBHOOK_URL", "")
	cfg.Urgent.Timeout = getEnvDuration("URGENT_TIMEOUT", 10*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
