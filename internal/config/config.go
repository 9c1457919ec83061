package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Storage        StorageConfig
	Tracing        TracingConfig `mapstructure:"tracing"`
	Redis          RedisConfig
	AI             AIConfig
	CORS           CORSConfig           `mapstructure:"cors"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Mastery        MasteryConfig        `mapstructure:"mastery"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAgeHours    int      `mapstructure:"max_age_hours"`
}

// RateLimitConfig 全局按 IP 限流；建议生成接口另按用户限流
type RateLimitConfig struct {
	MaxRequests             int `mapstructure:"max_requests"`
	WindowMinutes           int `mapstructure:"window_minutes"`
	SuggestionRequests      int `mapstructure:"suggestion_requests"`
	SuggestionWindowMinutes int `mapstructure:"suggestion_window_minutes"`
}

// AIConfig 概念建议生成配置
// Generator: function 调用外部生成函数; openai 直接调用 OpenAI 兼容接口 (含 Ollama)
type AIConfig struct {
	Generator     string        `mapstructure:"generator"`
	FunctionURL   string        `mapstructure:"function_url"`
	Provider      string        `mapstructure:"provider"`
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	Timeout       time.Duration `mapstructure:"timeout_seconds"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	// sqlite 使用
	Path string
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SampleRatio       float64 `mapstructure:"sample_ratio"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	// 建议批次保存时长（小时）
	BatchTTLHours int `mapstructure:"batch_ttl_hours"`
}

type RecommendationConfig struct {
	DefaultLimit          int     `mapstructure:"default_limit" validate:"gte=0"`
	PrerequisiteThreshold float64 `mapstructure:"prerequisite_threshold" validate:"gte=0,lte=1"`
}

// MasteryConfig 掌握度计算参数，未填写的项使用默认值
type MasteryConfig struct {
	EvidenceWeights   map[string]float64      `mapstructure:"evidence_weights" validate:"dive,keys,oneof=course_completion assessment practice time_spent,endkeys,gte=0"`
	RecencyDecay      *RecencyDecayConfig     `mapstructure:"recency_decay"`
	RecencyThresholds *RecencyThresholdConfig `mapstructure:"recency_thresholds"`
	MasteryThresholds map[string]BandConfig   `mapstructure:"mastery_thresholds" validate:"dive,keys,oneof=none beginner intermediate advanced mastered,endkeys"`
}

type RecencyDecayConfig struct {
	Recent   float64 `mapstructure:"recent" validate:"gte=0,lte=1"`
	Moderate float64 `mapstructure:"moderate" validate:"gte=0,lte=1"`
	Old      float64 `mapstructure:"old" validate:"gte=0,lte=1"`
}

type RecencyThresholdConfig struct {
	ModerateMonths int `mapstructure:"moderate_months" validate:"gt=0"`
	OldMonths      int `mapstructure:"old_months" validate:"gtfield=ModerateMonths"`
}

type BandConfig struct {
	Min float64 `mapstructure:"min" validate:"gte=0,lte=1"`
	Max float64 `mapstructure:"max" validate:"gte=0,lte=1,gtefield=Min"`
}

var validate = validator.New()

func (m *MasteryConfig) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid mastery config: %w", err)
	}
	if m.RecencyDecay != nil {
		if err := validate.Struct(m.RecencyDecay); err != nil {
			return fmt.Errorf("invalid mastery recency_decay: %w", err)
		}
	}
	if m.RecencyThresholds != nil {
		if err := validate.Struct(m.RecencyThresholds); err != nil {
			return fmt.Errorf("invalid mastery recency_thresholds: %w", err)
		}
	}
	for level, band := range m.MasteryThresholds {
		if err := validate.Struct(band); err != nil {
			return fmt.Errorf("invalid mastery band %q: %w", level, err)
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("KG")
	v.AutomaticEnv()

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.path", "DATABASE_PATH")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// AI
	v.BindEnv("ai.generator", "AI_GENERATOR")
	v.BindEnv("ai.function_url", "AI_FUNCTION_URL")
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")
	v.BindEnv("tracing.sample_ratio", "TRACING_SAMPLE_RATIO")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("redis.batch_ttl_hours", 24)
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("cors.max_age_hours", 12)
	v.SetDefault("rate_limit.max_requests", 1000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("rate_limit.suggestion_requests", 20)
	v.SetDefault("rate_limit.suggestion_window_minutes", 60)
	v.SetDefault("ai.generator", "function")
	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.retry_attempts", 2)
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("recommendation.default_limit", 10)
	v.SetDefault("recommendation.prerequisite_threshold", 0.6)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.AI.Timeout = cfg.AI.Timeout * time.Second

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if err := cfg.Mastery.Validate(); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg.Recommendation); err != nil {
		return nil, fmt.Errorf("invalid recommendation config: %w", err)
	}

	if cfg.Storage.Type == "local" && cfg.Storage.LocalPath != "" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}
