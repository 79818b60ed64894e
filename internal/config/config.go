package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Storage      StorageConfig
	Tracing      TracingConfig `mapstructure:"tracing"`
	Redis        RedisConfig
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Progress     ProgressConfig     `mapstructure:"progress"`
	Notification NotificationConfig `mapstructure:"notification"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

// DatabaseConfig Driver 为 memory 时使用进程内存储（本地调试用）
type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string        `mapstructure:"type"`
	LocalPath     string        `mapstructure:"local_path"`
	MinioEndpoint string        `mapstructure:"minio_endpoint"`
	MinioAccessID string        `mapstructure:"minio_access_key"`
	MinioSecret   string        `mapstructure:"minio_secret_key"`
	MinioBucket   string        `mapstructure:"minio_bucket"`
	MinioSecure   bool          `mapstructure:"minio_secure"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ProgressConfig 学习进度相关参数
type ProgressConfig struct {
	VideoThreshold float64        `mapstructure:"video_threshold"`
	CacheTTL       time.Duration  `mapstructure:"cache_ttl"`
	Weights        ProgressWeight `mapstructure:"weights"`
}

type ProgressWeight struct {
	Lessons     float64 `mapstructure:"lessons"`
	Quizzes     float64 `mapstructure:"quizzes"`
	Assignments float64 `mapstructure:"assignments"`
}

type NotificationConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SendgridAPIKey string        `mapstructure:"sendgrid_api_key"`
	FromEmail      string        `mapstructure:"from_email"`
	AppName        string        `mapstructure:"app_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.presign_expiry", "1h")
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("progress.video_threshold", 0.8)
	v.SetDefault("progress.cache_ttl", "30s")
	v.SetDefault("progress.weights.lessons", 1.0)
	v.SetDefault("progress.weights.quizzes", 1.0)
	v.SetDefault("progress.weights.assignments", 1.0)
	v.SetDefault("notification.concurrency", 16)
	v.SetDefault("notification.timeout", "10s")
	v.SetDefault("notification.app_name", "EduProgress")
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EDU_PROGRESS")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Notification
	v.BindEnv("notification.sendgrid_api_key", "SENDGRID_API_KEY")
	v.BindEnv("notification.from_email", "NOTIFICATION_FROM_EMAIL")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if err := cfg.Progress.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 阈值必须落在 (0,1]，权重不能为负
func (p ProgressConfig) Validate() error {
	if p.VideoThreshold <= 0 || p.VideoThreshold > 1 {
		return fmt.Errorf("progress.video_threshold must be in (0,1], got %v", p.VideoThreshold)
	}
	w := p.Weights
	if w.Lessons < 0 || w.Quizzes < 0 || w.Assignments < 0 {
		return fmt.Errorf("progress.weights must not be negative")
	}
	if w.Lessons+w.Quizzes+w.Assignments == 0 {
		return fmt.Errorf("progress.weights must not all be zero")
	}
	return nil
}
