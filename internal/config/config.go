package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Teach     TeachConfig `mapstructure:"teach"`
	Storage   StorageConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool   `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool   `mapstructure:"-"` // 仅迁移模式（迁移后退出）
	ImportGraph  string `mapstructure:"-"` // 启动时导入的图谱制品路径（导入后退出）
	ImportKB     string `mapstructure:"-"` // 图谱制品导入的目标知识库ID
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type AIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// TeachConfig 教学引擎策略参数
// 重试上限、阈值和步进规则都是可调默认值，不是固定契约
type TeachConfig struct {
	RetryLimit         int     `mapstructure:"retry_limit"`          // 检查点答错多少次后强制进入下一项
	PassThreshold      float64 `mapstructure:"pass_threshold"`       // 关键词得分达到视为正确
	PartialThreshold   float64 `mapstructure:"partial_threshold"`    // 关键词得分达到视为部分正确
	AcceptPartial      bool    `mapstructure:"accept_partial"`       // 部分正确是否允许通过检查点
	NavStackDepth      int     `mapstructure:"nav_stack_depth"`      // 导航栈最大深度
	ElaborationTimeout int     `mapstructure:"elaboration_timeout"`  // 内容生成超时（秒）
	JudgeTimeout       int     `mapstructure:"judge_timeout"`        // 语义评判超时（秒）
	SnapshotTTLMinutes int     `mapstructure:"snapshot_ttl_minutes"` // 图谱快照缓存时长
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
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

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("KBOT")
	viper.AutomaticEnv()

	viper.SetDefault("teach.accept_partial", true)

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

	// Teach
	viper.BindEnv("teach.retry_limit", "TEACH_RETRY_LIMIT")
	viper.BindEnv("teach.accept_partial", "TEACH_ACCEPT_PARTIAL")

	// Storage / OSS
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Teach.ApplyDefaults()
	if err := cfg.Teach.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// ApplyDefaults 填充未配置的策略参数
func (t *TeachConfig) ApplyDefaults() {
	if t.RetryLimit <= 0 {
		t.RetryLimit = 2
	}
	if t.PassThreshold <= 0 {
		t.PassThreshold = 0.6
	}
	if t.PartialThreshold <= 0 {
		t.PartialThreshold = 0.33
	}
	if t.NavStackDepth <= 0 {
		t.NavStackDepth = 20
	}
	if t.ElaborationTimeout <= 0 {
		t.ElaborationTimeout = 10
	}
	if t.JudgeTimeout <= 0 {
		t.JudgeTimeout = 8
	}
	if t.SnapshotTTLMinutes <= 0 {
		t.SnapshotTTLMinutes = 10
	}
}

func (t *TeachConfig) Validate() error {
	if t.PassThreshold > 1 || t.PartialThreshold > 1 {
		return fmt.Errorf("teach thresholds must be within (0,1], got pass=%.2f partial=%.2f", t.PassThreshold, t.PartialThreshold)
	}
	if t.PartialThreshold > t.PassThreshold {
		return fmt.Errorf("teach partial_threshold (%.2f) must not exceed pass_threshold (%.2f)", t.PartialThreshold, t.PassThreshold)
	}
	return nil
}
