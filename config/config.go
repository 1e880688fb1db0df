package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量覆盖配置时使用的前缀，例如 RESUME_SERVER_PORT
const EnvPrefix = "RESUME"

// GeminiKeyEnv Gemini密钥未配置时读取的环境变量
const GeminiKeyEnv = "GOOGLE_GEMINI_API_KEY"

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	VectorDB VectorDBConfig `mapstructure:"vectordb"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string        `mapstructure:"host"`                                     // 服务器主机
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`          // 服务器端口
	Mode           string        `mapstructure:"mode" validate:"oneof=debug release test"` // gin运行模式
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=0"`         // 单次分析超时
	MaxUploadMB    int           `mapstructure:"max_upload_mb" validate:"min=1"`           // 上传大小限制(MB)
	CORS           bool          `mapstructure:"cors"`                                     // 是否允许跨域
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn warning error"` // 日志级别
	File       string `mapstructure:"file"`                                                 // 日志文件，为空只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`                         // 单个日志文件大小(MB)
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`                         // 保留的旧日志数量
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`                        // 旧日志保留天数
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=gemini tongyi"` // 提供商
	Model      string        `mapstructure:"model"`                                   // 模型名称
	APIKey     string        `mapstructure:"api_key"`                                 // API密钥
	BaseURL    string        `mapstructure:"base_url" validate:"omitempty,url"`       // API基础地址
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`                // 请求超时
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0"`            // 最大重试次数
	Dimensions int           `mapstructure:"dimensions" validate:"min=0"`             // 输出维度，0使用模型默认值
	Workers    int           `mapstructure:"workers" validate:"min=1"`                // 并发请求数，1为顺序执行
	RateLimit  float64       `mapstructure:"rate_limit" validate:"min=0"`             // 每秒请求数，0不限制
	CacheTTL   time.Duration `mapstructure:"cache_ttl" validate:"min=0"`              // 向量缓存时间
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=gemini tongyi"` // 提供商
	Model       string        `mapstructure:"model"`                                   // 模型名称
	APIKey      string        `mapstructure:"api_key"`                                 // API密钥
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`       // API基础地址
	MaxTokens   int           `mapstructure:"max_tokens" validate:"min=0"`             // 最大生成token数量
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`      // 采样温度
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=0"`                // 请求超时
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0"`            // 最大重试次数
}

// AnalysisConfig 分析默认参数
type AnalysisConfig struct {
	ChunkSize int    `mapstructure:"chunk_size" validate:"min=1"` // 分块大小（字符数）
	TopK      int    `mapstructure:"top_k" validate:"min=1"`      // 检索分块数量
	Query     string `mapstructure:"query"`                       // 默认问题，为空使用内置问题
}

// VectorDBConfig 向量索引配置
type VectorDBConfig struct {
	Type string `mapstructure:"type" validate:"oneof=flat faiss"` // 索引实现
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool          `mapstructure:"enable"`                                    // 是否启用缓存
	Type     string        `mapstructure:"type" validate:"oneof=memory redis"`        // 缓存类型
	Address  string        `mapstructure:"address" validate:"required_if=Type redis"` // Redis地址
	Password string        `mapstructure:"password"`                                  // Redis密码
	DB       int           `mapstructure:"db" validate:"min=0"`                       // Redis数据库
	TTL      time.Duration `mapstructure:"ttl" validate:"min=0"`                      // 默认过期时间
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enable bool   `mapstructure:"enable"`                       // 是否保存分析记录
	Type   string `mapstructure:"type" validate:"oneof=sqlite"` // 数据库类型
	DSN    string `mapstructure:"dsn" validate:"required"`      // 数据源名称
}

// StorageConfig 上传文件存档配置
type StorageConfig struct {
	Enable    bool   `mapstructure:"enable"`                                     // 是否存档上传文件
	Type      string `mapstructure:"type" validate:"oneof=local minio"`          // 存储类型
	Path      string `mapstructure:"path" validate:"required_if=Type local"`     // 本地存储路径
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Type minio"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`                                 // MinIO访问密钥
	SecretKey string `mapstructure:"secret_key"`                                 // MinIO秘密密钥
	Bucket    string `mapstructure:"bucket" validate:"required_if=Type minio"`   // MinIO桶名称
	UseSSL    bool   `mapstructure:"use_ssl"`                                    // 是否使用SSL
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable      bool   `mapstructure:"enable"`                                     // 是否启用异步分析
	Address     string `mapstructure:"address" validate:"required_if=Enable true"` // Redis地址
	Password    string `mapstructure:"password"`                                   // Redis密码
	DB          int    `mapstructure:"db" validate:"min=0"`                        // Redis数据库编号
	Concurrency int    `mapstructure:"concurrency" validate:"min=1"`               // 工作者并发数
	RetryLimit  int    `mapstructure:"retry_limit" validate:"min=0"`               // 任务最大重试次数
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`                                  // 是否暴露Prometheus指标
	Path   string `mapstructure:"path" validate:"required_if=Enable true"` // 指标路径
}

// MaxUploadBytes 上传大小限制（字节）
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Address 监听地址
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load 从文件和环境变量加载配置
// configPath为空时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 支持环境变量覆盖，例如 RESUME_EMBED_API_KEY
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			logrus.Warnf("Config file not found at %s, using defaults", configPath)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	processEnvironmentVariables(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv 替换值中的 ${ENV_VAR}，未设置的变量替换为空串
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// processEnvironmentVariables 处理配置项中的环境变量引用
func processEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.Log.File,
		&cfg.Embed.APIKey,
		&cfg.Embed.BaseURL,
		&cfg.LLM.APIKey,
		&cfg.LLM.BaseURL,
		&cfg.Analysis.Query,
		&cfg.Cache.Address,
		&cfg.Cache.Password,
		&cfg.Database.DSN,
		&cfg.Storage.Path,
		&cfg.Storage.Endpoint,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Storage.Bucket,
		&cfg.Queue.Address,
		&cfg.Queue.Password,
	} {
		*field = expandEnv(*field)
	}

	// Gemini密钥回退到 GOOGLE_GEMINI_API_KEY
	geminiKey := os.Getenv(GeminiKeyEnv)
	if cfg.Embed.Provider == "gemini" && cfg.Embed.APIKey == "" {
		cfg.Embed.APIKey = geminiKey
	}
	if cfg.LLM.Provider == "gemini" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = geminiKey
	}
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.cors", true)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	// Embedding默认配置
	v.SetDefault("embed.provider", "gemini")
	v.SetDefault("embed.model", "gemini-embedding-001")
	v.SetDefault("embed.api_key", "")
	v.SetDefault("embed.base_url", "")
	v.SetDefault("embed.timeout", "30s")
	v.SetDefault("embed.max_retries", 0)
	v.SetDefault("embed.dimensions", 0)
	v.SetDefault("embed.workers", 1)
	v.SetDefault("embed.rate_limit", 0)
	v.SetDefault("embed.cache_ttl", "24h")

	// LLM默认配置
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 0)

	// 分析默认配置
	v.SetDefault("analysis.chunk_size", 500)
	v.SetDefault("analysis.top_k", 3)
	v.SetDefault("analysis.query", "")

	v.SetDefault("vectordb.type", "flat")

	// 缓存默认配置
	v.SetDefault("cache.enable", false)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "24h")

	// 数据库默认配置
	v.SetDefault("database.enable", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/resume.db")

	// 存储默认配置
	v.SetDefault("storage.enable", false)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/uploads")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "resumes")
	v.SetDefault("storage.use_ssl", false)

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.address", "localhost:6379")
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 0)

	// 指标默认配置
	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
