package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ModeDevelopment 开发模式，不托管前端静态资源
	ModeDevelopment = "development"
	// ModeProduction 生产模式，托管 static_dir 下的前端构建产物
	ModeProduction = "production"

	// ProviderGemini 使用 Google Gemini (genai SDK)
	ProviderGemini = "gemini"
	// ProviderOpenAICompatible 使用 OpenAI 兼容的 chat/completions 接口
	ProviderOpenAICompatible = "openai_compatible"

	defaultGeminiModel = "gemini-3-flash-preview"
)

// Config 应用总配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Redis     RedisConfig     `yaml:"redis"`
	MinIO     MinIOConfig     `yaml:"minio"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logger    LoggerConfig    `yaml:"logger"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Address         string `yaml:"address"`
	Mode            string `yaml:"mode"`       // development | production
	StaticDir       string `yaml:"static_dir"` // 生产模式下的静态资源目录
	MaxBodyMB       int    `yaml:"max_body_mb"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// IsProduction 是否为生产模式
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Mode, ModeProduction)
}

// StoreConfig 单文件 SQLite 存储配置
type StoreConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	LogLevel      int    `yaml:"log_level"` // 1:Silent 2:Error 3:Warn 4:Info
	Lock          *bool  `yaml:"lock"`      // 是否对数据库文件加进程锁，默认开启
}

// LockEnabled 返回是否启用文件锁
func (s StoreConfig) LockEnabled() bool {
	return s.Lock == nil || *s.Lock
}

// EvaluatorConfig 简历评估（外部 AI）配置
type EvaluatorConfig struct {
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Timeout         string  `yaml:"timeout"`
	QPM             int     `yaml:"qpm"` // 每分钟最大请求数，0 表示不限流
	KeyringAccount  string  `yaml:"keyring_account"`
}

// RedisConfig Redis配置，address 为空时不启用
type RedisConfig struct {
	Address             string `yaml:"address"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	PoolSize            int    `yaml:"pool_size"`
	MinIdleConns        int    `yaml:"min_idle_conns"`
	DialTimeoutSeconds  int    `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	KeyPrefix           string `yaml:"key_prefix"`
	JobCacheTTLMinutes  int    `yaml:"job_cache_ttl_minutes"`
}

// MinIOConfig MinIO配置，endpoint 为空时不启用
type MinIOConfig struct {
	Endpoint          string `yaml:"endpoint"`
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
	UseSSL            bool   `yaml:"use_ssl"`
	Location          string `yaml:"location"`
	OriginalsBucket   string `yaml:"originals_bucket"`
	ParsedTextBucket  string `yaml:"parsed_text_bucket"`
	PresignExpiryMins int    `yaml:"presign_expiry_minutes"`
}

// RabbitMQConfig RabbitMQ配置，url 为空时不启用候选人事件通知
type RabbitMQConfig struct {
	URL            string `yaml:"url"`
	EventsExchange string `yaml:"events_exchange"`
	PublishTimeout string `yaml:"publish_timeout"`
}

// TracingConfig OpenTelemetry 配置
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SampleRatio  float64 `yaml:"sample_ratio"`
	ServiceName  string  `yaml:"service_name"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"` // json | pretty
	TimeFormat   string `yaml:"time_format"`
	ReportCaller bool   `yaml:"report_caller"`
	File         string `yaml:"file"`
}

// LoadConfig 从文件加载配置，随后应用环境变量覆盖和默认值。
// configPath 为空时依次查找常见位置，都不存在则只使用默认值。
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = findConfigFile()
	}

	config := &Config{}
	if configPath != "" {
		loaded, err := LoadConfigFromFileOnly(configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	applyEnvOverrides(config)
	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigFromFileOnly 仅从文件加载配置，不处理环境变量和默认值
func LoadConfigFromFileOnly(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("配置文件不存在: %s", configPath)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return &config, nil
}

func findConfigFile() string {
	searchPaths := []string{
		"config.yaml",
		filepath.Join("configs", "config.yaml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".recruit-dashboard", "config.yaml"))
	}
	if execPath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(execPath), "config.yaml"))
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Evaluator.APIKey = v
	} else if v := os.Getenv("LLM_API_KEY"); v != "" {
		config.Evaluator.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		config.Evaluator.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		config.Evaluator.Model = v
	}
	// APP_ENV 优先于 NODE_ENV；除 production 外一律视为开发模式
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("NODE_ENV")
	}
	if env != "" {
		if strings.EqualFold(env, ModeProduction) {
			config.Server.Mode = ModeProduction
		} else {
			config.Server.Mode = ModeDevelopment
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		config.Server.Address = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		config.Store.Path = v
	}
}

func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":3000"
	}
	if config.Server.Mode == "" {
		config.Server.Mode = ModeDevelopment
	}
	if config.Server.StaticDir == "" {
		config.Server.StaticDir = "dist"
	}
	if config.Server.MaxBodyMB <= 0 {
		config.Server.MaxBodyMB = 10
	}
	if config.Server.ShutdownTimeout == "" {
		config.Server.ShutdownTimeout = "5s"
	}

	if config.Store.Path == "" {
		config.Store.Path = "candidates.db"
	}
	if config.Store.BusyTimeoutMS <= 0 {
		config.Store.BusyTimeoutMS = 5000
	}
	if config.Store.LogLevel <= 0 {
		config.Store.LogLevel = 2
	}

	if config.Evaluator.Provider == "" {
		config.Evaluator.Provider = ProviderGemini
	}
	if config.Evaluator.Model == "" && config.Evaluator.Provider == ProviderGemini {
		config.Evaluator.Model = defaultGeminiModel
	}
	if config.Evaluator.Timeout == "" {
		config.Evaluator.Timeout = "60s"
	}
	if config.Evaluator.KeyringAccount == "" {
		config.Evaluator.KeyringAccount = config.Evaluator.Provider
	}

	if config.Redis.KeyPrefix == "" {
		config.Redis.KeyPrefix = "recruit"
	}
	if config.Redis.JobCacheTTLMinutes <= 0 {
		config.Redis.JobCacheTTLMinutes = 24 * 60
	}
	if config.Redis.PoolSize <= 0 {
		config.Redis.PoolSize = 10
	}
	if config.Redis.DialTimeoutSeconds <= 0 {
		config.Redis.DialTimeoutSeconds = 5
	}
	if config.Redis.ReadTimeoutSeconds <= 0 {
		config.Redis.ReadTimeoutSeconds = 3
	}
	if config.Redis.WriteTimeoutSeconds <= 0 {
		config.Redis.WriteTimeoutSeconds = 3
	}

	if config.MinIO.OriginalsBucket == "" {
		config.MinIO.OriginalsBucket = "resume-originals"
	}
	if config.MinIO.ParsedTextBucket == "" {
		config.MinIO.ParsedTextBucket = "resume-parsed-text"
	}
	if config.MinIO.Location == "" {
		config.MinIO.Location = "us-east-1"
	}
	if config.MinIO.PresignExpiryMins <= 0 {
		config.MinIO.PresignExpiryMins = 15
	}

	if config.RabbitMQ.EventsExchange == "" {
		config.RabbitMQ.EventsExchange = "recruit.candidates"
	}
	if config.RabbitMQ.PublishTimeout == "" {
		config.RabbitMQ.PublishTimeout = "3s"
	}

	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = "recruit-dashboard"
	}
	if config.Tracing.SampleRatio <= 0 {
		config.Tracing.SampleRatio = 1
	}

	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Logger.Format == "" {
		config.Logger.Format = "pretty"
	}
}

// Validate 检查配置的合法性
func (c *Config) Validate() error {
	switch strings.ToLower(c.Server.Mode) {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("server.mode 不合法: %q (可选: %s, %s)", c.Server.Mode, ModeDevelopment, ModeProduction)
	}
	switch c.Evaluator.Provider {
	case ProviderGemini, ProviderOpenAICompatible:
	default:
		return fmt.Errorf("evaluator.provider 不合法: %q", c.Evaluator.Provider)
	}
	if c.Evaluator.Provider == ProviderOpenAICompatible && c.Evaluator.Model == "" {
		return fmt.Errorf("evaluator.model 不能为空 (provider=%s)", c.Evaluator.Provider)
	}
	if c.Evaluator.QPM < 0 {
		return fmt.Errorf("evaluator.qpm 不能为负数: %d", c.Evaluator.QPM)
	}
	if c.Tracing.Enabled && c.Tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.enabled 为 true 时 otlp_endpoint 不能为空")
	}
	return nil
}

func createDefaultConfig() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// CreateSampleConfig 在指定路径生成示例配置文件，文件已存在时不覆盖
func CreateSampleConfig(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("文件 '%s' 已存在，不会覆盖", filePath)
	}

	data, err := yaml.Marshal(createDefaultConfig())
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入示例配置文件 '%s' 失败: %w", filePath, err)
	}
	return nil
}

// GetDuration 解析时长字符串，失败时返回默认值
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
