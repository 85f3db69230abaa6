// =============================================================================
// 📦 Voxflow 配置结构与默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/voxflow/fallback"
	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/llm"
	"github.com/BaSui01/voxflow/speech"
)

// Config 是 Voxflow 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Cache 缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Session 会话配置
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// Storage 音频存储配置
	Storage StorageConfig `yaml:"storage" env:"STORAGE"`

	// TTS 文本转语音配置
	TTS TTSConfig `yaml:"tts" env:"TTS"`

	// STT 语音转文本配置
	STT STTConfig `yaml:"stt" env:"STT"`

	// LLM 回复生成配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// CORS 允许的来源,逗号分隔
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 每客户端限流速率(次/秒)
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// API Key 列表,配置后启用鉴权
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// JWT 签名密钥,配置后启用 JWT 鉴权
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// 上传音频大小上限(字节)
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	// 是否启用缓存,关闭后所有读取都未命中
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 后端类型: redis, memory
	Backend string `yaml:"backend" env:"BACKEND"`
	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	// Redis 后端配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	// 会话滑动过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// StorageConfig 音频存储配置
type StorageConfig struct {
	// 本地存储目录
	Dir string `yaml:"dir" env:"DIR"`
}

// TTSConfig 文本转语音配置
type TTSConfig struct {
	// 主 API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 备用 API Key 1
	BackupAPIKey1 string `yaml:"backup_api_key_1" env:"BACKUP_API_KEY_1"`
	// 备用 API Key 2
	BackupAPIKey2 string `yaml:"backup_api_key_2" env:"BACKUP_API_KEY_2"`
	// API 基础地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 声音 ID
	VoiceID string `yaml:"voice_id" env:"VOICE_ID"`
	// 模型
	Model string `yaml:"model" env:"MODEL"`
	// 输出格式
	OutputFormat string `yaml:"output_format" env:"OUTPUT_FORMAT"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 合成结果缓存过期时间
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// Credentials 按声明顺序返回已配置的凭证。
func (c TTSConfig) Credentials() []fallback.Credential {
	return buildCredentials(c.APIKey, c.BackupAPIKey1, c.BackupAPIKey2)
}

// ClientConfig 返回底层 TTS 客户端配置。
func (c TTSConfig) ClientConfig() speech.TTSConfig {
	return speech.TTSConfig{
		BaseURL:      c.BaseURL,
		VoiceID:      c.VoiceID,
		Model:        c.Model,
		OutputFormat: c.OutputFormat,
		Timeout:      c.Timeout,
	}
}

// STTConfig 语音转文本配置
type STTConfig struct {
	// 主 API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 备用 API Key 1
	BackupAPIKey1 string `yaml:"backup_api_key_1" env:"BACKUP_API_KEY_1"`
	// 备用 API Key 2
	BackupAPIKey2 string `yaml:"backup_api_key_2" env:"BACKUP_API_KEY_2"`
	// API 基础地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 转写结果缓存过期时间
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// Credentials 按声明顺序返回已配置的凭证。
func (c STTConfig) Credentials() []fallback.Credential {
	return buildCredentials(c.APIKey, c.BackupAPIKey1, c.BackupAPIKey2)
}

// ClientConfig 返回底层 STT 客户端配置。
func (c STTConfig) ClientConfig() speech.STTConfig {
	return speech.STTConfig{
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
	}
}

var credentialLabels = []string{"primary", "backup_1", "backup_2"}

// buildCredentials 跳过未配置的 key,保持声明顺序。
func buildCredentials(secrets ...string) []fallback.Credential {
	var creds []fallback.Credential
	for i, secret := range secrets {
		if secret == "" {
			continue
		}
		creds = append(creds, fallback.Credential{Label: credentialLabels[i], Secret: secret})
	}
	return creds
}

// LLMConfig 回复生成配置
type LLMConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// API 基础地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型
	Model string `yaml:"model" env:"MODEL"`
	// 系统人设
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	// 采样温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 单次回复 token 上限
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 回复缓存过期时间
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// ProviderConfig 返回底层 Mistral 提供者配置。
func (c LLMConfig) ProviderConfig() llm.MistralConfig {
	return llm.MistralConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
	}
}

// GeneratorConfig 返回回复生成服务配置。
func (c LLMConfig) GeneratorConfig() llm.GeneratorConfig {
	return llm.GeneratorConfig{
		SystemPrompt: c.SystemPrompt,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		CacheTTL:     c.CacheTTL,
	}
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// RedisStoreConfig 返回缓存层的 Redis 后端配置。
func (c CacheConfig) RedisStoreConfig() cache.RedisConfig {
	rc := cache.DefaultRedisConfig()
	rc.Addr = c.Redis.Addr
	rc.Password = c.Redis.Password
	rc.DB = c.Redis.DB
	if c.Redis.PoolSize > 0 {
		rc.PoolSize = c.Redis.PoolSize
	}
	if c.Redis.MinIdleConns > 0 {
		rc.MinIdleConns = c.Redis.MinIdleConns
	}
	if c.DefaultTTL > 0 {
		rc.DefaultTTL = c.DefaultTTL
	}
	return rc
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Cache:     DefaultCacheConfig(),
		Session:   SessionConfig{TTL: time.Hour},
		Storage:   StorageConfig{Dir: "data/audio"},
		TTS:       DefaultTTSConfig(),
		STT:       DefaultSTTConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    0.5,
		RateLimitBurst:  30,
		MaxUploadBytes:  16 << 20,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:    true,
		Backend:    "redis",
		DefaultTTL: time.Hour,
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
		},
	}
}

// DefaultTTSConfig 返回默认 TTS 配置
func DefaultTTSConfig() TTSConfig {
	def := speech.DefaultTTSConfig()
	return TTSConfig{
		BaseURL:      def.BaseURL,
		VoiceID:      def.VoiceID,
		Model:        def.Model,
		OutputFormat: def.OutputFormat,
		Timeout:      def.Timeout,
		CacheTTL:     time.Hour,
	}
}

// DefaultSTTConfig 返回默认 STT 配置
func DefaultSTTConfig() STTConfig {
	def := speech.DefaultSTTConfig()
	return STTConfig{
		BaseURL:  def.BaseURL,
		Model:    def.Model,
		Timeout:  def.Timeout,
		CacheTTL: time.Hour,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	def := llm.DefaultMistralConfig()
	gen := llm.DefaultGeneratorConfig()
	return LLMConfig{
		BaseURL:     def.BaseURL,
		Model:       def.Model,
		Temperature: gen.Temperature,
		MaxTokens:   gen.MaxTokens,
		Timeout:     def.Timeout,
		CacheTTL:    gen.CacheTTL,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "voxflow",
		SampleRate:   1.0,
	}
}
