package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Gateway        GatewayConfig        `mapstructure:"gateway"`
	Dedup          DedupConfig          `mapstructure:"dedup"`
	Reply          ReplyConfig          `mapstructure:"reply"`
	Transport      TransportConfig      `mapstructure:"transport"`
	Database       DatabaseConfig       `mapstructure:"database"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Filtering      FilteringConfig      `mapstructure:"filtering"`
	Completion     CompletionConfig     `mapstructure:"completion"`
}

type ServerConfig struct {
	Port                int             `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration   `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration   `mapstructure:"write_timeout_seconds"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GatewayConfig struct {
	CommandPrefix         string `mapstructure:"command_prefix"`
	Owner                 string `mapstructure:"owner"`
	MaxConcurrentHandlers int    `mapstructure:"max_concurrent_handlers"`
}

type DedupConfig struct {
	Backend       string        `mapstructure:"backend"` // "memory" or "redis"
	Window        time.Duration `mapstructure:"window"`
	MaxEntries    int           `mapstructure:"max_entries"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	OnStoreError  string        `mapstructure:"on_store_error"` // "allow" or "deny"
}

type ReplyConfig struct {
	MaxVideoBytes int64 `mapstructure:"max_video_bytes"`
}

type TransportConfig struct {
	Type         string       `mapstructure:"type"`      // "bridge" or "kafka"
	AuthMode     string       `mapstructure:"auth_mode"` // "qr" or "pairing_code"
	PairingPhone string       `mapstructure:"pairing_phone"`
	Bridge       BridgeConfig `mapstructure:"bridge"`
	Kafka        KafkaConfig  `mapstructure:"kafka"`
	Media        MediaConfig  `mapstructure:"media"`
}

type BridgeConfig struct {
	URL              string        `mapstructure:"url"`
	Token            string        `mapstructure:"token"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	Reconnect        RetryConfig   `mapstructure:"reconnect"`
}

type KafkaConfig struct {
	Brokers     []string    `mapstructure:"brokers"`
	GroupID     string      `mapstructure:"group_id"`
	InputTopic  string      `mapstructure:"input_topic"`
	OutputTopic string      `mapstructure:"output_topic"`
	DLQTopic    string      `mapstructure:"dlq_topic"`
	SelfID      string      `mapstructure:"self_id"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type MediaConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
	SaveDir  string        `mapstructure:"save_dir"`
	Retry    RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type FilteringConfig struct {
	Rules    []FilterRule   `mapstructure:"rules"`
	Fallback FallbackConfig `mapstructure:"fallback"`
}

type FilterRule struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
	Enabled    bool   `mapstructure:"enabled"`
}

type FallbackConfig struct {
	OnError string `mapstructure:"on_error"` // "allow" or "deny" (default: "deny")
}

type CompletionConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retry        RetryConfig   `mapstructure:"retry"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
