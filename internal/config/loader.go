package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"chatgate/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "10s")

	viper.SetDefault("logging.level", "info")

	viper.SetDefault("gateway.command_prefix", constants.DefaultCommandPrefix)
	viper.SetDefault("gateway.max_concurrent_handlers", constants.DefaultMaxConcurrency)

	viper.SetDefault("dedup.backend", constants.DedupBackendMemory)
	viper.SetDefault("dedup.window", constants.DefaultDedupWindow)
	viper.SetDefault("dedup.max_entries", constants.DefaultDedupEntries)
	viper.SetDefault("dedup.sweep_interval", constants.DefaultSweepInterval)
	viper.SetDefault("dedup.on_store_error", constants.FallbackAllow)

	viper.SetDefault("reply.max_video_bytes", constants.DefaultMaxVideoBytes)

	viper.SetDefault("transport.type", constants.TransportBridge)
	viper.SetDefault("transport.auth_mode", constants.AuthModeQR)
	viper.SetDefault("transport.bridge.handshake_timeout", "10s")
	viper.SetDefault("transport.bridge.reconnect.initial_interval", "1s")
	viper.SetDefault("transport.bridge.reconnect.max_interval", "60s")
	viper.SetDefault("transport.bridge.reconnect.multiplier", 2.0)
	viper.SetDefault("transport.kafka.input_topic", constants.DefaultInputTopic)
	viper.SetDefault("transport.kafka.output_topic", constants.DefaultOutputTopic)
	viper.SetDefault("transport.kafka.retry.multiplier", 2.0)
	viper.SetDefault("transport.media.timeout", "30s")
	viper.SetDefault("transport.media.save_dir", "media")
	viper.SetDefault("transport.media.retry.max_attempts", 3)
	viper.SetDefault("transport.media.retry.initial_interval", "200ms")
	viper.SetDefault("transport.media.retry.max_interval", "2s")
	viper.SetDefault("transport.media.retry.multiplier", 2.0)

	viper.SetDefault("filtering.fallback.on_error", constants.FallbackDeny)

	viper.SetDefault("completion.timeout", "60s")
	viper.SetDefault("completion.retry.max_attempts", 2)
	viper.SetDefault("completion.retry.initial_interval", "500ms")
	viper.SetDefault("completion.retry.max_interval", "5s")
	viper.SetDefault("completion.retry.multiplier", 2.0)
}

func bindEnvVariables() {
	viper.BindEnv("transport.kafka.brokers", "TRANSPORT_KAFKA_BROKERS")
	viper.BindEnv("transport.kafka.group_id", "TRANSPORT_KAFKA_GROUP_ID")
	viper.BindEnv("transport.kafka.input_topic", "TRANSPORT_KAFKA_INPUT_TOPIC")
	viper.BindEnv("transport.kafka.output_topic", "TRANSPORT_KAFKA_OUTPUT_TOPIC")
	viper.BindEnv("transport.kafka.dlq_topic", "TRANSPORT_KAFKA_DLQ_TOPIC")

	viper.BindEnv("transport.bridge.url", "TRANSPORT_BRIDGE_URL")
	viper.BindEnv("transport.bridge.token", "TRANSPORT_BRIDGE_TOKEN")
	viper.BindEnv("transport.pairing_phone", "TRANSPORT_PAIRING_PHONE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("gateway.command_prefix", "GATEWAY_COMMAND_PREFIX")
	viper.BindEnv("gateway.owner", "GATEWAY_OWNER")

	viper.BindEnv("completion.api_key", "COMPLETION_API_KEY")
	viper.BindEnv("completion.base_url", "COMPLETION_BASE_URL")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("TRANSPORT_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Transport.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
