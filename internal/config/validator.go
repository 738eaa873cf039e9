package config

import (
	"fmt"
	"strings"

	"chatgate/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateGateway(cfg.Gateway); err != nil {
		errors = append(errors, err)
	}

	if err := validateDedup(cfg.Dedup, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateReply(cfg.Reply); err != nil {
		errors = append(errors, err)
	}

	if err := validateTransport(cfg.Transport); err != nil {
		errors = append(errors, err)
	}

	if err := validateFiltering(cfg.Filtering); err != nil {
		errors = append(errors, err)
	}

	if err := validateCompletion(cfg.Completion); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0) {
		return &ValidationError{
			Field:   "server.rate_limit",
			Message: "rps and burst must be positive when rate limiting is enabled",
		}
	}

	return nil
}

func validateGateway(cfg GatewayConfig) error {
	if cfg.CommandPrefix == "" {
		return &ValidationError{
			Field:   "gateway.command_prefix",
			Message: "command prefix is required",
		}
	}

	if strings.TrimSpace(cfg.CommandPrefix) != cfg.CommandPrefix {
		return &ValidationError{
			Field:   "gateway.command_prefix",
			Message: "command prefix must not contain surrounding whitespace",
		}
	}

	if cfg.MaxConcurrentHandlers < 0 {
		return &ValidationError{
			Field:   "gateway.max_concurrent_handlers",
			Message: "max_concurrent_handlers must be non-negative",
		}
	}

	return nil
}

func validateDedup(cfg DedupConfig, db DatabaseConfig) error {
	if cfg.Window <= 0 {
		return &ValidationError{
			Field:   "dedup.window",
			Message: "window must be positive",
		}
	}

	switch cfg.Backend {
	case constants.DedupBackendMemory:
		if cfg.MaxEntries <= 0 {
			return &ValidationError{
				Field:   "dedup.max_entries",
				Message: "max_entries must be positive for the memory backend",
			}
		}
	case constants.DedupBackendRedis:
		if err := validateRedis(db.Redis); err != nil {
			return err
		}
	default:
		return &ValidationError{
			Field:   "dedup.backend",
			Message: fmt.Sprintf("unknown dedup backend: %s (supported: memory, redis)", cfg.Backend),
		}
	}

	if cfg.SweepInterval < 0 {
		return &ValidationError{
			Field:   "dedup.sweep_interval",
			Message: "sweep_interval must be non-negative",
		}
	}

	if err := validateFallback("dedup.on_store_error", cfg.OnStoreError); err != nil {
		return err
	}

	return nil
}

func validateReply(cfg ReplyConfig) error {
	if cfg.MaxVideoBytes <= 0 {
		return &ValidationError{
			Field:   "reply.max_video_bytes",
			Message: "max_video_bytes must be positive",
		}
	}
	return nil
}

func validateTransport(cfg TransportConfig) error {
	switch cfg.AuthMode {
	case constants.AuthModeQR:
	case constants.AuthModePairingCode:
		if cfg.PairingPhone == "" {
			return &ValidationError{
				Field:   "transport.pairing_phone",
				Message: "pairing_phone is required when auth_mode is pairing_code",
			}
		}
	default:
		return &ValidationError{
			Field:   "transport.auth_mode",
			Message: fmt.Sprintf("unknown auth mode: %s (supported: qr, pairing_code)", cfg.AuthMode),
		}
	}

	switch cfg.Type {
	case constants.TransportBridge:
		return validateBridge(cfg.Bridge)
	case constants.TransportKafka:
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "transport.type",
			Message: fmt.Sprintf("unknown transport type: %s (supported: bridge, kafka)", cfg.Type),
		}
	}
}

func validateBridge(cfg BridgeConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "transport.bridge.url",
			Message: "bridge URL is required",
		}
	}

	if !strings.HasPrefix(cfg.URL, "ws://") && !strings.HasPrefix(cfg.URL, "wss://") {
		return &ValidationError{
			Field:   "transport.bridge.url",
			Message: "bridge URL must start with ws:// or wss://",
		}
	}

	return validateRetry("transport.bridge.reconnect", cfg.Reconnect)
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "transport.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("transport.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "transport.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	return validateRetry("transport.kafka.retry", cfg.Retry)
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   field + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   field + ".multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateFiltering(cfg FilteringConfig) error {
	for i, rule := range cfg.Rules {
		if rule.Enabled && strings.TrimSpace(rule.Expression) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("filtering.rules[%d].expression", i),
				Message: "enabled rule requires an expression",
			}
		}
	}

	return validateFallback("filtering.fallback.on_error", cfg.Fallback.OnError)
}

func validateCompletion(cfg CompletionConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.BaseURL == "" {
		return &ValidationError{
			Field:   "completion.base_url",
			Message: "base_url is required when completion is enabled",
		}
	}

	if cfg.Model == "" {
		return &ValidationError{
			Field:   "completion.model",
			Message: "model is required when completion is enabled",
		}
	}

	return validateRetry("completion.retry", cfg.Retry)
}

func validateFallback(field, value string) error {
	switch strings.ToLower(value) {
	case "", constants.FallbackAllow, constants.FallbackDeny:
		return nil
	default:
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid fallback value: %s (valid: allow, deny)", value),
		}
	}
}
