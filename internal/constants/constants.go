package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	HTTPStatusOKMin    = 200
	HTTPStatusOKMax    = 300
)

const (
	CacheKeyPrefixDedup = "chatgate:dedup:"
)

const (
	DefaultInputTopic  = "chat_events"
	DefaultOutputTopic = "chat_outbound"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultCommandPrefix  = "!"
	DefaultDedupWindow    = 420 * time.Second
	DefaultMaxVideoBytes  = 104857600
	DefaultDedupEntries   = 100000
	DefaultSweepInterval  = time.Minute
	DefaultTruncateLen    = 100
	DefaultMaxConcurrency = 0
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	DedupBackendMemory = "memory"
	DedupBackendRedis  = "redis"
)

const (
	TransportBridge = "bridge"
	TransportKafka  = "kafka"
)

const (
	AuthModeQR          = "qr"
	AuthModePairingCode = "pairing_code"
)

const (
	// UserServer is the server part appended to mention digits.
	UserServer  = "s.whatsapp.net"
	GroupServer = "g.us"
)
