package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_events_received_total",
			Help: "Total number of raw events delivered by the transport (count)",
		},
		[]string{"transport"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_events_dropped_total",
			Help: "Total number of events dropped before routing (count)",
		},
		[]string{"reason"},
	)

	HandlersInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_handlers_in_flight",
			Help: "Number of event handlers currently running (count)",
		},
	)

	EventProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_event_processing_duration_ms",
			Help:    "Time from dedup admission to handler completion in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"status"},
	)

	DedupChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_checks_total",
			Help: "Total number of dedup gate checks (count)",
		},
		[]string{"backend", "status"},
	)

	DedupProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dedup_processing_duration_ms",
			Help:    "Dedup gate check duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	DedupCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_cache_size",
			Help: "Approximate number of live dedup entries (count)",
		},
	)

	CommandsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_commands_dispatched_total",
			Help: "Total number of routed commands (count)",
		},
		[]string{"command", "status"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_command_duration_ms",
			Help:    "Command handler duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"command"},
	)

	RepliesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_replies_sent_total",
			Help: "Total number of outbound sends by shape (count)",
		},
		[]string{"shape", "status"},
	)

	MediaFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_media_fetch_total",
			Help: "Total number of media fetches (count)",
		},
		[]string{"kind", "status"},
	)

	MediaFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_media_fetch_duration_ms",
			Help:    "Media fetch duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"kind"},
	)

	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_requests_total",
			Help: "Total number of text-generation backend requests (count)",
		},
		[]string{"status"},
	)

	CompletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "completion_request_duration_ms",
			Help:    "Text-generation backend request duration in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
	)

	TransportConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transport_connected",
			Help: "Whether the transport session is open (0 or 1)",
		},
		[]string{"transport"},
	)

	TransportReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_reconnects_total",
			Help: "Total number of transport reconnect attempts (count)",
		},
		[]string{"transport"},
	)

	FilteringMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filtering_messages_total",
			Help: "Total number of messages checked against the policy (count)",
		},
		[]string{"status"},
	)

	FilteringActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filtering_active_rules",
			Help: "Number of active policy rules (count)",
		},
	)

	FilteringRuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filtering_rule_evaluations_total",
			Help: "Total number of policy rule evaluations (count)",
		},
		[]string{"rule_name", "result"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_read_duration_ms",
			Help:    "Duration of reading messages from Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)
)

var fallbackOnce sync.Once

func RegisterGatewayMetrics() {
	prometheus.MustRegister(EventsReceivedTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(HandlersInFlight)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(CommandsDispatchedTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(RepliesSentTotal)
	prometheus.MustRegister(MediaFetchTotal)
	prometheus.MustRegister(MediaFetchDuration)
	prometheus.MustRegister(CompletionRequestsTotal)
	prometheus.MustRegister(CompletionDuration)
}

func RegisterDedupMetrics() {
	prometheus.MustRegister(DedupChecksTotal)
	prometheus.MustRegister(DedupProcessingDuration)
	prometheus.MustRegister(DedupCacheSize)
	registerFallbackUsageTotalOnce()
}

func RegisterFilteringMetrics() {
	prometheus.MustRegister(FilteringMessagesTotal)
	prometheus.MustRegister(FilteringActiveRules)
	prometheus.MustRegister(FilteringRuleEvaluationsTotal)
	registerFallbackUsageTotalOnce()
}

func registerFallbackUsageTotalOnce() {
	fallbackOnce.Do(func() {
		prometheus.MustRegister(FallbackUsageTotal)
	})
}

func RegisterTransportMetrics() {
	prometheus.MustRegister(TransportConnected)
	prometheus.MustRegister(TransportReconnectsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaReadDuration)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveEventDuration(duration time.Duration, status string) {
	EventProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveDedupDuration(duration time.Duration, status string) {
	DedupProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveCommandDuration(command string, duration time.Duration) {
	CommandDuration.WithLabelValues(command).Observe(float64(duration.Milliseconds()))
}

func ObserveMediaFetchDuration(kind string, duration time.Duration) {
	MediaFetchDuration.WithLabelValues(kind).Observe(float64(duration.Milliseconds()))
}

func ObserveCompletionDuration(duration time.Duration) {
	CompletionDuration.Observe(float64(duration.Milliseconds()))
}

func SetDedupCacheSize(size int) {
	DedupCacheSize.Set(float64(size))
}

func SetFilteringActiveRules(count int) {
	FilteringActiveRules.Set(float64(count))
}

func SetTransportConnected(transport string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	TransportConnected.WithLabelValues(transport).Set(v)
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncFilteringRuleEvaluation(ruleName, result string) {
	FilteringRuleEvaluationsTotal.WithLabelValues(ruleName, result).Inc()
}
