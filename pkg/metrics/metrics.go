package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FanoutRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_records_total",
			Help: "Total number of records processed by the fan-out service (count)",
		},
		[]string{"status"},
	)

	FanoutProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanout_processing_duration_ms",
			Help:    "Processing duration for the fan-out pipeline in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	FanoutNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_notifications_total",
			Help: "Total number of notification publishes attempted by the fan-out service (count)",
		},
		[]string{"status"},
	)

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of durable store operations (count)",
		},
		[]string{"backend", "operation", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_ms",
			Help:    "Duration of durable store operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"backend", "operation"},
	)

	GeneratorRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_records_total",
			Help: "Total number of synthetic records produced by the generator (count)",
		},
		[]string{"status"},
	)

	GeneratorEmitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generator_emit_duration_ms",
			Help:    "Duration of a single stream append in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	GeneratorBootstrapTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_bootstrap_total",
			Help: "Total number of analytics bootstrap attempts (count)",
		},
		[]string{"result"},
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

func RegisterFanoutMetrics() {
	prometheus.MustRegister(FanoutRecordsTotal)
	prometheus.MustRegister(FanoutProcessingDuration)
	prometheus.MustRegister(FanoutNotificationsTotal)
	prometheus.MustRegister(StoreOperationsTotal)
	prometheus.MustRegister(StoreOperationDuration)
}

func RegisterGeneratorMetrics() {
	prometheus.MustRegister(GeneratorRecordsTotal)
	prometheus.MustRegister(GeneratorEmitDuration)
	prometheus.MustRegister(GeneratorBootstrapTotal)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
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

func ObserveFanoutDuration(duration time.Duration, status string) {
	FanoutProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncFanoutRecord(status string) {
	FanoutRecordsTotal.WithLabelValues(status).Inc()
}

func IncFanoutNotification(status string) {
	FanoutNotificationsTotal.WithLabelValues(status).Inc()
}

func IncStoreOperation(backend, operation, status string) {
	StoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

func ObserveStoreDuration(backend, operation string, duration time.Duration) {
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(float64(duration.Milliseconds()))
}

func IncGeneratorRecord(status string) {
	GeneratorRecordsTotal.WithLabelValues(status).Inc()
}

func ObserveGeneratorEmitDuration(duration time.Duration) {
	GeneratorEmitDuration.Observe(float64(duration.Milliseconds()))
}

func IncGeneratorBootstrap(result string) {
	GeneratorBootstrapTotal.WithLabelValues(result).Inc()
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
