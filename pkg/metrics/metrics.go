package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "Total number of requests handled by the ingestion endpoint (count)",
		},
		[]string{"endpoint", "status"},
	)

	IngestPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_publish_duration_ms",
			Help:    "Duration of topic publishes from the ingestion endpoint in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"endpoint"},
	)

	DedupChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_checks_total",
			Help: "Total number of fingerprint checks performed by the deduplicator (count)",
		},
		[]string{"status"},
	)

	DedupWindowSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_window_size",
			Help: "Number of fingerprints currently held in the suppression window (count)",
		},
	)

	SecretFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secret_fetches_total",
			Help: "Total number of secret cache reads by outcome (count)",
		},
		[]string{"status"},
	)

	EnrichmentLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_lookups_total",
			Help: "Total number of enrichment lookups by provider and outcome (count)",
		},
		[]string{"provider", "status"},
	)

	EnrichmentLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichment_lookup_duration_ms",
			Help:    "Duration of enrichment lookups in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"provider"},
	)

	ProcessorMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_messages_total",
			Help: "Total number of messages handled by fan-out processors (count)",
		},
		[]string{"processor", "status"},
	)

	ProcessorBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_batch_duration_ms",
			Help:    "Duration of a full processor batch in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"processor"},
	)

	StorageWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_writes_total",
			Help: "Total number of object-store writes by processor and outcome (count)",
		},
		[]string{"processor", "status"},
	)

	StorageWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_write_duration_ms",
			Help:    "Duration of object-store writes in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"processor"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of consumer retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to the DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
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

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
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
)

func RegisterIngestMetrics() {
	prometheus.MustRegister(IngestRequestsTotal)
	prometheus.MustRegister(IngestPublishDuration)
	prometheus.MustRegister(DedupChecksTotal)
	prometheus.MustRegister(DedupWindowSize)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterSecretMetrics() {
	prometheus.MustRegister(SecretFetchesTotal)
}

func RegisterProcessorMetrics() {
	prometheus.MustRegister(ProcessorMessagesTotal)
	prometheus.MustRegister(ProcessorBatchDuration)
	prometheus.MustRegister(StorageWritesTotal)
	prometheus.MustRegister(StorageWriteDuration)
}

func RegisterEnrichmentMetrics() {
	prometheus.MustRegister(EnrichmentLookupsTotal)
	prometheus.MustRegister(EnrichmentLookupDuration)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveIngestPublishDuration(endpoint string, duration time.Duration) {
	IngestPublishDuration.WithLabelValues(endpoint).Observe(float64(duration.Milliseconds()))
}

func ObserveEnrichmentDuration(provider string, duration time.Duration) {
	EnrichmentLookupDuration.WithLabelValues(provider).Observe(float64(duration.Milliseconds()))
}

func ObserveProcessorBatchDuration(processor string, duration time.Duration) {
	ProcessorBatchDuration.WithLabelValues(processor).Observe(float64(duration.Milliseconds()))
}

func ObserveStorageWriteDuration(processor string, duration time.Duration) {
	StorageWriteDuration.WithLabelValues(processor).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func SetDedupWindowSize(size int) {
	DedupWindowSize.Set(float64(size))
}
