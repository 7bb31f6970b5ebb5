package config

import (
	"time"

	"sift/pkg/tracing"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Ingest         IngestConfig
	Dedup          DedupConfig
	Secrets        SecretsConfig
	Enrichment     EnrichmentConfig
	Storage        StorageConfig
	Processors     []ProcessorConfig
	CircuitBreaker CircuitBreakerConfig
	Tracing        tracing.Config
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Redis   RedisConfig
	MongoDB MongoDBConfig
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string    `mapstructure:"brokers"`
	GroupID       string      `mapstructure:"group_id"`
	CheckoutTopic string      `mapstructure:"checkout_topic"`
	DLQTopic      string      `mapstructure:"dlq_topic"`
	BatchSize     int         `mapstructure:"batch_size"`
	Retry         RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type IngestConfig struct {
	AllowOrigin string          `mapstructure:"allow_origin"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type DedupConfig struct {
	Window        time.Duration `mapstructure:"window"`
	HashAlgorithm string        `mapstructure:"hash_algorithm"`
}

type SecretsConfig struct {
	// Key is the secret-store identifier holding the JSON credential bundle.
	Key string `mapstructure:"key"`
}

type EnrichmentConfig struct {
	DeviceProfile DeviceProfileConfig `mapstructure:"device_profile"`
	TMX           TMXConfig           `mapstructure:"tmx"`
}

type DeviceProfileConfig struct {
	// Address is a static host:port override; when empty the address is
	// resolved once via DiscoveryURL and cached for the process lifetime.
	Address      string        `mapstructure:"address"`
	DiscoveryURL string        `mapstructure:"discovery_url"`
	Port         int           `mapstructure:"port"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type TMXConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Collection string `mapstructure:"collection"`
}

type ProcessorConfig struct {
	Name         string `mapstructure:"name"`
	SessionField string `mapstructure:"session_field"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	Enrichment   string `mapstructure:"enrichment"`
	GroupID      string `mapstructure:"group_id"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
