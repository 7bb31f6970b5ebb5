package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                8080,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
		},
		Broker: BrokerConfig{
			Type: "kafka",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
			},
		},
		Dedup: DedupConfig{
			Window:        10 * time.Second,
			HashAlgorithm: "sha256",
		},
		Processors: []ProcessorConfig{
			{Name: "oak", SessionField: "session-id", KeyPrefix: "oak", Enrichment: "oak"},
			{Name: "tmx", SessionField: "session-id", KeyPrefix: "tmx", Enrichment: "tmx"},
			{Name: "tracker", SessionField: "sessionId", KeyPrefix: "tracker-oak"},
		},
	}
}

func TestValidateStaticAcceptsValidConfig(t *testing.T) {
	require.NoError(t, ValidateStatic(validConfig()))
}

func TestValidateStaticRejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, ValidateStatic(cfg))

	cfg.Server.Port = 70000
	assert.Error(t, ValidateStatic(cfg))
}

func TestValidateStaticRejectsUnknownBrokerType(t *testing.T) {
	cfg := validConfig()
	cfg.Broker.Type = "rabbitmq"
	assert.Error(t, ValidateStatic(cfg))
}

func TestValidateStaticKafkaRequiresBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Broker.Kafka.Brokers = nil
	assert.Error(t, ValidateStatic(cfg))
}

func TestValidateStaticMemoryBrokerNeedsNoBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Broker.Type = "memory"
	cfg.Broker.Kafka.Brokers = nil
	assert.NoError(t, ValidateStatic(cfg))
}

func TestValidateStaticRejectsDuplicateProcessorNames(t *testing.T) {
	cfg := validConfig()
	cfg.Processors = append(cfg.Processors, ProcessorConfig{Name: "oak", SessionField: "session-id"})
	assert.Error(t, ValidateStatic(cfg))
}

func TestValidateStaticRejectsUnknownEnrichment(t *testing.T) {
	cfg := validConfig()
	cfg.Processors[0].Enrichment = "bogus"
	assert.Error(t, ValidateStatic(cfg))
}

func TestValidateStaticRejectsNegativeDedupWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Dedup.Window = -time.Second
	assert.Error(t, ValidateStatic(cfg))
}
