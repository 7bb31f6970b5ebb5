package broker

import (
	"fmt"
	"sync"

	"sift/internal/config"
	"sift/internal/logger"
)

// The memory broker is process-local, so every producer and consumer built
// by this factory must share a single hub.
var (
	memHubOnce sync.Once
	memHub     *MemoryHub
)

func memoryHub() *MemoryHub {
	memHubOnce.Do(func() {
		memHub = NewMemoryHub()
	})
	return memHub
}

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	case "memory":
		return memoryHub().Producer(log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// NewConsumer builds a consumer for the configured broker. A non-empty
// groupID overrides the shared group from the config, which lets each
// processor variant keep its own committed offset on the same topic.
func NewConsumer(cfg config.BrokerConfig, groupID string, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case "kafka":
		kcfg := cfg.Kafka
		if groupID != "" {
			kcfg.GroupID = groupID
		}
		return NewKafkaConsumer(kcfg, log), nil
	case "memory":
		return memoryHub().Consumer(log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
