package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateDedup(cfg.Dedup); err != nil {
		errs = append(errs, err)
	}

	if err := validateProcessors(cfg.Processors); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %v", errs)
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

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "broker.kafka.brokers",
				Message: "at least one broker address is required",
			}
		}
		for _, b := range cfg.Kafka.Brokers {
			if strings.TrimSpace(b) == "" {
				return &ValidationError{
					Field:   "broker.kafka.brokers",
					Message: "broker address cannot be empty",
				}
			}
		}
	case "memory":
		// nothing to validate
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type %q", cfg.Type),
		}
	}

	return nil
}

func validateDedup(cfg DedupConfig) error {
	if cfg.Window < 0 {
		return &ValidationError{
			Field:   "dedup.window",
			Message: "suppression window cannot be negative",
		}
	}

	switch cfg.HashAlgorithm {
	case "", "sha256", "md5":
	default:
		return &ValidationError{
			Field:   "dedup.hash_algorithm",
			Message: fmt.Sprintf("unsupported hash algorithm %q", cfg.HashAlgorithm),
		}
	}

	return nil
}

func validateProcessors(processors []ProcessorConfig) error {
	seen := make(map[string]bool, len(processors))
	for _, p := range processors {
		if p.Name == "" {
			return &ValidationError{
				Field:   "processors.name",
				Message: "processor name is required",
			}
		}
		if seen[p.Name] {
			return &ValidationError{
				Field:   "processors.name",
				Message: fmt.Sprintf("duplicate processor name %q", p.Name),
			}
		}
		seen[p.Name] = true

		if p.SessionField == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("processors[%s].session_field", p.Name),
				Message: "session field is required",
			}
		}

		switch p.Enrichment {
		case "", "tmx", "oak":
		default:
			return &ValidationError{
				Field:   fmt.Sprintf("processors[%s].enrichment", p.Name),
				Message: fmt.Sprintf("unknown enrichment provider %q", p.Enrichment),
			}
		}
	}

	return nil
}
