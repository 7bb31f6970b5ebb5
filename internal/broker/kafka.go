package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/logger"
	"sift/pkg/errors"
	"sift/pkg/logging"
	"sift/pkg/metrics"
	"sift/pkg/models"
	"sift/pkg/retry"
	"sift/pkg/tracing"
)

// batchDrainTimeout bounds how long a consumer waits for the rest of a
// batch once the first message has arrived.
const batchDrainTimeout = 200 * time.Millisecond

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: "producer"}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg models.QueuedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := []kafka.Header{}
	headers = tracing.InjectTraceContext(ctx, headers)

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(msg.ID),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	metrics.ObserveKafkaWriteDuration(p.serviceName, topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.KafkaMessagesWrittenTotal.WithLabelValues(p.serviceName, topic).Inc()
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer fetches messages in batches and hands each one to the
// handler concurrently. A message that keeps failing after the configured
// number of attempts is published to the DLQ topic; the batch is committed
// only once every member has either succeeded or been dead-lettered.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	dlqProducer Producer
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}

	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) batchSize() int {
	if c.cfg.BatchSize > 0 {
		return c.cfg.BatchSize
	}
	return constants.MaxBatchSize
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
			"batch_size", c.batchSize(),
		)

		for {
			batch, err := c.fetchBatch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka messages",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}

			c.handleBatch(consumeCtx, topic, batch, handler)

			if err := c.reader.CommitMessages(ctx, batch...); err != nil {
				c.logger.ErrorwCtx(consumeCtx, "Failed to commit batch",
					"error", err,
					"topic", topic,
					"batch_size", len(batch),
				)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// fetchBatch blocks for the first message, then drains whatever else is
// already buffered, up to the batch size.
func (c *KafkaConsumer) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	drainCtx, cancel := context.WithTimeout(ctx, batchDrainTimeout)
	defer cancel()

	for len(batch) < c.batchSize() {
		m, err := c.reader.FetchMessage(drainCtx)
		if err != nil {
			break
		}
		batch = append(batch, m)
	}

	return batch, nil
}

func (c *KafkaConsumer) handleBatch(ctx context.Context, topic string, batch []kafka.Message, handler HandlerFunc) {
	start := time.Now()
	defer func() {
		metrics.ObserveProcessorBatchDuration(c.serviceName, time.Since(start))
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.MaxBatchConcurrency)

	for _, m := range batch {
		m := m
		g.Go(func() error {
			c.handleMessage(gctx, topic, m, handler)
			return nil
		})
	}

	_ = g.Wait()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, topic string, m kafka.Message, handler HandlerFunc) {
	metrics.KafkaMessagesReadTotal.WithLabelValues(c.serviceName, topic).Inc()

	var msg models.QueuedMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to unmarshal queued message",
			"error", err,
			"topic", topic,
		)
		c.deadLetter(ctx, models.QueuedMessage{Message: string(m.Value)}, err, topic, "unmarshal_failed")
		return
	}

	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", m.Headers)
	defer span.End()

	msgCtx = logging.WithMessageID(msgCtx, msg.ID)
	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

	if err := c.processWithRetry(msgCtx, msg, handler, topic); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries",
			"error", err,
			"topic", topic,
		)
		c.deadLetter(msgCtx, msg, err, topic, "max_retries_exceeded")
	}
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, msg models.QueuedMessage, handler HandlerFunc, topic string) error {
	policy := retry.Policy{
		MaxAttempts:     constants.MaxReceiveAttempts,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}

	delivery := 0
	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		delivery++
		msg.DeliveryCount = delivery
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", topic,
				)
			}
		}()
		return handler(ctx, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func (c *KafkaConsumer) deadLetter(ctx context.Context, msg models.QueuedMessage, cause error, sourceTopic, reason string) {
	if c.dlqProducer == nil || c.cfg.DLQTopic == "" {
		c.logger.WarnwCtx(ctx, "No DLQ configured, dropping failed message",
			"topic", sourceTopic,
			"reason", reason,
		)
		return
	}

	if err := c.dlqProducer.Publish(ctx, c.cfg.DLQTopic, msg); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to send message to DLQ",
			"error", err,
			"topic", sourceTopic,
		)
		return
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, sourceTopic, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", cause.Error(),
	)
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			}
		}
	}
	c.wg.Wait()
	return err
}
