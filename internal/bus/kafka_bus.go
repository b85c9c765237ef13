package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"ticketd/pkg/logger"
	"ticketd/pkg/retry"
)

// KafkaBusConfig holds configuration for the Kafka-backed bus
type KafkaBusConfig struct {
	Brokers          []string
	GroupID          string
	ClientID         string
	SessionTimeout   time.Duration
	RebalanceTimeout time.Duration
	Retry            *retry.Config
}

// KafkaBus implements Bus on top of Kafka using franz-go. Messages are
// keyed by booking id so all steps of one booking land on the same
// partition. Offsets are committed after processing, so delivery is
// at-least-once.
type KafkaBus struct {
	config   *KafkaBusConfig
	producer *kgo.Client
	consumer *kgo.Client

	mu       sync.RWMutex
	handlers map[string][]Handler

	retry  *retry.Config
	stopCh chan struct{}
}

// NewKafkaBus creates a Kafka-backed bus and verifies broker connectivity
func NewKafkaBus(ctx context.Context, cfg *KafkaBusConfig) (*KafkaBus, error) {
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.RebalanceTimeout == 0 {
		cfg.RebalanceTimeout = 60 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultConfig()
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	if err := producer.Ping(ctx); err != nil {
		producer.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return &KafkaBus{
		config:   cfg,
		producer: producer,
		handlers: make(map[string][]Handler),
		retry:    cfg.Retry,
		stopCh:   make(chan struct{}),
	}, nil
}

// Subscribe registers a handler for a topic. Must be called before Start.
func (b *KafkaBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish produces a message to the topic, keyed so messages for the same
// booking stay ordered within a partition
func (b *KafkaBus) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	results := b.producer.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Start creates the consumer group client over every subscribed topic and
// begins the poll loop. Blocks until the context is canceled or Close is
// called.
func (b *KafkaBus) Start(ctx context.Context) error {
	b.mu.RLock()
	topics := make([]string, 0, len(b.handlers))
	for topic := range b.handlers {
		topics = append(topics, topic)
	}
	b.mu.RUnlock()

	if len(topics) == 0 {
		return fmt.Errorf("no topics subscribed")
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.config.Brokers...),
		kgo.ConsumerGroup(b.config.GroupID),
		kgo.ConsumeTopics(topics...),
		kgo.ClientID(b.config.ClientID),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(b.config.SessionTimeout),
		kgo.RebalanceTimeout(b.config.RebalanceTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	b.consumer = consumer

	log := logger.Get()
	log.Info("kafka bus started", zap.Strings("topics", topics), zap.String("group", b.config.GroupID))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopCh:
			return nil
		default:
		}

		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fetchErr := range errs {
				log.Error("fetch error",
					zap.String("topic", fetchErr.Topic),
					zap.Int32("partition", fetchErr.Partition),
					zap.Error(fetchErr.Err))
			}
			continue
		}

		processed := b.dispatchFetches(ctx, fetches)
		if len(processed) == 0 {
			continue
		}
		// Only records whose handlers have returned are committed, so a
		// crash mid-batch replays the unprocessed tail instead of losing it.
		if err := consumer.CommitRecords(ctx, processed...); err != nil {
			log.Error("failed to commit records", zap.Error(err))
		}
	}
}

// dispatchFetches runs every fetched record through its handlers
// synchronously, preserving partition order for records sharing a key, and
// returns the records that are safe to commit. A handler that still fails
// after the retry policy has its record committed anyway: the message is
// logged and dropped rather than replayed forever.
func (b *KafkaBus) dispatchFetches(ctx context.Context, fetches kgo.Fetches) []*kgo.Record {
	var processed []*kgo.Record
	fetches.EachRecord(func(record *kgo.Record) {
		b.processRecord(ctx, record)
		processed = append(processed, record)
	})
	return processed
}

func (b *KafkaBus) processRecord(ctx context.Context, record *kgo.Record) {
	log := logger.Get()

	b.mu.RLock()
	handlers := b.handlers[record.Topic]
	b.mu.RUnlock()

	for _, handler := range handlers {
		result := retry.Do(ctx, b.retry, func(ctx context.Context) error {
			return handler(ctx, record.Value)
		})
		if result.Err != nil {
			log.Error("dropping record after redelivery attempts exhausted",
				zap.String("topic", record.Topic),
				zap.ByteString("key", record.Key),
				zap.Int("attempts", result.Attempts),
				zap.Error(result.LastError))
		}
	}
}

// Close stops the poll loop and closes both Kafka clients. Record handling
// is synchronous inside the loop, so closing the consumer never abandons an
// in-flight handler.
func (b *KafkaBus) Close() error {
	close(b.stopCh)
	if b.consumer != nil {
		b.consumer.Close()
	}
	b.producer.Close()
	return nil
}

// Ensure KafkaBus implements Bus
var _ Bus = (*KafkaBus)(nil)
