package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ticketd/pkg/logger"
	"ticketd/pkg/retry"
)

// MemoryBus is an in-process implementation of Bus. Each published message
// is delivered asynchronously to every subscribed handler; failed handlers
// are retried with backoff, which makes delivery at-least-once just like
// the broker-backed implementation.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	retry    *retry.Config
	wg       sync.WaitGroup
	closed   bool
}

// NewMemoryBus creates an in-process bus. A nil retry config uses a short
// default suited to in-process redelivery.
func NewMemoryBus(retryCfg *retry.Config) *MemoryBus {
	if retryCfg == nil {
		retryCfg = &retry.Config{
			MaxRetries:      3,
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		}
	}
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		retry:    retryCfg,
	}
}

// Subscribe registers a handler for a topic
func (b *MemoryBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Start is a no-op; the memory bus delivers as soon as a message is published
func (b *MemoryBus) Start(ctx context.Context) error {
	return nil
}

// Publish delivers the payload to every handler subscribed to the topic.
// Delivery happens on separate goroutines; the publisher never waits.
func (b *MemoryBus) Publish(ctx context.Context, topic, key string, payload any) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, handler := range handlers {
		h := handler
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.deliver(topic, key, h, data)
		}()
	}
	return nil
}

// deliver runs one handler with redelivery. The delivery context is
// detached from the publisher's request context on purpose: a step keeps
// running after the HTTP response is written.
func (b *MemoryBus) deliver(topic, key string, handler Handler, data []byte) {
	log := logger.Get()
	result := retry.Do(context.Background(), b.retry, func(ctx context.Context) error {
		return handler(ctx, data)
	})
	if result.Err != nil {
		log.Error("dropping message after redelivery attempts exhausted",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.LastError))
	}
}

// Wait blocks until all in-flight deliveries have settled. Intended for
// tests and graceful shutdown.
func (b *MemoryBus) Wait() {
	b.wg.Wait()
}

// Close stops accepting publishes and waits for in-flight deliveries
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

// Ensure MemoryBus implements Bus
var _ Bus = (*MemoryBus)(nil)
