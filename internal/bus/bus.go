// Package bus provides the asynchronous publish/subscribe transport that
// connects saga steps. Delivery is at-least-once with no ordering guarantee
// across topics; handlers must tolerate duplicate invocation.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes a single message delivered on a topic. Returning an
// error requests redelivery per the bus's retry policy.
type Handler func(ctx context.Context, payload []byte) error

// Bus is the publish/subscribe interface between saga steps. Subscriptions
// must be registered before Start.
type Bus interface {
	// Publish sends a payload on a topic. The key groups messages that
	// relate to the same booking so backends that support partitioning can
	// keep them ordered.
	Publish(ctx context.Context, topic, key string, payload any) error

	// Subscribe registers a handler for a topic
	Subscribe(topic string, handler Handler)

	// Start begins delivering messages to subscribed handlers
	Start(ctx context.Context) error

	// Close stops delivery and releases resources
	Close() error
}

func marshalPayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode unmarshals a message payload into T
func Decode[T any](payload []byte) (*T, error) {
	var msg T
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, nil
}
