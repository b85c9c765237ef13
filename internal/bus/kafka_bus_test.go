package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func newTestKafkaBus() *KafkaBus {
	return &KafkaBus{
		config:   &KafkaBusConfig{},
		handlers: make(map[string][]Handler),
		retry:    testRetryConfig(),
		stopCh:   make(chan struct{}),
	}
}

func fetchesWithRecords(topic string, values ...string) kgo.Fetches {
	records := make([]*kgo.Record, 0, len(values))
	for _, v := range values {
		records = append(records, &kgo.Record{Topic: topic, Value: []byte(v)})
	}
	return kgo.Fetches{{
		Topics: []kgo.FetchTopic{{
			Topic: topic,
			Partitions: []kgo.FetchPartition{{
				Records: records,
			}},
		}},
	}}
}

func TestDispatchFetchesCompletesHandlersBeforeReturning(t *testing.T) {
	b := newTestKafkaBus()

	var mu sync.Mutex
	var seen []string
	b.Subscribe(TopicValidateBooking, func(ctx context.Context, payload []byte) error {
		mu.Lock()
		seen = append(seen, string(payload))
		mu.Unlock()
		return nil
	})

	fetches := fetchesWithRecords(TopicValidateBooking, "first", "second", "third")
	processed := b.dispatchFetches(context.Background(), fetches)

	// Every returned record's handler has already run, so committing the
	// returned records can never skip an unprocessed message.
	require.Len(t, processed, 3)
	assert.Equal(t, []string{"first", "second", "third"}, seen,
		"records on one partition are handled in order")
}

func TestDispatchFetchesReturnsRecordsAfterHandlerExhaustsRetries(t *testing.T) {
	b := newTestKafkaBus()

	var calls int
	b.Subscribe(TopicProcessPayment, func(ctx context.Context, payload []byte) error {
		calls++
		return errors.New("store unavailable")
	})

	fetches := fetchesWithRecords(TopicProcessPayment, "payload")
	processed := b.dispatchFetches(context.Background(), fetches)

	require.Len(t, processed, 1, "a poison message is dropped, not replayed forever")
	assert.Equal(t, 3, calls, "handler is retried per the retry policy first")
}

func TestDispatchFetchesSkipsTopicsWithoutHandlers(t *testing.T) {
	b := newTestKafkaBus()

	fetches := fetchesWithRecords(TopicBookingConfirmed, "payload")
	processed := b.dispatchFetches(context.Background(), fetches)

	assert.Len(t, processed, 1, "unhandled records still advance the offset")
}
