package integration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"

	"txfanout/internal/broker"
	"txfanout/internal/config"
	apperrors "txfanout/pkg/errors"
)

const brokerWaitTimeout = 60 * time.Second

func setupKafka(t *testing.T, ctx context.Context) []string {
	t.Helper()

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("txfanout-test"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to get kafka brokers: %v", err)
	}
	return brokers
}

func TestKafkaBroker_PublishConsume(t *testing.T) {
	ctx := context.Background()
	brokers := setupKafka(t, ctx)

	suffix := uuid.New().String()
	topic := fmt.Sprintf("it-events-%s", suffix)
	cfg := config.KafkaConfig{
		Brokers: brokers,
		GroupID: fmt.Sprintf("it-group-%s", suffix),
	}

	producer := broker.NewKafkaProducer(cfg, createTestLogger())
	t.Cleanup(func() { producer.Close() })

	// Publishing first auto-creates the topic, so the consumer group
	// never joins against missing metadata.
	require.NoError(t, producer.Publish(ctx, topic, "tx-1", []byte(`{"transactionId":"tx-1"}`)))

	consumer := broker.NewKafkaConsumer(cfg, createTestLogger())
	t.Cleanup(func() { consumer.Close() })

	received := make(chan broker.Message, 1)
	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = consumer.Consume(consumeCtx, topic, func(ctx context.Context, msg broker.Message) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, topic, msg.Topic)
		assert.Equal(t, "tx-1", string(msg.Key))
		assert.JSONEq(t, `{"transactionId":"tx-1"}`, string(msg.Value))
	case <-time.After(brokerWaitTimeout):
		t.Fatal("timed out waiting for message")
	}
}

func TestKafkaConsumer_FatalErrorToDLQ(t *testing.T) {
	ctx := context.Background()
	brokers := setupKafka(t, ctx)

	suffix := uuid.New().String()
	topic := fmt.Sprintf("it-events-%s", suffix)
	dlqTopic := fmt.Sprintf("it-dlq-%s", suffix)
	cfg := config.KafkaConfig{
		Brokers:  brokers,
		GroupID:  fmt.Sprintf("it-group-%s", suffix),
		DLQTopic: dlqTopic,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     200 * time.Millisecond,
			Multiplier:      2.0,
		},
	}

	producer := broker.NewKafkaProducer(cfg, createTestLogger())
	t.Cleanup(func() { producer.Close() })

	payload := []byte("definitely not json")
	require.NoError(t, producer.Publish(ctx, topic, "bad-1", payload))

	consumer := broker.NewKafkaConsumer(cfg, createTestLogger())
	t.Cleanup(func() { consumer.Close() })

	var calls atomic.Int32
	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = consumer.Consume(consumeCtx, topic, func(ctx context.Context, msg broker.Message) error {
			calls.Add(1)
			return apperrors.ErrParse.WithCause(errors.New("invalid character 'd'"))
		})
	}()

	dlq := waitForDLQMessage(t, brokers, dlqTopic)
	require.NotNil(t, dlq, "dead letter should arrive")

	assert.Equal(t, topic, dlq.SourceTopic)
	assert.Equal(t, "bad-1", dlq.Key)
	assert.Contains(t, dlq.Reason, "PARSE_ERROR")

	decoded, err := base64.StdEncoding.DecodeString(dlq.Payload)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	failedAt, err := time.Parse(time.RFC3339Nano, dlq.FailedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), failedAt, 5*time.Minute)

	assert.EqualValues(t, 1, calls.Load(), "a fatal error must not be retried")
}

func TestKafkaConsumer_RetryableErrorRetried(t *testing.T) {
	ctx := context.Background()
	brokers := setupKafka(t, ctx)

	suffix := uuid.New().String()
	topic := fmt.Sprintf("it-events-%s", suffix)
	cfg := config.KafkaConfig{
		Brokers: brokers,
		GroupID: fmt.Sprintf("it-group-%s", suffix),
		Retry: config.RetryConfig{
			MaxAttempts:     5,
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     200 * time.Millisecond,
			Multiplier:      2.0,
		},
	}

	producer := broker.NewKafkaProducer(cfg, createTestLogger())
	t.Cleanup(func() { producer.Close() })

	require.NoError(t, producer.Publish(ctx, topic, "tx-retry", []byte(`{"transactionId":"tx-retry"}`)))

	consumer := broker.NewKafkaConsumer(cfg, createTestLogger())
	t.Cleanup(func() { consumer.Close() })

	var attempts atomic.Int32
	done := make(chan struct{})
	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = consumer.Consume(consumeCtx, topic, func(ctx context.Context, msg broker.Message) error {
			if attempts.Add(1) < 3 {
				return apperrors.ErrDownstream.WithCause(errors.New("store unavailable"))
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(brokerWaitTimeout):
		t.Fatal("timed out waiting for handler to succeed")
	}
	assert.EqualValues(t, 3, attempts.Load(), "two transient failures then success")
}

func waitForDLQMessage(t *testing.T, brokers []string, dlqTopic string) *broker.DLQMessage {
	t.Helper()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       dlqTopic,
		GroupID:     fmt.Sprintf("it-dlq-reader-%s", uuid.New().String()),
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     2 * time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), brokerWaitTimeout)
	defer cancel()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		_ = reader.CommitMessages(ctx, msg)

		var dlq broker.DLQMessage
		if err := json.Unmarshal(msg.Value, &dlq); err != nil {
			continue
		}
		return &dlq
	}
}
