package broker

import (
	"context"
)

// Message is one consumed record. Value carries the raw payload bytes; the
// broker layer does not interpret them.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

// HandlerFunc processes a single consumed message. Returning an error marked
// fatal sends the message to the DLQ without retries; any other error is
// retried per the broker retry policy first.
type HandlerFunc func(ctx context.Context, msg Message) error

type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}
