package fanout

import (
	"context"

	"txfanout/internal/broker"
)

// Notifier publishes enriched records to downstream subscribers.
type Notifier interface {
	Notify(ctx context.Context, transactionID string, body []byte) error
}

// TopicNotifier publishes to a broker topic keyed by transaction ID, which
// keeps redeliveries of the same transaction on one partition.
type TopicNotifier struct {
	producer broker.Producer
	topic    string
}

func NewTopicNotifier(producer broker.Producer, topic string) *TopicNotifier {
	return &TopicNotifier{
		producer: producer,
		topic:    topic,
	}
}

func (n *TopicNotifier) Notify(ctx context.Context, transactionID string, body []byte) error {
	return n.producer.Publish(ctx, n.topic, transactionID, body)
}
