package broker

import (
	"fmt"

	"txfanout/internal/config"
	"txfanout/internal/constants"
	"txfanout/internal/logger"
)

// NewProducer and NewConsumer pick the broker implementation from config.
// Kafka is the only wire today; the indirection keeps call sites honest
// about depending on the interfaces.

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return NewKafkaConsumer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
