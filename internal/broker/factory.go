package broker

import (
	"fmt"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
)

func NewProducer(cfg config.TransportConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case constants.TransportKafka:
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewConsumer(cfg config.TransportConfig, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case constants.TransportKafka:
		return NewKafkaConsumer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
