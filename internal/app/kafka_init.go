package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-service/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer, если заданы брокеры. Недоступный Kafka
// не валит сервис: заказы продолжают создаваться, события пропускаются
// с предупреждением.
func initKafkaProducer(brokers []string, topic string, logger *log.Entry) *kafka.Producer {
	if len(brokers) == 0 {
		logger.Warn("KAFKA_BROKERS не задан, события заказов публиковаться не будут")
		return nil
	}

	producer, err := kafka.NewProducer(brokers, topic)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithFields(log.Fields{"brokers": brokers, "topic": topic}).Info("kafka producer initialized")
	return producer
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
