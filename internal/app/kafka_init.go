package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/subway/internal/service/outbox"
)

// initKafkaProducer создаёт producer, если брокеры заданы.
// Возвращает nil, nil при пустом списке брокеров.
func initKafkaProducer(brokers []string, clientID string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, clientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// outboxPublishers выбирает публикаторы событий: Kafka, если producer есть, иначе лог.
func outboxPublishers(producer *kafka.Producer, cfg Config, logger *log.Entry) (publisher, dlq domain.OutboxPublisher) {
	if producer == nil {
		return outbox.NewLoggingPublisher(logger.WithField("layer", "outbox-log"), cfg.KafkaTopic),
			outbox.NewLoggingPublisher(logger.WithField("layer", "outbox-dlq-log"), cfg.KafkaDLQTopic)
	}
	return kafka.NewOutboxPublisher(producer, cfg.KafkaTopic), kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)
}

// closeKafkaProducer закрывает Kafka producer если он не nil.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
