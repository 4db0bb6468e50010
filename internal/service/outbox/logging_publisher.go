package outbox

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

// LoggingPublisher пишет события в лог. Используется, когда брокер не настроен.
type LoggingPublisher struct {
	logger *log.Entry
}

// NewLoggingPublisher создаёт publisher; topic попадает в поля лога.
func NewLoggingPublisher(logger *log.Entry, topic string) *LoggingPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LoggingPublisher{logger: logger.WithField("topic", topic)}
}

// Publish реализует domain.OutboxPublisher.
func (p *LoggingPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"event_type": event.EventType,
		"line_id":    event.AggregateID,
		"payload":    string(event.Payload),
	}).Info("line event published")
	return nil
}

var _ domain.OutboxPublisher = (*LoggingPublisher)(nil)
