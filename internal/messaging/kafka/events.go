package kafka

import (
	"encoding/json"
	"time"
)

// Topics для Kafka.
const (
	TopicLineEvents      = "subway.line.events"
	TopicDeadLetterQueue = "subway.dlq" // Dead Letter Queue для неопубликованных событий
)

// Kafka headers, дублирующие поля конверта для фильтрации без разбора payload.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)

// Envelope — формат сообщения в topic событий линий.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}
