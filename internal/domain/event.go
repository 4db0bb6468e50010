package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// LineEventType — тип события жизненного цикла линии.
type LineEventType string

const (
	LineEventCreated        LineEventType = "line.created"
	LineEventUpdated        LineEventType = "line.updated"
	LineEventDeleted        LineEventType = "line.deleted"
	LineEventSectionAdded   LineEventType = "section.added"
	LineEventSectionRemoved LineEventType = "section.removed"
)

// AggregateTypeLine используется как aggregate_type в outbox.
const AggregateTypeLine = "line"

// LineEvent — полезная нагрузка события линии, публикуемая через outbox.
type LineEvent struct {
	Type          LineEventType `json:"type"`
	LineID        int64         `json:"line_id"`
	Name          string        `json:"name,omitempty"`
	Color         string        `json:"color,omitempty"`
	StationIDs    []int64       `json:"station_ids,omitempty"`
	UpStationID   int64         `json:"up_station_id,omitempty"`
	DownStationID int64         `json:"down_station_id,omitempty"`
	Distance      int           `json:"distance,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// NewLineEvent снимает состояние линии для события.
func NewLineEvent(eventType LineEventType, line *Line) LineEvent {
	event := LineEvent{
		Type:       eventType,
		LineID:     line.ID,
		Name:       line.Name,
		Color:      line.Color,
		OccurredAt: time.Now().UTC(),
	}
	for _, station := range line.Stations() {
		event.StationIDs = append(event.StationIDs, station.ID)
	}
	return event
}

// WithSection дополняет событие данными участка.
func (e LineEvent) WithSection(section Section) LineEvent {
	e.UpStationID = section.UpStation().ID
	e.DownStationID = section.DownStation().ID
	e.Distance = section.Distance()
	return e
}

// OutboxMessage упаковывает событие в сообщение outbox.
func (e LineEvent) OutboxMessage() (OutboxMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal line event: %w", err)
	}
	return OutboxMessage{
		AggregateType: AggregateTypeLine,
		AggregateID:   strconv.FormatInt(e.LineID, 10),
		EventType:     string(e.Type),
		Payload:       payload,
	}, nil
}
