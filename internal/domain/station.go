package domain

import (
	"strings"
	"time"
)

// Station — ссылка на станцию метро. Линия её никогда не изменяет.
type Station struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStation создаёт станцию без идентификатора (его назначает хранилище).
func NewStation(name string) (Station, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Station{}, ErrStationNameRequired
	}
	now := time.Now().UTC()
	return Station{Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// Is сравнивает станции по идентичности.
func (s Station) Is(other Station) bool {
	return s.ID == other.ID
}
