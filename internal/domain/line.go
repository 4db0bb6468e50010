package domain

import (
	"fmt"
	"strings"
	"time"
)

// Line — агрегат линии метро: упорядоченная непрерывная цепочка участков.
//
// Инварианты:
//   - цепочка содержит хотя бы один участок;
//   - верхняя станция каждого участка совпадает с нижней станцией предыдущего;
//   - станция не встречается в цепочке дважды.
//
// Агрегат не синхронизирован: одновременно изменять линию может только один писатель.
type Line struct {
	ID        int64
	Name      string
	Color     string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	sections []Section
}

// NewLine создаёт линию с единственным начальным участком.
func NewLine(name, color string, up, down Station, distance int) (*Line, error) {
	name, color, err := normalizeAttributes(name, color)
	if err != nil {
		return nil, err
	}
	section, err := NewSection(up, down, distance)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Line{
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
		sections:  []Section{section},
	}, nil
}

// RestoreLine собирает линию из сохранённых данных и заново проверяет цепочку.
func RestoreLine(id int64, name, color string, sections []Section, version int64, createdAt, updatedAt time.Time) (*Line, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("line %d: %w", id, ErrSectionChainTooShort)
	}
	seen := make(map[int64]struct{}, len(sections)+1)
	seen[sections[0].upStation.ID] = struct{}{}
	for i, section := range sections {
		if i > 0 && !sections[i-1].MatchesTailOf(section.upStation) {
			return nil, fmt.Errorf("line %d section %d: %w", id, i, ErrSectionChainBroken)
		}
		if _, dup := seen[section.downStation.ID]; dup {
			return nil, fmt.Errorf("line %d section %d: %w", id, i, ErrSectionChainBroken)
		}
		seen[section.downStation.ID] = struct{}{}
	}

	return &Line{
		ID:        id,
		Name:      name,
		Color:     color,
		Version:   version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		sections:  append([]Section(nil), sections...),
	}, nil
}

// Rename меняет название и цвет линии, не затрагивая цепочку.
func (l *Line) Rename(name, color string) error {
	name, color, err := normalizeAttributes(name, color)
	if err != nil {
		return err
	}
	l.Name = name
	l.Color = color
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// AddSection продлевает линию от её конечной нижней станции.
// Все проверки выполняются до изменения состояния.
func (l *Line) AddSection(up, down Station, distance int) error {
	section, err := NewSection(up, down, distance)
	if err != nil {
		return err
	}
	if !l.Tail().MatchesTailOf(up) {
		return ErrSectionNotMatchable
	}
	if l.contains(down) {
		return ErrSectionInvalidStation
	}

	l.sections = append(l.sections, section)
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteSection удаляет последний участок, если stationID — конечная нижняя станция.
func (l *Line) DeleteSection(stationID int64) error {
	if len(l.sections) <= 1 {
		return ErrSectionChainTooShort
	}
	if l.Tail().downStation.ID != stationID {
		return ErrSectionRemovalNotLast
	}

	l.sections = l.sections[:len(l.sections)-1]
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// Stations возвращает станции линии по порядку: верхняя станция первого участка
// и нижние станции всех участков. Каждый вызов возвращает новый срез.
func (l *Line) Stations() []Station {
	if len(l.sections) == 0 {
		return nil
	}
	stations := make([]Station, 0, len(l.sections)+1)
	stations = append(stations, l.sections[0].upStation)
	for _, section := range l.sections {
		stations = append(stations, section.downStation)
	}
	return stations
}

// Sections возвращает копию цепочки участков.
func (l *Line) Sections() []Section {
	return append([]Section(nil), l.sections...)
}

// Tail возвращает последний участок линии.
func (l *Line) Tail() Section {
	return l.sections[len(l.sections)-1]
}

// TotalDistance суммирует длины всех участков.
func (l *Line) TotalDistance() int {
	total := 0
	for _, section := range l.sections {
		total += section.distance
	}
	return total
}

// Clone возвращает независимую копию агрегата.
func (l *Line) Clone() *Line {
	if l == nil {
		return nil
	}
	cp := *l
	cp.sections = append([]Section(nil), l.sections...)
	return &cp
}

func (l *Line) contains(station Station) bool {
	for _, section := range l.sections {
		if section.ContainsStation(station) {
			return true
		}
	}
	return false
}

func normalizeAttributes(name, color string) (string, string, error) {
	name = strings.TrimSpace(name)
	color = strings.TrimSpace(color)
	if name == "" {
		return "", "", ErrLineNameRequired
	}
	if color == "" {
		return "", "", ErrLineColorRequired
	}
	return name, color, nil
}
