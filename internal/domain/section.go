package domain

// Section — направленный участок между верхней и нижней станциями.
// После создания не изменяется; принадлежность линии хранится только в БД (sections.line_id).
type Section struct {
	upStation   Station
	downStation Station
	distance    int
}

// NewSection проверяет входные данные и создаёт участок.
func NewSection(up, down Station, distance int) (Section, error) {
	if up.Is(down) {
		return Section{}, ErrSectionSameStations
	}
	if distance <= 0 {
		return Section{}, ErrSectionDistanceInvalid
	}
	return Section{upStation: up, downStation: down, distance: distance}, nil
}

// UpStation возвращает верхнюю станцию участка.
func (s Section) UpStation() Station { return s.upStation }

// DownStation возвращает нижнюю станцию участка.
func (s Section) DownStation() Station { return s.downStation }

// Distance возвращает длину участка.
func (s Section) Distance() int { return s.distance }

// MatchesTailOf сообщает, можно ли продолжить цепочку участком, начинающимся с candidateUp.
func (s Section) MatchesTailOf(candidateUp Station) bool {
	return s.downStation.Is(candidateUp)
}

// ContainsStation сообщает, является ли станция концом участка.
func (s Section) ContainsStation(station Station) bool {
	return s.upStation.Is(station) || s.downStation.Is(station)
}
