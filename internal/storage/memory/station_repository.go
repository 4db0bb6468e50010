package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

// stationRepositoryInMemory — in-memory реализация StationRepository.
type stationRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// Create назначает станции ID и сохраняет её, если название ещё не занято.
func (r *stationRepositoryInMemory) Create(_ context.Context, station domain.Station) (domain.Station, error) {
	defer r.store.acquire(r.inTx)()
	st := r.store.st

	for _, existing := range st.stations {
		if strings.EqualFold(existing.Name, station.Name) {
			return domain.Station{}, domain.ErrStationNameDuplicated
		}
	}
	st.nextStationID++
	station.ID = st.nextStationID
	st.stations[station.ID] = station
	return station, nil
}

// Resolve возвращает станцию или ErrStationNotFound.
func (r *stationRepositoryInMemory) Resolve(_ context.Context, id int64) (domain.Station, error) {
	defer r.store.acquire(r.inTx)()

	station, ok := r.store.st.stations[id]
	if !ok {
		return domain.Station{}, domain.ErrStationNotFound
	}
	return station, nil
}

// List возвращает станции в порядке ID.
func (r *stationRepositoryInMemory) List(_ context.Context) ([]domain.Station, error) {
	defer r.store.acquire(r.inTx)()

	result := make([]domain.Station, 0, len(r.store.st.stations))
	for _, station := range r.store.st.stations {
		result = append(result, station)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Delete удаляет станцию, если на неё не ссылается ни один участок.
func (r *stationRepositoryInMemory) Delete(_ context.Context, id int64) error {
	defer r.store.acquire(r.inTx)()
	st := r.store.st

	station, ok := st.stations[id]
	if !ok {
		return domain.ErrStationNotFound
	}
	for _, line := range st.lines {
		for _, section := range line.Sections() {
			if section.ContainsStation(station) {
				return domain.ErrStationInUse
			}
		}
	}
	delete(st.stations, id)
	return nil
}

var _ domain.StationRepository = (*stationRepositoryInMemory)(nil)
