package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

// state — всё содержимое in-memory хранилища; копируется целиком для отката.
type state struct {
	stations      map[int64]domain.Station
	lines         map[int64]*domain.Line
	outbox        map[string]*outboxRecord
	nextStationID int64
	nextLineID    int64
	nextOutboxSeq int64
}

func newState() *state {
	return &state{
		stations: make(map[int64]domain.Station),
		lines:    make(map[int64]*domain.Line),
		outbox:   make(map[string]*outboxRecord),
	}
}

// clone копирует карты. Линии хранятся как неизменяемые снимки, поэтому достаточно
// скопировать указатели; записи outbox изменяются на месте и копируются по значению.
func (s *state) clone() *state {
	cp := &state{
		stations:      make(map[int64]domain.Station, len(s.stations)),
		lines:         make(map[int64]*domain.Line, len(s.lines)),
		outbox:        make(map[string]*outboxRecord, len(s.outbox)),
		nextStationID: s.nextStationID,
		nextLineID:    s.nextLineID,
		nextOutboxSeq: s.nextOutboxSeq,
	}
	for id, station := range s.stations {
		cp.stations[id] = station
	}
	for id, line := range s.lines {
		cp.lines[id] = line
	}
	for id, rec := range s.outbox {
		recCopy := *rec
		cp.outbox[id] = &recCopy
	}
	return cp
}

// Store — in-memory хранилище станций, линий и outbox для локальной разработки и тестов.
// Реализует domain.UnitOfWork через общий мьютекс и снимок состояния.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Stations возвращает репозиторий станций вне единицы работы.
func (s *Store) Stations() domain.StationRepository {
	return &stationRepositoryInMemory{store: s}
}

// Lines возвращает хранилище линий вне единицы работы.
func (s *Store) Lines() domain.LineStore {
	return &lineRepositoryInMemory{store: s}
}

// Outbox возвращает outbox-репозиторий вне единицы работы.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepositoryInMemory{store: s}
}

// Do выполняет fn под эксклюзивной блокировкой хранилища.
// При ошибке или панике состояние восстанавливается из снимка.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	repos := domain.Repositories{
		Stations: &stationRepositoryInMemory{store: s, inTx: true},
		Lines:    &lineRepositoryInMemory{store: s, inTx: true},
		Outbox:   &outboxRepositoryInMemory{store: s, inTx: true},
	}
	return fn(ctx, repos)
}

// Ping всегда успешен; нужен для health-check.
func (s *Store) Ping(context.Context) error {
	return nil
}

// acquire блокирует хранилище, если репозиторий используется вне единицы работы
// (внутри Do мьютекс уже захвачен).
func (s *Store) acquire(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.Storage    = (*Store)(nil)
)
