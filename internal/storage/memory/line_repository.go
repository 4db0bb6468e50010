package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

// lineRepositoryInMemory — in-memory реализация LineStore.
type lineRepositoryInMemory struct {
	store *Store
	inTx  bool
}

// Save вставляет новую линию или перезаписывает существующую, проверяя версию (optimistic locking).
func (r *lineRepositoryInMemory) Save(_ context.Context, line *domain.Line) error {
	defer r.store.acquire(r.inTx)()
	st := r.store.st

	for id, existing := range st.lines {
		if id != line.ID && strings.EqualFold(existing.Name, line.Name) {
			return domain.ErrLineNameDuplicated
		}
	}

	if line.ID == 0 {
		st.nextLineID++
		line.ID = st.nextLineID
		line.Version = 0
		// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
		st.lines[line.ID] = line.Clone()
		return nil
	}

	current, ok := st.lines[line.ID]
	if !ok {
		return domain.ErrLineNotFound
	}
	if current.Version != line.Version {
		return domain.ErrLineVersionConflict
	}
	line.Version++
	st.lines[line.ID] = line.Clone()
	return nil
}

// FindByID возвращает копию линии или ErrLineNotFound.
func (r *lineRepositoryInMemory) FindByID(_ context.Context, id int64) (*domain.Line, error) {
	defer r.store.acquire(r.inTx)()

	line, ok := r.store.st.lines[id]
	if !ok {
		return nil, domain.ErrLineNotFound
	}
	return line.Clone(), nil
}

// FindAll возвращает копии всех линий в порядке ID.
func (r *lineRepositoryInMemory) FindAll(_ context.Context) ([]*domain.Line, error) {
	defer r.store.acquire(r.inTx)()

	result := make([]*domain.Line, 0, len(r.store.st.lines))
	for _, line := range r.store.st.lines {
		result = append(result, line.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DeleteByID удаляет линию вместе с участками.
func (r *lineRepositoryInMemory) DeleteByID(_ context.Context, id int64) error {
	defer r.store.acquire(r.inTx)()

	if _, ok := r.store.st.lines[id]; !ok {
		return domain.ErrLineNotFound
	}
	delete(r.store.st.lines, id)
	return nil
}

var _ domain.LineStore = (*lineRepositoryInMemory)(nil)
