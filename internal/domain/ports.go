package domain

import (
	"context"
	"time"
)

// StationLookup разрешает идентификатор станции в сущность.
type StationLookup interface {
	// Resolve возвращает станцию или ErrStationNotFound.
	Resolve(ctx context.Context, id int64) (Station, error)
}

// StationRepository хранит станции.
type StationRepository interface {
	StationLookup
	// Create сохраняет станцию и назначает ей ID.
	Create(ctx context.Context, station Station) (Station, error)
	List(ctx context.Context) ([]Station, error)
	// Delete удаляет станцию; ErrStationInUse, если на неё ссылается участок.
	Delete(ctx context.Context, id int64) error
}

// LineStore описывает требования к хранилищу линий.
type LineStore interface {
	// Save вставляет новую линию (ID == 0, ID назначается) или обновляет существующую
	// с учётом optimistic locking по Version.
	Save(ctx context.Context, line *Line) error
	// FindByID возвращает линию или ErrLineNotFound.
	FindByID(ctx context.Context, id int64) (*Line, error)
	// FindAll возвращает все линии в порядке ID.
	FindAll(ctx context.Context) ([]*Line, error)
	// DeleteByID удаляет линию вместе с её участками.
	DeleteByID(ctx context.Context, id int64) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	// DeleteSentBefore удаляет до limit опубликованных сообщений, обновлённых раньше before.
	DeleteSentBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// Repositories — набор репозиториев, привязанных к одной единице работы.
type Repositories struct {
	Stations StationRepository
	Lines    LineStore
	Outbox   OutboxRepository
}

// UnitOfWork выполняет fn атомарно: commit при nil, rollback при ошибке или панике.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// Storage — хранилище целиком: единица работы плюс репозитории для чтения вне транзакции.
type Storage interface {
	UnitOfWork
	Stations() StationRepository
	Lines() LineStore
	Outbox() OutboxRepository
	Ping(ctx context.Context) error
}
