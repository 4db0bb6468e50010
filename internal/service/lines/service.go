// Package lines реализует сценарии управления линиями метро поверх агрегата domain.Line.
package lines

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/lock"
	"github.com/vladislavdragonenkov/subway/internal/metrics"
)

const defaultLockWait = 5 * time.Second

// Имена операций для логов и метрик.
const (
	OpCreateLine    = "create_line"
	OpUpdateLine    = "update_line"
	OpDeleteLine    = "delete_line"
	OpAddSection    = "add_section"
	OpDeleteSection = "delete_section"
)

// CreateLineCommand — входные данные для создания линии.
type CreateLineCommand struct {
	Name          string
	Color         string
	UpStationID   int64
	DownStationID int64
	Distance      int
}

// UpdateLineCommand — новые атрибуты линии.
type UpdateLineCommand struct {
	Name  string
	Color string
}

// AddSectionCommand — участок, которым продлевается линия.
type AddSectionCommand struct {
	UpStationID   int64
	DownStationID int64
	Distance      int
}

// Service — сервис линий. Каждая изменяющая операция берёт блокировку линии
// и выполняется в одной единице работы вместе с записью события в outbox.
type Service struct {
	store    domain.Storage
	locker   lock.Locker
	metrics  *metrics.LineMetrics
	logger   *log.Entry
	lockWait time.Duration
}

// Option настраивает Service.
type Option func(*Service)

// WithLocker задаёт реализацию блокировок (по умолчанию lock.NewLocal()).
func WithLocker(locker lock.Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithMetrics включает запись метрик.
func WithMetrics(m *metrics.LineMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLockWait ограничивает ожидание блокировки линии.
func WithLockWait(wait time.Duration) Option {
	return func(s *Service) {
		if wait > 0 {
			s.lockWait = wait
		}
	}
}

// NewService создаёт сервис линий.
func NewService(store domain.Storage, opts ...Option) *Service {
	s := &Service{
		store:    store,
		locker:   lock.NewLocal(),
		logger:   log.WithField("component", "line-service"),
		lockWait: defaultLockWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLine создаёт линию с единственным участком между двумя существующими станциями.
func (s *Service) CreateLine(ctx context.Context, cmd CreateLineCommand) (line *domain.Line, err error) {
	defer s.observe(OpCreateLine, time.Now(), func() int64 { return lineID(line) }, &err)

	err = s.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		up, down, err := resolvePair(ctx, repos.Stations, cmd.UpStationID, cmd.DownStationID)
		if err != nil {
			return err
		}
		created, err := domain.NewLine(cmd.Name, cmd.Color, up, down, cmd.Distance)
		if err != nil {
			return err
		}
		if err := repos.Lines.Save(ctx, created); err != nil {
			return err
		}
		if err := enqueue(ctx, repos.Outbox, domain.NewLineEvent(domain.LineEventCreated, created).WithSection(created.Tail())); err != nil {
			return err
		}
		line = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSections(len(line.Sections()))
	return line, nil
}

// ListLines возвращает все линии в порядке ID.
func (s *Service) ListLines(ctx context.Context) ([]*domain.Line, error) {
	return s.store.Lines().FindAll(ctx)
}

// GetLine возвращает линию или domain.ErrLineNotFound.
func (s *Service) GetLine(ctx context.Context, id int64) (*domain.Line, error) {
	return s.store.Lines().FindByID(ctx, id)
}

// UpdateLine меняет название и цвет линии.
func (s *Service) UpdateLine(ctx context.Context, id int64, cmd UpdateLineCommand) (line *domain.Line, err error) {
	defer s.observe(OpUpdateLine, time.Now(), func() int64 { return id }, &err)

	err = s.withLineLock(ctx, id, func() error {
		return s.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
			current, err := repos.Lines.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if err := current.Rename(cmd.Name, cmd.Color); err != nil {
				return err
			}
			if err := repos.Lines.Save(ctx, current); err != nil {
				return err
			}
			if err := enqueue(ctx, repos.Outbox, domain.NewLineEvent(domain.LineEventUpdated, current)); err != nil {
				return err
			}
			line = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// DeleteLine удаляет линию вместе со всеми её участками.
func (s *Service) DeleteLine(ctx context.Context, id int64) (err error) {
	defer s.observe(OpDeleteLine, time.Now(), func() int64 { return id }, &err)

	return s.withLineLock(ctx, id, func() error {
		return s.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
			current, err := repos.Lines.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if err := repos.Lines.DeleteByID(ctx, id); err != nil {
				return err
			}
			return enqueue(ctx, repos.Outbox, domain.NewLineEvent(domain.LineEventDeleted, current))
		})
	})
}

// AddSection продлевает линию участком от её конечной станции.
func (s *Service) AddSection(ctx context.Context, id int64, cmd AddSectionCommand) (line *domain.Line, err error) {
	defer s.observe(OpAddSection, time.Now(), func() int64 { return id }, &err)

	err = s.withLineLock(ctx, id, func() error {
		return s.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
			current, err := repos.Lines.FindByID(ctx, id)
			if err != nil {
				return err
			}
			up, down, err := resolvePair(ctx, repos.Stations, cmd.UpStationID, cmd.DownStationID)
			if err != nil {
				return err
			}
			if err := current.AddSection(up, down, cmd.Distance); err != nil {
				return err
			}
			if err := repos.Lines.Save(ctx, current); err != nil {
				return err
			}
			event := domain.NewLineEvent(domain.LineEventSectionAdded, current).WithSection(current.Tail())
			if err := enqueue(ctx, repos.Outbox, event); err != nil {
				return err
			}
			line = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSections(len(line.Sections()))
	return line, nil
}

// DeleteSection удаляет последний участок линии, если stationID — её конечная станция.
func (s *Service) DeleteSection(ctx context.Context, id, stationID int64) (err error) {
	defer s.observe(OpDeleteSection, time.Now(), func() int64 { return id }, &err)

	var remaining int
	err = s.withLineLock(ctx, id, func() error {
		return s.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
			current, err := repos.Lines.FindByID(ctx, id)
			if err != nil {
				return err
			}
			removed := current.Tail()
			if err := current.DeleteSection(stationID); err != nil {
				return err
			}
			if err := repos.Lines.Save(ctx, current); err != nil {
				return err
			}
			remaining = len(current.Sections())
			return enqueue(ctx, repos.Outbox, domain.NewLineEvent(domain.LineEventSectionRemoved, current).WithSection(removed))
		})
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveSections(remaining)
	return nil
}

func (s *Service) withLineLock(ctx context.Context, id int64, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, lock.LineKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	return fn()
}

func (s *Service) observe(op string, start time.Time, id func() int64, errp *error) {
	err := *errp
	s.metrics.ObserveOperation(op, err, time.Since(start))

	entry := s.logger.WithFields(log.Fields{
		"operation": op,
		"line_id":   id(),
	})
	switch {
	case err == nil:
		entry.Info("line operation completed")
	case domain.IsNotFound(err), domain.IsRuleViolation(err), domain.IsConflict(err), errors.Is(err, lock.ErrNotAcquired):
		entry.WithError(err).Warn("line operation rejected")
	default:
		entry.WithError(err).Error("line operation failed")
	}
}

func resolvePair(ctx context.Context, stations domain.StationLookup, upID, downID int64) (domain.Station, domain.Station, error) {
	up, err := stations.Resolve(ctx, upID)
	if err != nil {
		return domain.Station{}, domain.Station{}, fmt.Errorf("up station %d: %w", upID, err)
	}
	down, err := stations.Resolve(ctx, downID)
	if err != nil {
		return domain.Station{}, domain.Station{}, fmt.Errorf("down station %d: %w", downID, err)
	}
	return up, down, nil
}

func enqueue(ctx context.Context, outbox domain.OutboxRepository, event domain.LineEvent) error {
	msg, err := event.OutboxMessage()
	if err != nil {
		return err
	}
	if _, err := outbox.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s event: %w", event.Type, err)
	}
	return nil
}

func lineID(line *domain.Line) int64 {
	if line == nil {
		return 0
	}
	return line.ID
}
