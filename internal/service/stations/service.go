// Package stations управляет справочником станций, на которые ссылаются участки линий.
package stations

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

// Service — сервис станций.
type Service struct {
	store  domain.Storage
	logger *log.Entry
}

// NewService создаёт сервис станций.
func NewService(store domain.Storage, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "station-service")
	}
	return &Service{store: store, logger: logger}
}

// CreateStation регистрирует станцию с уникальным названием.
func (s *Service) CreateStation(ctx context.Context, name string) (domain.Station, error) {
	station, err := domain.NewStation(name)
	if err != nil {
		return domain.Station{}, err
	}

	created, err := s.store.Stations().Create(ctx, station)
	if err != nil {
		s.logger.WithError(err).WithField("name", station.Name).Warn("station was not created")
		return domain.Station{}, err
	}

	s.logger.WithFields(log.Fields{
		"station_id": created.ID,
		"name":       created.Name,
	}).Info("station created")
	return created, nil
}

// ListStations возвращает станции в порядке ID.
func (s *Service) ListStations(ctx context.Context) ([]domain.Station, error) {
	return s.store.Stations().List(ctx)
}

// GetStation возвращает станцию или domain.ErrStationNotFound.
func (s *Service) GetStation(ctx context.Context, id int64) (domain.Station, error) {
	return s.store.Stations().Resolve(ctx, id)
}

// DeleteStation удаляет станцию; станции, используемые линиями, удалить нельзя.
func (s *Service) DeleteStation(ctx context.Context, id int64) error {
	if err := s.store.Stations().Delete(ctx, id); err != nil {
		s.logger.WithError(err).WithField("station_id", id).Warn("station was not deleted")
		return err
	}
	s.logger.WithField("station_id", id).Info("station deleted")
	return nil
}
