package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

type stationRepository struct {
	q querier
}

// NewStationRepository создаёт PostgreSQL-реализацию StationRepository вне транзакции.
func NewStationRepository(store *Store) domain.StationRepository {
	return &stationRepository{q: store.DB()}
}

func (r *stationRepository) Create(ctx context.Context, station domain.Station) (domain.Station, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.q.QueryRowContext(ctx, `
		INSERT INTO stations (name, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, station.Name, station.CreatedAt, station.UpdatedAt).Scan(&station.ID)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return domain.Station{}, domain.ErrStationNameDuplicated
		}
		return domain.Station{}, fmt.Errorf("insert station: %w", err)
	}
	return station, nil
}

func (r *stationRepository) Resolve(ctx context.Context, id int64) (domain.Station, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var station domain.Station
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM stations
		WHERE id = $1
	`, id).Scan(&station.ID, &station.Name, &station.CreatedAt, &station.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Station{}, domain.ErrStationNotFound
	}
	if err != nil {
		return domain.Station{}, fmt.Errorf("select station %d: %w", id, err)
	}
	station.CreatedAt = station.CreatedAt.UTC()
	station.UpdatedAt = station.UpdatedAt.UTC()
	return station, nil
}

func (r *stationRepository) List(ctx context.Context) ([]domain.Station, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM stations
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Station, 0)
	for rows.Next() {
		var station domain.Station
		if err := rows.Scan(&station.ID, &station.Name, &station.CreatedAt, &station.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		station.CreatedAt = station.CreatedAt.UTC()
		station.UpdatedAt = station.UpdatedAt.UTC()
		result = append(result, station)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}
	return result, nil
}

func (r *stationRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `DELETE FROM stations WHERE id = $1`, id)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return domain.ErrStationInUse
		}
		return fmt.Errorf("delete station %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for station %d: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrStationNotFound
	}
	return nil
}

var _ domain.StationRepository = (*stationRepository)(nil)
