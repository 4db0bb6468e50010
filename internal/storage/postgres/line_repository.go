package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

// lineRepository хранит линии в таблице lines, а цепочку участков в sections
// с явной позицией. Вне единицы работы tx == nil, и Save открывает собственную транзакцию.
type lineRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewLineStore создаёт PostgreSQL-реализацию LineStore вне транзакции.
func NewLineStore(store *Store) domain.LineStore {
	return &lineRepository{db: store.DB()}
}

type lineRow struct {
	id        int64
	name      string
	color     string
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

const selectSectionsSQL = `
	SELECT s.line_id,
	       us.id, us.name, us.created_at, us.updated_at,
	       ds.id, ds.name, ds.created_at, ds.updated_at,
	       s.distance
	FROM sections s
	JOIN stations us ON us.id = s.up_station_id
	JOIN stations ds ON ds.id = s.down_station_id
`

func (r *lineRepository) querier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// inTx выполняет fn в текущей транзакции либо в новой, если репозиторий используется вне Do.
func (r *lineRepository) inTx(ctx context.Context, fn func(q querier) error) (err error) {
	if r.tx != nil {
		return fn(r.tx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin line tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit line tx: %w", err)
	}
	return nil
}

func (r *lineRepository) Save(ctx context.Context, line *domain.Line) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		id      = line.ID
		version = line.Version
	)
	err := r.inTx(ctx, func(q querier) error {
		if line.ID == 0 {
			err := q.QueryRowContext(ctx, `
				INSERT INTO lines (name, color, version, created_at, updated_at)
				VALUES ($1, $2, 0, $3, $4)
				RETURNING id
			`, line.Name, line.Color, line.CreatedAt, line.UpdatedAt).Scan(&id)
			if err != nil {
				return mapLineWriteError(err, "insert line")
			}
			version = 0
		} else {
			if err := updateLineRow(ctx, q, line); err != nil {
				return err
			}
			version = line.Version + 1
			if _, err := q.ExecContext(ctx, `DELETE FROM sections WHERE line_id = $1`, id); err != nil {
				return fmt.Errorf("clear sections of line %d: %w", id, err)
			}
		}
		return insertSections(ctx, q, id, line.Sections())
	})
	if err != nil {
		return err
	}

	line.ID = id
	line.Version = version
	return nil
}

func updateLineRow(ctx context.Context, q querier, line *domain.Line) error {
	res, err := q.ExecContext(ctx, `
		UPDATE lines
		SET name = $3,
		    color = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $1 AND version = $2
	`, line.ID, line.Version, line.Name, line.Color, line.UpdatedAt)
	if err != nil {
		return mapLineWriteError(err, "update line")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for line %d: %w", line.ID, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM lines WHERE id = $1)`, line.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check line %d existence: %w", line.ID, err)
	}
	if !exists {
		return domain.ErrLineNotFound
	}
	return domain.ErrLineVersionConflict
}

func insertSections(ctx context.Context, q querier, lineID int64, sections []domain.Section) error {
	for pos, section := range sections {
		_, err := q.ExecContext(ctx, `
			INSERT INTO sections (line_id, position, up_station_id, down_station_id, distance)
			VALUES ($1, $2, $3, $4, $5)
		`, lineID, pos, section.UpStation().ID, section.DownStation().ID, section.Distance())
		if err != nil {
			if isPgError(err, pgForeignKeyViolation) {
				return domain.ErrStationNotFound
			}
			return fmt.Errorf("insert section %d of line %d: %w", pos, lineID, err)
		}
	}
	return nil
}

func mapLineWriteError(err error, op string) error {
	if isPgError(err, pgUniqueViolation) {
		return domain.ErrLineNameDuplicated
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *lineRepository) FindByID(ctx context.Context, id int64) (*domain.Line, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := r.querier()
	var row lineRow
	err := q.QueryRowContext(ctx, `
		SELECT id, name, color, version, created_at, updated_at
		FROM lines
		WHERE id = $1
	`, id).Scan(&row.id, &row.name, &row.color, &row.version, &row.createdAt, &row.updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select line %d: %w", id, err)
	}

	sections, err := loadSections(ctx, q, selectSectionsSQL+` WHERE s.line_id = $1 ORDER BY s.position`, id)
	if err != nil {
		return nil, err
	}
	return restore(row, sections[id])
}

func (r *lineRepository) FindAll(ctx context.Context) ([]*domain.Line, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := r.querier()
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, color, version, created_at, updated_at
		FROM lines
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}

	// Строки линий вычитываются полностью до загрузки участков: внутри транзакции
	// соединение не допускает двух открытых курсоров.
	var lineRows []lineRow
	for rows.Next() {
		var row lineRow
		if err := rows.Scan(&row.id, &row.name, &row.color, &row.version, &row.createdAt, &row.updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lineRows = append(lineRows, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate lines: %w", err)
	}
	rows.Close()

	sections, err := loadSections(ctx, q, selectSectionsSQL+` ORDER BY s.line_id, s.position`)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Line, 0, len(lineRows))
	for _, row := range lineRows {
		line, err := restore(row, sections[row.id])
		if err != nil {
			return nil, err
		}
		result = append(result, line)
	}
	return result, nil
}

func (r *lineRepository) DeleteByID(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.querier().ExecContext(ctx, `DELETE FROM lines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete line %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for line %d: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrLineNotFound
	}
	return nil
}

// loadSections группирует участки по line_id, сохраняя порядок позиций.
func loadSections(ctx context.Context, q querier, query string, args ...any) (map[int64][]domain.Section, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select sections: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]domain.Section)
	for rows.Next() {
		var (
			lineID   int64
			up, down domain.Station
			distance int
		)
		if err := rows.Scan(
			&lineID,
			&up.ID, &up.Name, &up.CreatedAt, &up.UpdatedAt,
			&down.ID, &down.Name, &down.CreatedAt, &down.UpdatedAt,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		section, err := domain.NewSection(up, down, distance)
		if err != nil {
			return nil, fmt.Errorf("line %d: stored section is invalid: %w", lineID, err)
		}
		result[lineID] = append(result[lineID], section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return result, nil
}

func restore(row lineRow, sections []domain.Section) (*domain.Line, error) {
	return domain.RestoreLine(row.id, row.name, row.color, sections, row.version, row.createdAt.UTC(), row.updatedAt.UTC())
}

var _ domain.LineStore = (*lineRepository)(nil)
