package domain

import "errors"

var (
	// ErrLineNotFound возвращается, если линия не найдена в хранилище.
	ErrLineNotFound = errors.New("line not found")
	// Ошибка пустого названия линии.
	ErrLineNameRequired = errors.New("line name is required")
	// Ошибка пустого цвета линии.
	ErrLineColorRequired = errors.New("line color is required")
	// ErrLineNameDuplicated — линия с таким названием уже существует.
	ErrLineNameDuplicated = errors.New("line name already exists")
	// ErrLineVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrLineVersionConflict = errors.New("line version conflict")

	// ErrSectionNotMatchable — верхняя станция нового участка не совпадает с конечной станцией линии.
	ErrSectionNotMatchable = errors.New("section up station must be the line's last down station")
	// ErrSectionInvalidStation — нижняя станция нового участка уже есть на линии.
	ErrSectionInvalidStation = errors.New("section down station is already registered on the line")
	// ErrSectionRemovalNotLast — удалять можно только последний участок.
	ErrSectionRemovalNotLast = errors.New("only the last down station can be removed")
	// ErrSectionChainTooShort — у линии должен остаться хотя бы один участок.
	ErrSectionChainTooShort = errors.New("line must keep at least one section")
	// Ошибка участка, у которого верхняя и нижняя станции совпадают.
	ErrSectionSameStations = errors.New("section up and down stations must differ")
	// Ошибка неположительного расстояния участка.
	ErrSectionDistanceInvalid = errors.New("section distance must be greater than zero")
	// ErrSectionChainBroken — данные из хранилища не образуют непрерывную цепочку.
	ErrSectionChainBroken = errors.New("section chain is broken")

	// ErrStationNotFound возвращается, если станция не найдена.
	ErrStationNotFound = errors.New("station not found")
	// Ошибка пустого названия станции.
	ErrStationNameRequired = errors.New("station name is required")
	// ErrStationNameDuplicated — станция с таким названием уже существует.
	ErrStationNameDuplicated = errors.New("station name already exists")
	// ErrStationInUse — станция используется участками линий и не может быть удалена.
	ErrStationInUse = errors.New("station is used by a line")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLineNotFound) || errors.Is(err, ErrStationNotFound)
}

// IsRuleViolation проверяет, нарушает ли ошибка правила цепочки или валидацию входных данных.
func IsRuleViolation(err error) bool {
	for _, target := range []error{
		ErrSectionNotMatchable,
		ErrSectionInvalidStation,
		ErrSectionRemovalNotLast,
		ErrSectionChainTooShort,
		ErrSectionSameStations,
		ErrSectionDistanceInvalid,
		ErrLineNameRequired,
		ErrLineColorRequired,
		ErrStationNameRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict проверяет, является ли ошибка конфликтом состояния хранилища.
func IsConflict(err error) bool {
	return errors.Is(err, ErrLineNameDuplicated) ||
		errors.Is(err, ErrLineVersionConflict) ||
		errors.Is(err, ErrStationNameDuplicated) ||
		errors.Is(err, ErrStationInUse)
}
