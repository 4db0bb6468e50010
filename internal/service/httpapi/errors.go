package httpapi

import (
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/lock"
)

var (
	errInvalidID   = errors.New("invalid identifier")
	errInvalidBody = errors.New("invalid request body")
)

// statusFor сопоставляет ошибку сервиса HTTP-статусу.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidID), errors.Is(err, errInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusServiceUnavailable
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsRuleViolation(err):
		return http.StatusBadRequest
	case domain.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
