// Package httpapi публикует сервисы линий и станций как REST API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/metrics"
	"github.com/vladislavdragonenkov/subway/internal/service/lines"
)

// LineService — операции над линиями, которые нужны API.
type LineService interface {
	CreateLine(ctx context.Context, cmd lines.CreateLineCommand) (*domain.Line, error)
	ListLines(ctx context.Context) ([]*domain.Line, error)
	GetLine(ctx context.Context, id int64) (*domain.Line, error)
	UpdateLine(ctx context.Context, id int64, cmd lines.UpdateLineCommand) (*domain.Line, error)
	DeleteLine(ctx context.Context, id int64) error
	AddSection(ctx context.Context, id int64, cmd lines.AddSectionCommand) (*domain.Line, error)
	DeleteSection(ctx context.Context, id, stationID int64) error
}

// StationService — операции над станциями, которые нужны API.
type StationService interface {
	CreateStation(ctx context.Context, name string) (domain.Station, error)
	ListStations(ctx context.Context) ([]domain.Station, error)
	GetStation(ctx context.Context, id int64) (domain.Station, error)
	DeleteStation(ctx context.Context, id int64) error
}

// Options — необязательные зависимости обработчика.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.HTTPMetrics
}

type handler struct {
	lines    LineService
	stations StationService
	logger   *log.Entry
}

// NewHandler собирает chi-роутер API.
func NewHandler(lineService LineService, stationService StationService, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	h := &handler{lines: lineService, stations: stationService, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(observe(logger, opts.Metrics))
	r.Use(middleware.Recoverer)

	r.Route("/stations", func(r chi.Router) {
		r.Post("/", h.createStation)
		r.Get("/", h.listStations)
		r.Get("/{id}", h.getStation)
		r.Delete("/{id}", h.deleteStation)
	})

	r.Route("/lines", func(r chi.Router) {
		r.Post("/", h.createLine)
		r.Get("/", h.listLines)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getLine)
			r.Put("/", h.updateLine)
			r.Delete("/", h.deleteLine)
			r.Post("/sections", h.addSection)
			r.Delete("/sections", h.deleteSection)
		})
	})

	return r
}

func (h *handler) createStation(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if !h.decode(w, r, &req) {
		return
	}
	station, err := h.stations.CreateStation(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/stations/%d", station.ID))
	h.respond(w, http.StatusCreated, newStationResponse(station))
}

func (h *handler) listStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.stations.ListStations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := make([]StationResponse, 0, len(stations))
	for _, station := range stations {
		resp = append(resp, newStationResponse(station))
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *handler) getStation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	station, err := h.stations.GetStation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, newStationResponse(station))
}

func (h *handler) deleteStation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.stations.DeleteStation(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) createLine(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := h.lines.CreateLine(r.Context(), lines.CreateLineCommand{
		Name:          req.Name,
		Color:         req.Color,
		UpStationID:   req.UpStationID,
		DownStationID: req.DownStationID,
		Distance:      req.Distance,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/lines/%d", line.ID))
	h.respond(w, http.StatusCreated, newLineResponse(line))
}

func (h *handler) listLines(w http.ResponseWriter, r *http.Request) {
	all, err := h.lines.ListLines(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := make([]LineResponse, 0, len(all))
	for _, line := range all {
		resp = append(resp, newLineResponse(line))
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *handler) getLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	line, err := h.lines.GetLine(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, newLineResponse(line))
}

func (h *handler) updateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req lineUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := h.lines.UpdateLine(r.Context(), id, lines.UpdateLineCommand{Name: req.Name, Color: req.Color})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, newLineResponse(line))
}

func (h *handler) deleteLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.lines.DeleteLine(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addSection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req sectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := h.lines.AddSection(r.Context(), id, lines.AddSectionCommand{
		UpStationID:   req.UpStationID,
		DownStationID: req.DownStationID,
		Distance:      req.Distance,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, newLineResponse(line))
}

func (h *handler) deleteSection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	stationID, err := strconv.ParseInt(r.URL.Query().Get("stationId"), 10, 64)
	if err != nil {
		h.fail(w, r, fmt.Errorf("stationId: %w", errInvalidID))
		return
	}
	if err := h.lines.DeleteSection(r.Context(), id, stationID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, fmt.Errorf("id %q: %w", chi.URLParam(r, "id"), errInvalidID))
		return 0, false
	}
	return id, true
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", errInvalidBody, err))
		return false
	}
	return true
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		message = http.StatusText(status)
	}
	h.respond(w, status, errorResponse{Error: message})
}

func (h *handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		h.logger.WithError(err).Warn("failed to encode response")
	}
}
