package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

type stationRequest struct {
	Name string `json:"name"`
}

type lineRequest struct {
	Name          string `json:"name"`
	Color         string `json:"color"`
	UpStationID   int64  `json:"upStationId"`
	DownStationID int64  `json:"downStationId"`
	Distance      int    `json:"distance"`
}

type lineUpdateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type sectionRequest struct {
	UpStationID   int64 `json:"upStationId"`
	DownStationID int64 `json:"downStationId"`
	Distance      int   `json:"distance"`
}

// StationResponse — представление станции в API.
type StationResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CreatedDate  time.Time `json:"createdDate"`
	ModifiedDate time.Time `json:"modifiedDate"`
}

// LineResponse — представление линии в API; Stations идут в порядке цепочки.
type LineResponse struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Color        string            `json:"color"`
	Distance     int               `json:"distance"`
	Stations     []StationResponse `json:"stations"`
	CreatedDate  time.Time         `json:"createdDate"`
	ModifiedDate time.Time         `json:"modifiedDate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newStationResponse(station domain.Station) StationResponse {
	return StationResponse{
		ID:           station.ID,
		Name:         station.Name,
		CreatedDate:  station.CreatedAt,
		ModifiedDate: station.UpdatedAt,
	}
}

func newLineResponse(line *domain.Line) LineResponse {
	stations := line.Stations()
	resp := LineResponse{
		ID:           line.ID,
		Name:         line.Name,
		Color:        line.Color,
		Distance:     line.TotalDistance(),
		Stations:     make([]StationResponse, 0, len(stations)),
		CreatedDate:  line.CreatedAt,
		ModifiedDate: line.UpdatedAt,
	}
	for _, station := range stations {
		resp.Stations = append(resp.Stations, newStationResponse(station))
	}
	return resp
}
