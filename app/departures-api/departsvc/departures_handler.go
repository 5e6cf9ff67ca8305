package departsvc

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/opentransitau/departureboard/business/departures"
)

const defaultLimit = 10

// departuresParams are the query parameters of the departures endpoint after
// defaulting, before validation
type departuresParams struct {
	TimeSecs  int    `validate:"gte=0,lte=86399"`
	Direction string `validate:"oneof=future past"`
	Limit     int    `validate:"gte=1,lte=50"`
	Date      string `validate:"omitempty,datetime=2006-01-02"`
}

// departuresData is the data section of a departures response
type departuresData struct {
	StopId           string                  `json:"stop_id"`
	Departures       []*departures.Departure `json:"departures"`
	EarliestTimeSecs *int                    `json:"earliest_time_secs"`
	LatestTimeSecs   *int                    `json:"latest_time_secs"`
	HasMorePast      bool                    `json:"has_more_past"`
	HasMoreFuture    bool                    `json:"has_more_future"`
}

// departuresMeta is the meta section of a departures response
type departuresMeta struct {
	Source departures.Source `json:"source"`
	Stale  bool              `json:"stale"`
}

func (s *WebService) handleDepartures(w http.ResponseWriter, r *http.Request) {
	stopId := mux.Vars(r)["stopID"]

	params, err := s.parseDeparturesParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err = s.validate.Struct(params); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid query parameters: %v", err))
		return
	}

	// the calendar tables hold midnight-valued dates, so the defaulted
	// service date must be truncated to midnight before resolution
	now := s.now().In(s.location)
	serviceDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	if params.Date != "" {
		serviceDate, err = time.ParseInLocation("2006-01-02", params.Date, s.location)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date: %v", err))
			return
		}
	}

	page := s.controller.DeparturesPage(r.Context(), departures.Request{
		StopId:      stopId,
		ServiceDate: serviceDate,
		TimeSecs:    params.TimeSecs,
		Direction:   departures.Direction(params.Direction),
		Limit:       params.Limit,
	})
	s.collector.PagesServed.WithLabelValues(string(page.Source)).Inc()

	if page.Source == departures.SourceNoData && !page.StopExists {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("stop %s not found", stopId))
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		Data: departuresData{
			StopId:           stopId,
			Departures:       page.Departures,
			EarliestTimeSecs: page.EarliestTimeSecs,
			LatestTimeSecs:   page.LatestTimeSecs,
			HasMorePast:      page.HasMorePast,
			HasMoreFuture:    page.HasMoreFuture,
		},
		Meta: departuresMeta{
			Source: page.Source,
			Stale:  page.Stale,
		},
	})
}

// parseDeparturesParams reads the query string, defaulting the time to now in
// the service timezone and the direction to future
func (s *WebService) parseDeparturesParams(r *http.Request) (*departuresParams, error) {
	now := s.now().In(s.location)
	params := departuresParams{
		TimeSecs:  now.Hour()*3600 + now.Minute()*60 + now.Second(),
		Direction: string(departures.DirectionFuture),
		Limit:     defaultLimit,
		Date:      r.FormValue("date"),
	}

	if value := r.FormValue("time_secs"); value != "" {
		timeSecs, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid time_secs: %v", err)
		}
		params.TimeSecs = timeSecs
	}
	if value := r.FormValue("direction"); value != "" {
		params.Direction = value
	}
	if value := r.FormValue("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid limit: %v", err)
		}
		params.Limit = limit
	}
	return &params, nil
}
