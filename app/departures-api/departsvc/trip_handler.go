package departsvc

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opentransitau/departureboard/business/data/rtcache"
	"github.com/opentransitau/departureboard/business/data/schedule"
)

// tripStopCallView is one scheduled call on the trip, with the real-time
// arrival estimate when a cached update covers the trip
type tripStopCallView struct {
	StopSequence           int     `json:"stop_sequence"`
	StopId                 string  `json:"stop_id"`
	StopName               string  `json:"stop_name"`
	StopLat                float64 `json:"stop_lat"`
	StopLon                float64 `json:"stop_lon"`
	WheelchairBoarding     int     `json:"wheelchair_boarding"`
	ScheduledArrivalSecs   int     `json:"scheduled_arrival_secs"`
	ScheduledDepartureSecs int     `json:"scheduled_departure_secs"`
	RealtimeArrivalSecs    *int    `json:"realtime_arrival_secs"`
}

// tripDetailData is the data section of a trip response
type tripDetailData struct {
	TripId               string              `json:"trip_id"`
	RouteId              string              `json:"route_id"`
	RouteShortName       string              `json:"route_short_name"`
	RouteColor           *string             `json:"route_color"`
	Headsign             *string             `json:"headsign"`
	DirectionId          int                 `json:"direction_id"`
	WheelchairAccessible int                 `json:"wheelchair_accessible"`
	StartTimeSecs        int                 `json:"start_time_secs"`
	Realtime             bool                `json:"realtime"`
	DelaySecs            int                 `json:"delay_s"`
	StopCalls            []*tripStopCallView `json:"stop_calls"`
}

func (s *WebService) handleTripDetail(w http.ResponseWriter, r *http.Request) {
	tripId := mux.Vars(r)["tripID"]

	detail, err := s.trips.TripDetail(tripId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, schedule.ErrNoActiveGeneration) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("trip %s not found", tripId))
			return
		}
		s.log.Printf("unable to retrieve trip %s, error: %v", tripId, err)
		s.writeError(w, http.StatusInternalServerError, "Error serving request")
		return
	}

	update := s.tripUpdateFor(r, detail)

	data := tripDetailData{
		TripId:               detail.TripId,
		RouteId:              detail.RouteId,
		RouteShortName:       detail.RouteShortName,
		RouteColor:           detail.RouteColor,
		Headsign:             detail.TripHeadsign,
		DirectionId:          detail.DirectionId,
		WheelchairAccessible: detail.WheelchairAccessible,
		StartTimeSecs:        detail.StartTime,
		StopCalls:            make([]*tripStopCallView, 0, len(detail.StopCalls)),
	}
	if update != nil {
		data.Realtime = true
		data.DelaySecs = update.DelaySecs
	}

	for _, call := range detail.StopCalls {
		view := tripStopCallView{
			StopSequence:           call.StopSequence,
			StopId:                 call.StopId,
			StopName:               call.StopName,
			StopLat:                call.StopLat,
			StopLon:                call.StopLon,
			WheelchairBoarding:     call.WheelchairBoarding,
			ScheduledArrivalSecs:   detail.StartTime + call.ArrivalOffset,
			ScheduledDepartureSecs: detail.StartTime + call.DepartureOffset,
		}
		if update != nil {
			realtime := view.ScheduledArrivalSecs + callDelay(update, call, update.DelaySecs)
			view.RealtimeArrivalSecs = &realtime
		}
		data.StopCalls = append(data.StopCalls, &view)
	}

	s.writeJSON(w, http.StatusOK, envelope{Data: data})
}

// tripUpdateFor looks up the cached trip update covering the trip, reading
// only the blob of the route's mode. A feed read failure degrades to the
// static schedule.
func (s *WebService) tripUpdateFor(r *http.Request, detail *schedule.TripDetail) *rtcache.TripUpdate {
	mode := rtcache.ModeForRoute(detail.RouteId)
	updates, err := s.feed.GetTripUpdates(r.Context(), mode)
	if err != nil {
		s.log.Printf("unable to retrieve trip updates for mode %s, serving static schedule, error: %v", mode, err)
		return nil
	}
	for _, update := range updates {
		if update.TripId == detail.TripId {
			return update
		}
	}
	return nil
}

// callDelay resolves the delay applying to one stop call, preferring the
// per-stop arrival delay over the trip level delay
func callDelay(update *rtcache.TripUpdate, call *schedule.TripStopCall, tripDelay int) int {
	for _, stu := range update.StopTimeUpdates {
		if stu.StopId != call.StopId {
			continue
		}
		if stu.StopSequence != nil && *stu.StopSequence != call.StopSequence {
			continue
		}
		if stu.ArrivalDelay != nil {
			return *stu.ArrivalDelay
		}
		if stu.DepartureDelay != nil {
			return *stu.DepartureDelay
		}
	}
	return tripDelay
}
