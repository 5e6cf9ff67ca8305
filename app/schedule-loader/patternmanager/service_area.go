package patternmanager

import (
	"fmt"
	"log"

	"github.com/opentransitau/departureboard/business/data/schedule"
)

// ServiceArea is the bounding box the loaded schedule is restricted to.
// Source feeds cover the whole state; everything outside the box is dropped
// before pattern extraction.
type ServiceArea struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

func (s ServiceArea) contains(lat, lon float64) bool {
	return lat >= s.MinLat && lat <= s.MaxLat && lon >= s.MinLon && lon <= s.MaxLon
}

// filterToServiceArea restricts the merged feed to stops inside area, then
// drops stop times referencing removed stops, trips left with no stop times,
// and routes and calendars left with no trips. Duplicate stops across feeds
// keep the first occurrence.
// Returns an error when no stops remain: a box that removes everything means
// the feed or the configuration is wrong, and nothing may be committed.
func filterToServiceArea(log *log.Logger, f *feed, area ServiceArea) (*feed, error) {
	stopsBefore := len(f.stops)

	keptStopIds := make(map[string]bool)
	var stops []*schedule.Stop
	for _, stop := range f.stops {
		if !area.contains(stop.StopLat, stop.StopLon) {
			continue
		}
		if keptStopIds[stop.StopId] {
			continue
		}
		keptStopIds[stop.StopId] = true
		stops = append(stops, stop)
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("service area filter removed all %d stops, check bounding box configuration", stopsBefore)
	}

	var stopTimes []*rawStopTime
	tripsWithStops := make(map[string]bool)
	for _, stopTime := range f.stopTimes {
		if !keptStopIds[stopTime.StopId] {
			continue
		}
		stopTimes = append(stopTimes, stopTime)
		tripsWithStops[stopTime.TripId] = true
	}

	var trips []*rawTrip
	keptRouteIds := make(map[string]bool)
	keptServiceIds := make(map[string]bool)
	for _, trip := range f.trips {
		if !tripsWithStops[trip.TripId] {
			continue
		}
		trips = append(trips, trip)
		keptRouteIds[trip.RouteId] = true
		keptServiceIds[trip.ServiceId] = true
	}

	var routes []*schedule.Route
	for _, route := range f.routes {
		if keptRouteIds[route.RouteId] {
			routes = append(routes, route)
		}
	}

	var calendars []*schedule.Calendar
	for _, calendar := range f.calendars {
		if keptServiceIds[calendar.ServiceId] {
			calendars = append(calendars, calendar)
		}
	}
	var calendarDates []*schedule.CalendarDate
	for _, calendarDate := range f.calendarDates {
		if keptServiceIds[calendarDate.ServiceId] {
			calendarDates = append(calendarDates, calendarDate)
		}
	}

	log.Printf("Service area filter kept %d of %d stops, %d of %d trips",
		len(stops), stopsBefore, len(trips), len(f.trips))

	return &feed{
		stops:         stops,
		routes:        routes,
		trips:         trips,
		stopTimes:     stopTimes,
		calendars:     calendars,
		calendarDates: calendarDates,
	}, nil
}
