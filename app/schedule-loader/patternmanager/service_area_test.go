package patternmanager

import (
	"testing"

	"github.com/matryer/is"

	"github.com/opentransitau/departureboard/business/data/schedule"
)

func sydneyArea() ServiceArea {
	return ServiceArea{MinLat: -34.5, MaxLat: -33.3, MinLon: 150.5, MaxLon: 151.5}
}

func makeStop(stopId string, lat, lon float64) *schedule.Stop {
	return &schedule.Stop{StopId: stopId, StopName: "stop " + stopId, StopLat: lat, StopLon: lon}
}

func TestFilterToServiceArea(t *testing.T) {
	assert := is.New(t)
	f := &feed{
		stops: []*schedule.Stop{
			makeStop("central", -33.883, 151.206),
			makeStop("newcastle", -32.926, 151.780), // outside the box
		},
		routes: []*schedule.Route{
			{RouteId: "T1", RouteType: 2},
			{RouteId: "HUN", RouteType: 2},
		},
		trips: []*rawTrip{
			makeTrip("t1", "T1", "wk", 0),
			makeTrip("hun1", "HUN", "hunter", 0),
		},
		stopTimes: []*rawStopTime{
			makeStopTime("t1", "central", 1, 1000, 1000),
			makeStopTime("hun1", "newcastle", 1, 2000, 2000),
		},
		calendars: []*schedule.Calendar{
			{ServiceId: "wk"},
			{ServiceId: "hunter"},
		},
		calendarDates: []*schedule.CalendarDate{
			{ServiceId: "wk", ExceptionType: 2},
			{ServiceId: "hunter", ExceptionType: 2},
		},
	}

	filtered, err := filterToServiceArea(quietLogger(), f, sydneyArea())
	assert.NoErr(err)
	assert.Equal(len(filtered.stops), 1)
	assert.Equal(filtered.stops[0].StopId, "central")
	assert.Equal(len(filtered.stopTimes), 1)
	assert.Equal(len(filtered.trips), 1)
	assert.Equal(filtered.trips[0].TripId, "t1")
	assert.Equal(len(filtered.routes), 1)
	assert.Equal(filtered.routes[0].RouteId, "T1")
	assert.Equal(len(filtered.calendars), 1)
	assert.Equal(filtered.calendars[0].ServiceId, "wk")
	assert.Equal(len(filtered.calendarDates), 1)
}

func TestFilterToServiceAreaDeduplicatesStops(t *testing.T) {
	assert := is.New(t)

	// the same interchange appears in two mode feeds; the first wins
	first := makeStop("central", -33.883, 151.206)
	first.StopName = "Central Station"
	duplicate := makeStop("central", -33.883, 151.206)
	duplicate.StopName = "Central (Grand Concourse)"

	f := &feed{stops: []*schedule.Stop{first, duplicate}}
	filtered, err := filterToServiceArea(quietLogger(), f, sydneyArea())
	assert.NoErr(err)
	assert.Equal(len(filtered.stops), 1)
	assert.Equal(filtered.stops[0].StopName, "Central Station")
}

func TestFilterToServiceAreaFailsWhenEmpty(t *testing.T) {
	assert := is.New(t)
	f := &feed{
		stops: []*schedule.Stop{makeStop("newcastle", -32.926, 151.780)},
	}
	_, err := filterToServiceArea(quietLogger(), f, sydneyArea())
	assert.True(err != nil)
}
