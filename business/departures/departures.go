// Package departures produces the ranked departure list for a stop by merging
// the static schedule with cached real-time delay, platform and occupancy
// data, degrading to a reduced-fidelity response when either source is
// unavailable.
package departures

import (
	"time"

	"github.com/opentransitau/departureboard/business/data/rtcache"
)

// Direction selects which side of the query time a departures page covers
type Direction string

const (
	DirectionFuture Direction = "future"
	DirectionPast   Direction = "past"
)

// Source labels which data sources contributed to a departures page
type Source string

const (
	SourceStaticRT   Source = "static+rt"
	SourceStaticOnly Source = "static_only"
	SourceRTOnly     Source = "rt_only"
	SourceNoData     Source = "no_data"
)

const (
	// overFetchFloor is the minimum number of scheduled rows retrieved
	// regardless of the requested limit. Retrieving more than the limit is
	// required: a delay can move a trip scheduled outside the query window
	// into it, and that reordering happens after the merge.
	overFetchFloor = 30

	// lastServiceTimeSecs is the latest time of day any service departs,
	// bounding forward pagination.
	lastServiceTimeSecs = 105723

	// fallbackEarliestSecs bounds backward pagination when the per-stop
	// earliest departure query fails. 01:05, before the earliest service.
	fallbackEarliestSecs = 3900
)

// Request describes one departures query. TimeSecs is seconds since local
// midnight on ServiceDate and must be in [0, 86400).
type Request struct {
	StopId      string
	ServiceDate time.Time
	TimeSecs    int
	Direction   Direction
	Limit       int
}

// Departure is one row of a departures page. Times are seconds since local
// midnight and may exceed 86,400 for trips crossing midnight. Platform and
// occupancy come from the real-time feed and are nil when the feed did not
// carry them.
type Departure struct {
	TripId               string  `json:"trip_id"`
	RouteShortName       string  `json:"route_short_name"`
	RouteLongName        string  `json:"route_long_name"`
	RouteType            int     `json:"route_type"`
	RouteColor           *string `json:"route_color"`
	Headsign             *string `json:"headsign"`
	ScheduledTimeSecs    int     `json:"scheduled_time_secs"`
	RealtimeTimeSecs     int     `json:"realtime_time_secs"`
	MinutesUntil         int     `json:"minutes_until"`
	DelaySecs            int     `json:"delay_s"`
	Realtime             bool    `json:"realtime"`
	StopSequence         int     `json:"stop_sequence"`
	Platform             *string `json:"platform"`
	WheelchairAccessible int     `json:"wheelchair_accessible"`
	OccupancyStatus      *int    `json:"occupancy_status"`
}

// DeparturesPage is a served departures result with pagination and source
// metadata. EarliestTimeSecs and LatestTimeSecs are the bounds of the
// realtime-adjusted times in Departures and are nil when the page is empty.
type DeparturesPage struct {
	StopExists       bool           `json:"stop_exists"`
	Source           Source         `json:"source"`
	Stale            bool           `json:"stale"`
	Departures       []*Departure   `json:"departures"`
	EarliestTimeSecs *int           `json:"earliest_time_secs"`
	LatestTimeSecs   *int           `json:"latest_time_secs"`
	HasMorePast      bool           `json:"has_more_past"`
	HasMoreFuture    bool           `json:"has_more_future"`
	ConsultedModes   []rtcache.Mode `json:"-"`
}

func emptyPage(stopExists bool) *DeparturesPage {
	return &DeparturesPage{
		StopExists: stopExists,
		Source:     SourceNoData,
		Departures: []*Departure{},
	}
}

func minutesUntil(realtimeTimeSecs, queryTimeSecs int) int {
	remaining := (realtimeTimeSecs - queryTimeSecs) / 60
	if remaining < 0 {
		return 0
	}
	return remaining
}
