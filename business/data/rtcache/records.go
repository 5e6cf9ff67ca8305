package rtcache

// Records cached per (feed type, mode) key. Optional fields are pointers so
// a value the feed did not carry stays distinguishable from an explicit zero.

// StopTimeUpdate is one per-stop adjustment inside a TripUpdate
type StopTimeUpdate struct {
	StopId         string  `json:"stop_id"`
	StopSequence   *int    `json:"stop_sequence"`
	ArrivalDelay   *int    `json:"arrival_delay"`
	DepartureDelay *int    `json:"departure_delay"`
	PlatformCode   *string `json:"platform_code"`
}

// TripUpdate carries the current delay for one trip along with any per-stop
// adjustments the feed supplied
type TripUpdate struct {
	TripId          string            `json:"trip_id"`
	RouteId         *string           `json:"route_id"`
	DelaySecs       int               `json:"delay_s"`
	StopTimeUpdates []*StopTimeUpdate `json:"stop_time_updates"`
}

// VehiclePosition carries the last reported position and occupancy for one
// vehicle. Only trip id and occupancy feed the departures path; position
// fields are retained for feed consumers that render vehicles.
type VehiclePosition struct {
	VehicleId       *string  `json:"vehicle_id"`
	TripId          string   `json:"trip_id"`
	RouteId         *string  `json:"route_id"`
	Latitude        *float64 `json:"lat"`
	Longitude       *float64 `json:"lon"`
	Bearing         *float64 `json:"bearing"`
	Speed           *float64 `json:"speed"`
	Timestamp       *int64   `json:"timestamp"`
	OccupancyStatus *int     `json:"occupancy_status"`
}

// AlertTimeRange bounds one active period of a ServiceAlert. A nil boundary
// is unbounded on that side.
type AlertTimeRange struct {
	Start *int64 `json:"start"`
	End   *int64 `json:"end"`
}

// AlertEntity selects one route, stop or trip affected by a ServiceAlert
type AlertEntity struct {
	AgencyId  *string `json:"agency_id"`
	RouteId   *string `json:"route_id"`
	RouteType *int    `json:"route_type"`
	StopId    *string `json:"stop_id"`
	TripId    *string `json:"trip_id"`
}

// ServiceAlert describes a disruption or planned work affecting service
type ServiceAlert struct {
	Id              string            `json:"id"`
	HeaderText      string            `json:"header_text"`
	DescriptionText *string           `json:"description_text"`
	Effect          *string           `json:"effect"`
	Cause           *string           `json:"cause"`
	SeverityLevel   *string           `json:"severity_level"`
	ActivePeriods   []*AlertTimeRange `json:"active_period"`
	Entities        []*AlertEntity    `json:"informed_entity"`
}
