package departsvc

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	logger "log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/opentransitau/departureboard/business/data/rtcache"
	"github.com/opentransitau/departureboard/business/data/schedule"
	"github.com/opentransitau/departureboard/business/departures"
)

type fakeSchedule struct {
	rows           []*schedule.ScheduledDeparture
	earliest       int
	exists         bool
	gotServiceDate time.Time
}

func (f *fakeSchedule) ScheduledDepartures(_ string, serviceDate time.Time, timeSecs int, future bool, limit int) ([]*schedule.ScheduledDeparture, error) {
	f.gotServiceDate = serviceDate
	var result []*schedule.ScheduledDeparture
	for _, row := range f.rows {
		if future && row.ScheduledTime < timeSecs {
			continue
		}
		if !future && row.ScheduledTime > timeSecs {
			continue
		}
		result = append(result, row)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (f *fakeSchedule) EarliestDeparture(string) (int, error) { return f.earliest, nil }
func (f *fakeSchedule) StopExists(string) (bool, error)       { return f.exists, nil }

type fakeFeed struct {
	updates map[rtcache.Mode][]*rtcache.TripUpdate
}

func (f *fakeFeed) GetTripUpdates(_ context.Context, mode rtcache.Mode) ([]*rtcache.TripUpdate, error) {
	return f.updates[mode], nil
}

func (f *fakeFeed) GetVehiclePositions(context.Context, rtcache.Mode) ([]*rtcache.VehiclePosition, error) {
	return nil, nil
}

func (f *fakeFeed) TripUpdatesWrittenAt(context.Context, rtcache.Mode) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

type fakeTrips struct {
	details map[string]*schedule.TripDetail
}

func (f *fakeTrips) TripDetail(tripId string) (*schedule.TripDetail, error) {
	detail, ok := f.details[tripId]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return detail, nil
}

type fakeAlerts struct {
	alerts map[rtcache.Mode][]*rtcache.ServiceAlert
}

func (f *fakeAlerts) GetServiceAlerts(_ context.Context, mode rtcache.Mode) ([]*rtcache.ServiceAlert, error) {
	return f.alerts[mode], nil
}

func newTestService(t *testing.T, scheduleSource departures.ScheduleSource, feed departures.FeedSource, trips TripDetailSource, alerts AlertSource) *WebService {
	t.Helper()
	log := logger.New(io.Discard, "", 0)
	controller := departures.NewController(log, scheduleSource, feed)
	service, err := NewWebService(log, controller, trips, feed, alerts, NewCollector())
	if err != nil {
		t.Fatalf("unable to create web service: %v", err)
	}
	// pin the clock so defaulted query times are deterministic
	service.now = func() time.Time {
		return time.Date(2024, 8, 30, 8, 0, 0, 0, service.location)
	}
	return service
}

func get(t *testing.T, service *WebService, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	recorder := httptest.NewRecorder()
	service.Router().ServeHTTP(recorder, req)
	return recorder
}

func scheduledRow(tripId, routeId string, scheduledTime int) *schedule.ScheduledDeparture {
	return &schedule.ScheduledDeparture{
		TripId:         tripId,
		RouteId:        routeId,
		RouteShortName: routeId,
		RouteLongName:  routeId + " Line",
		RouteType:      2,
		ScheduledTime:  scheduledTime,
		StopSequence:   4,
	}
}

func TestHealthEndpoint(t *testing.T) {
	assert := is.New(t)
	service := newTestService(t, &fakeSchedule{}, &fakeFeed{}, &fakeTrips{}, &fakeAlerts{})

	recorder := get(t, service, "/")
	assert.Equal(recorder.Code, http.StatusOK)
	assert.Equal(recorder.Header().Get("Application-Status"), "OK")
}

func TestDeparturesEndpoint(t *testing.T) {
	assert := is.New(t)
	scheduleSource := &fakeSchedule{
		rows: []*schedule.ScheduledDeparture{
			scheduledRow("rail_1", "T1", 29400),
			scheduledRow("rail_2", "T1", 29700),
		},
		earliest: 14400,
		exists:   true,
	}
	feed := &fakeFeed{updates: map[rtcache.Mode][]*rtcache.TripUpdate{
		rtcache.ModeRail: {{TripId: "rail_1", DelaySecs: 120}},
	}}
	service := newTestService(t, scheduleSource, feed, &fakeTrips{}, &fakeAlerts{})

	recorder := get(t, service, "/v1/stops/2000447/departures?time_secs=29000&limit=5")
	assert.Equal(recorder.Code, http.StatusOK)
	assert.Equal(recorder.Header().Get("Content-Type"), "application/json")

	var body struct {
		Data departuresData `json:"data"`
		Meta departuresMeta `json:"meta"`
	}
	assert.NoErr(json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(body.Meta.Source, departures.SourceStaticRT)
	assert.Equal(body.Meta.Stale, false)
	assert.Equal(body.Data.StopId, "2000447")
	assert.Equal(len(body.Data.Departures), 2)
	assert.Equal(body.Data.Departures[0].TripId, "rail_1")
	assert.Equal(body.Data.Departures[0].RealtimeTimeSecs, 29520)
	assert.Equal(*body.Data.EarliestTimeSecs, 29520)
	assert.Equal(*body.Data.LatestTimeSecs, 29700)
	assert.Equal(body.Data.HasMorePast, true)
	assert.Equal(body.Data.HasMoreFuture, true)
}

func TestDeparturesEndpointDefaultedServiceDate(t *testing.T) {
	assert := is.New(t)
	scheduleSource := &fakeSchedule{exists: true}
	service := newTestService(t, scheduleSource, &fakeFeed{}, &fakeTrips{}, &fakeAlerts{})

	// without a date param the service date must be today at midnight, not
	// the wall-clock instant: calendar validity ranges and calendar_date
	// exceptions compare against midnight-valued dates
	recorder := get(t, service, "/v1/stops/2000447/departures")
	assert.Equal(recorder.Code, http.StatusOK)

	want := time.Date(2024, 8, 30, 0, 0, 0, 0, service.location)
	assert.True(scheduleSource.gotServiceDate.Equal(want))

	// an explicit date resolves the same way
	recorder = get(t, service, "/v1/stops/2000447/departures?date=2024-12-25")
	assert.Equal(recorder.Code, http.StatusOK)

	want = time.Date(2024, 12, 25, 0, 0, 0, 0, service.location)
	assert.True(scheduleSource.gotServiceDate.Equal(want))
}

func TestDeparturesEndpointValidation(t *testing.T) {
	service := newTestService(t, &fakeSchedule{exists: true}, &fakeFeed{}, &fakeTrips{}, &fakeAlerts{})

	tests := []struct {
		name string
		url  string
	}{
		{"time past end of day", "/v1/stops/2000447/departures?time_secs=90000"},
		{"unparsable time", "/v1/stops/2000447/departures?time_secs=morning"},
		{"unknown direction", "/v1/stops/2000447/departures?direction=sideways"},
		{"limit too large", "/v1/stops/2000447/departures?limit=500"},
		{"zero limit", "/v1/stops/2000447/departures?limit=0"},
		{"malformed date", "/v1/stops/2000447/departures?date=30-08-2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := get(t, service, tt.url)
			if recorder.Code != http.StatusBadRequest {
				t.Errorf("expected 400 for %s, got %d", tt.url, recorder.Code)
			}
		})
	}
}

func TestDeparturesEndpointUnknownStop(t *testing.T) {
	assert := is.New(t)
	service := newTestService(t, &fakeSchedule{exists: false}, &fakeFeed{}, &fakeTrips{}, &fakeAlerts{})

	recorder := get(t, service, "/v1/stops/nowhere/departures")
	assert.Equal(recorder.Code, http.StatusNotFound)
}

func TestDeparturesEndpointKnownStopWithNoService(t *testing.T) {
	assert := is.New(t)
	// the stop exists but nothing is scheduled: an empty page, not a 404
	service := newTestService(t, &fakeSchedule{exists: true}, &fakeFeed{}, &fakeTrips{}, &fakeAlerts{})

	recorder := get(t, service, "/v1/stops/2000447/departures")
	assert.Equal(recorder.Code, http.StatusOK)

	var body struct {
		Data departuresData `json:"data"`
		Meta departuresMeta `json:"meta"`
	}
	assert.NoErr(json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(body.Meta.Source, departures.SourceNoData)
	assert.Equal(len(body.Data.Departures), 0)
}

func TestTripDetailEndpoint(t *testing.T) {
	assert := is.New(t)
	headsign := "Hornsby"
	trips := &fakeTrips{details: map[string]*schedule.TripDetail{
		"rail_1": {
			Trip: schedule.Trip{
				TripId:       "rail_1",
				RouteId:      "T1",
				TripHeadsign: &headsign,
				StartTime:    28800,
			},
			RouteShortName: "T1",
			StopCalls: []*schedule.TripStopCall{
				{StopSequence: 1, StopId: "2000447", StopName: "Central", ArrivalOffset: 0, DepartureOffset: 0},
				{StopSequence: 2, StopId: "2000448", StopName: "Town Hall", ArrivalOffset: 180, DepartureOffset: 210},
			},
		},
	}}
	feed := &fakeFeed{updates: map[rtcache.Mode][]*rtcache.TripUpdate{
		rtcache.ModeRail: {{TripId: "rail_1", DelaySecs: 60}},
	}}
	service := newTestService(t, &fakeSchedule{}, feed, trips, &fakeAlerts{})

	recorder := get(t, service, "/v1/trips/rail_1")
	assert.Equal(recorder.Code, http.StatusOK)

	var body struct {
		Data tripDetailData `json:"data"`
	}
	assert.NoErr(json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(body.Data.TripId, "rail_1")
	assert.Equal(*body.Data.Headsign, "Hornsby")
	assert.Equal(body.Data.Realtime, true)
	assert.Equal(body.Data.DelaySecs, 60)
	assert.Equal(len(body.Data.StopCalls), 2)

	second := body.Data.StopCalls[1]
	assert.Equal(second.ScheduledArrivalSecs, 28980)
	assert.Equal(second.ScheduledDepartureSecs, 29010)
	assert.Equal(*second.RealtimeArrivalSecs, 29040)
}

func TestTripDetailEndpointPerStopDelay(t *testing.T) {
	assert := is.New(t)
	trips := &fakeTrips{details: map[string]*schedule.TripDetail{
		"rail_1": {
			Trip:           schedule.Trip{TripId: "rail_1", RouteId: "T1", StartTime: 28800},
			RouteShortName: "T1",
			StopCalls: []*schedule.TripStopCall{
				{StopSequence: 1, StopId: "2000447", ArrivalOffset: 0},
				{StopSequence: 2, StopId: "2000448", ArrivalOffset: 180},
			},
		},
	}}
	arrivalDelay := 300
	feed := &fakeFeed{updates: map[rtcache.Mode][]*rtcache.TripUpdate{
		rtcache.ModeRail: {{
			TripId:    "rail_1",
			DelaySecs: 60,
			StopTimeUpdates: []*rtcache.StopTimeUpdate{
				{StopId: "2000448", ArrivalDelay: &arrivalDelay},
			},
		}},
	}}
	service := newTestService(t, &fakeSchedule{}, feed, trips, &fakeAlerts{})

	recorder := get(t, service, "/v1/trips/rail_1")
	assert.Equal(recorder.Code, http.StatusOK)

	var body struct {
		Data tripDetailData `json:"data"`
	}
	assert.NoErr(json.Unmarshal(recorder.Body.Bytes(), &body))
	// the first call falls back to the trip delay, the second uses its own
	assert.Equal(*body.Data.StopCalls[0].RealtimeArrivalSecs, 28860)
	assert.Equal(*body.Data.StopCalls[1].RealtimeArrivalSecs, 29280)
}

func TestTripDetailEndpointUnknownTrip(t *testing.T) {
	assert := is.New(t)
	service := newTestService(t, &fakeSchedule{}, &fakeFeed{}, &fakeTrips{}, &fakeAlerts{})

	recorder := get(t, service, "/v1/trips/ghost")
	assert.Equal(recorder.Code, http.StatusNotFound)
}

func TestAlertsEndpoint(t *testing.T) {
	assert := is.New(t)
	alerts := &fakeAlerts{alerts: map[rtcache.Mode][]*rtcache.ServiceAlert{
		rtcache.ModeRail: {{Id: "alert-1", HeaderText: "Trackwork"}},
	}}
	service := newTestService(t, &fakeSchedule{}, &fakeFeed{}, &fakeTrips{}, alerts)

	recorder := get(t, service, "/v1/alerts/rail")
	assert.Equal(recorder.Code, http.StatusOK)

	var body struct {
		Data alertsData `json:"data"`
	}
	assert.NoErr(json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(body.Data.Mode, rtcache.ModeRail)
	assert.Equal(len(body.Data.Alerts), 1)
	assert.Equal(body.Data.Alerts[0].HeaderText, "Trackwork")

	// a mode with no cached alerts serves an empty list
	recorder = get(t, service, "/v1/alerts/ferry")
	assert.Equal(recorder.Code, http.StatusOK)
	assert.NoErr(json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(len(body.Data.Alerts), 0)
}

func TestAlertsEndpointUnknownMode(t *testing.T) {
	assert := is.New(t)
	service := newTestService(t, &fakeSchedule{}, &fakeFeed{}, &fakeTrips{}, &fakeAlerts{})

	recorder := get(t, service, "/v1/alerts/zeppelin")
	assert.Equal(recorder.Code, http.StatusBadRequest)
}
