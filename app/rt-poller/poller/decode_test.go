package poller

import (
	"testing"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/matryer/is"
	"google.golang.org/protobuf/proto"
)

func TestTripUpdatesFromFeed(t *testing.T) {
	assert := is.New(t)

	feedMessage := &gtfs.FeedMessage{
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("1"),
				TripUpdate: &gtfs.TripUpdate{
					Trip: &gtfs.TripDescriptor{
						TripId:  proto.String("rail_123.T1"),
						RouteId: proto.String("T1"),
					},
					Delay: proto.Int32(120),
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{
						{
							StopId:       proto.String("2000447"),
							StopSequence: proto.Uint32(5),
							Departure:    &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(150)},
							StopTimeProperties: &gtfs.TripUpdate_StopTimeUpdate_StopTimeProperties{
								AssignedStopId: proto.String("2000447P4"),
							},
						},
					},
				},
			},
			{
				// no trip id, must be skipped
				Id:         proto.String("2"),
				TripUpdate: &gtfs.TripUpdate{Trip: &gtfs.TripDescriptor{}},
			},
			{
				// trip delay absent, first per-stop delay supplies it
				Id: proto.String("3"),
				TripUpdate: &gtfs.TripUpdate{
					Trip: &gtfs.TripDescriptor{TripId: proto.String("buses_987")},
					StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{
						{
							StopId:  proto.String("209915"),
							Arrival: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(-60)},
						},
					},
				},
			},
		},
	}

	updates := tripUpdatesFromFeed(feedMessage)
	assert.Equal(len(updates), 2)

	first := updates[0]
	assert.Equal(first.TripId, "rail_123.T1")
	assert.Equal(*first.RouteId, "T1")
	assert.Equal(first.DelaySecs, 120)
	assert.Equal(len(first.StopTimeUpdates), 1)

	stu := first.StopTimeUpdates[0]
	assert.Equal(stu.StopId, "2000447")
	assert.Equal(*stu.StopSequence, 5)
	assert.Equal(*stu.DepartureDelay, 150)
	assert.Equal(*stu.PlatformCode, "2000447P4")
	assert.True(stu.ArrivalDelay == nil)

	second := updates[1]
	assert.Equal(second.TripId, "buses_987")
	assert.Equal(second.DelaySecs, -60)
	assert.True(second.RouteId == nil)
}

func TestVehiclePositionsFromFeed(t *testing.T) {
	assert := is.New(t)

	feedMessage := &gtfs.FeedMessage{
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("1"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:    &gtfs.TripDescriptor{TripId: proto.String("metro_55.M1")},
					Vehicle: &gtfs.VehicleDescriptor{Id: proto.String("V9001")},
					Position: &gtfs.Position{
						Latitude:  proto.Float32(-33.883),
						Longitude: proto.Float32(151.206),
						Bearing:   proto.Float32(90),
					},
					Timestamp:       proto.Uint64(1724979000),
					OccupancyStatus: gtfs.VehiclePosition_FEW_SEATS_AVAILABLE.Enum(),
				},
			},
			{
				// position without a trip cannot feed departures, skipped
				Id:      proto.String("2"),
				Vehicle: &gtfs.VehiclePosition{},
			},
		},
	}

	positions := vehiclePositionsFromFeed(feedMessage)
	assert.Equal(len(positions), 1)

	vp := positions[0]
	assert.Equal(vp.TripId, "metro_55.M1")
	assert.Equal(*vp.VehicleId, "V9001")
	assert.Equal(*vp.Timestamp, int64(1724979000))
	assert.Equal(*vp.OccupancyStatus, int(gtfs.VehiclePosition_FEW_SEATS_AVAILABLE))
	assert.True(vp.Latitude != nil && *vp.Longitude > 151.0)
	assert.True(vp.Speed == nil)
}

func TestServiceAlertsFromFeed(t *testing.T) {
	assert := is.New(t)

	feedMessage := &gtfs.FeedMessage{
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("alert-1"),
				Alert: &gtfs.Alert{
					HeaderText: &gtfs.TranslatedString{
						Translation: []*gtfs.TranslatedString_Translation{
							{Text: proto.String("Trackwork between Central and Strathfield")},
						},
					},
					DescriptionText: &gtfs.TranslatedString{
						Translation: []*gtfs.TranslatedString_Translation{
							{Text: proto.String("Buses replace trains")},
						},
					},
					Effect: gtfs.Alert_DETOUR.Enum(),
					Cause:  gtfs.Alert_MAINTENANCE.Enum(),
					ActivePeriod: []*gtfs.TimeRange{
						{Start: proto.Uint64(1724970000)},
					},
					InformedEntity: []*gtfs.EntitySelector{
						{RouteId: proto.String("T1"), RouteType: proto.Int32(2)},
						{StopId: proto.String("2000447")},
					},
				},
			},
		},
	}

	alerts := serviceAlertsFromFeed(feedMessage)
	assert.Equal(len(alerts), 1)

	alert := alerts[0]
	assert.Equal(alert.Id, "alert-1")
	assert.Equal(alert.HeaderText, "Trackwork between Central and Strathfield")
	assert.Equal(*alert.DescriptionText, "Buses replace trains")
	assert.Equal(*alert.Effect, "DETOUR")
	assert.Equal(*alert.Cause, "MAINTENANCE")
	assert.Equal(len(alert.ActivePeriods), 1)
	assert.Equal(*alert.ActivePeriods[0].Start, int64(1724970000))
	assert.True(alert.ActivePeriods[0].End == nil)
	assert.Equal(len(alert.Entities), 2)
	assert.Equal(*alert.Entities[0].RouteId, "T1")
	assert.Equal(*alert.Entities[0].RouteType, 2)
	assert.Equal(*alert.Entities[1].StopId, "2000447")
}
