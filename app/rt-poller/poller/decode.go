package poller

import (
	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/opentransitau/departureboard/business/data/rtcache"
)

// Conversions from GTFS-realtime protocol buffer messages into the plain
// records cached per mode. Any changes to the GTFS-realtime protocol or
// generated code can be handled here and not elsewhere in the program.

// tripUpdatesFromFeed reads every trip update entity from feedMessage.
// Entities without a trip id are skipped: a delay that cannot be matched to a
// scheduled trip can never be served.
func tripUpdatesFromFeed(feedMessage *gtfs.FeedMessage) []*rtcache.TripUpdate {
	updates := make([]*rtcache.TripUpdate, 0, len(feedMessage.Entity))
	for _, entity := range feedMessage.Entity {
		tu := entity.TripUpdate
		if tu == nil || tu.Trip == nil || tu.Trip.GetTripId() == "" {
			continue
		}
		update := rtcache.TripUpdate{
			TripId:    tu.Trip.GetTripId(),
			RouteId:   tu.Trip.RouteId,
			DelaySecs: tripDelaySeconds(tu),
		}
		for _, stu := range tu.StopTimeUpdate {
			if stu.GetStopId() == "" {
				continue
			}
			update.StopTimeUpdates = append(update.StopTimeUpdates, stopTimeUpdateFrom(stu))
		}
		updates = append(updates, &update)
	}
	return updates
}

// tripDelaySeconds resolves the trip level delay, falling back to the first
// per-stop delay when the feed omits it
func tripDelaySeconds(tu *gtfs.TripUpdate) int {
	if tu.Delay != nil {
		return int(*tu.Delay)
	}
	for _, stu := range tu.StopTimeUpdate {
		if stu.Departure != nil && stu.Departure.Delay != nil {
			return int(*stu.Departure.Delay)
		}
		if stu.Arrival != nil && stu.Arrival.Delay != nil {
			return int(*stu.Arrival.Delay)
		}
	}
	return 0
}

func stopTimeUpdateFrom(stu *gtfs.TripUpdate_StopTimeUpdate) *rtcache.StopTimeUpdate {
	result := rtcache.StopTimeUpdate{
		StopId: stu.GetStopId(),
	}
	if stu.StopSequence != nil {
		sequence := int(*stu.StopSequence)
		result.StopSequence = &sequence
	}
	if stu.Arrival != nil && stu.Arrival.Delay != nil {
		delay := int(*stu.Arrival.Delay)
		result.ArrivalDelay = &delay
	}
	if stu.Departure != nil && stu.Departure.Delay != nil {
		delay := int(*stu.Departure.Delay)
		result.DepartureDelay = &delay
	}
	// the platform assignment arrives as the assigned stop on the update
	if props := stu.StopTimeProperties; props != nil && props.AssignedStopId != nil {
		result.PlatformCode = props.AssignedStopId
	}
	return &result
}

// vehiclePositionsFromFeed reads every vehicle entity carrying a trip id from
// feedMessage
func vehiclePositionsFromFeed(feedMessage *gtfs.FeedMessage) []*rtcache.VehiclePosition {
	positions := make([]*rtcache.VehiclePosition, 0, len(feedMessage.Entity))
	for _, entity := range feedMessage.Entity {
		vp := entity.Vehicle
		if vp == nil || vp.Trip == nil || vp.Trip.GetTripId() == "" {
			continue
		}
		position := rtcache.VehiclePosition{
			TripId:  vp.Trip.GetTripId(),
			RouteId: vp.Trip.RouteId,
		}
		if vp.Vehicle != nil {
			position.VehicleId = vp.Vehicle.Id
		}
		if vp.Position != nil {
			position.Latitude = float64From(vp.Position.Latitude)
			position.Longitude = float64From(vp.Position.Longitude)
			position.Bearing = float64From(vp.Position.Bearing)
			position.Speed = float64From(vp.Position.Speed)
		}
		if vp.Timestamp != nil {
			timestamp := int64(*vp.Timestamp)
			position.Timestamp = &timestamp
		}
		if vp.OccupancyStatus != nil {
			occupancy := int(*vp.OccupancyStatus)
			position.OccupancyStatus = &occupancy
		}
		positions = append(positions, &position)
	}
	return positions
}

func float64From(value *float32) *float64 {
	if value == nil {
		return nil
	}
	result := float64(*value)
	return &result
}

// serviceAlertsFromFeed reads every alert entity from feedMessage
func serviceAlertsFromFeed(feedMessage *gtfs.FeedMessage) []*rtcache.ServiceAlert {
	alerts := make([]*rtcache.ServiceAlert, 0, len(feedMessage.Entity))
	for _, entity := range feedMessage.Entity {
		a := entity.Alert
		if a == nil {
			continue
		}
		alert := rtcache.ServiceAlert{
			Id:              entity.GetId(),
			HeaderText:      translatedText(a.HeaderText),
			DescriptionText: translatedTextPointer(a.DescriptionText),
		}
		if a.Effect != nil {
			effect := a.Effect.String()
			alert.Effect = &effect
		}
		if a.Cause != nil {
			cause := a.Cause.String()
			alert.Cause = &cause
		}
		if a.SeverityLevel != nil {
			severity := a.SeverityLevel.String()
			alert.SeverityLevel = &severity
		}
		for _, period := range a.ActivePeriod {
			alert.ActivePeriods = append(alert.ActivePeriods, &rtcache.AlertTimeRange{
				Start: int64From(period.Start),
				End:   int64From(period.End),
			})
		}
		for _, selector := range a.InformedEntity {
			alert.Entities = append(alert.Entities, alertEntityFrom(selector))
		}
		alerts = append(alerts, &alert)
	}
	return alerts
}

func alertEntityFrom(selector *gtfs.EntitySelector) *rtcache.AlertEntity {
	result := rtcache.AlertEntity{
		AgencyId: selector.AgencyId,
		RouteId:  selector.RouteId,
		StopId:   selector.StopId,
	}
	if selector.RouteType != nil {
		routeType := int(*selector.RouteType)
		result.RouteType = &routeType
	}
	if selector.Trip != nil && selector.Trip.TripId != nil {
		result.TripId = selector.Trip.TripId
	}
	return &result
}

func int64From(value *uint64) *int64 {
	if value == nil {
		return nil
	}
	result := int64(*value)
	return &result
}

// translatedText returns the first translation in a TranslatedString, empty
// when none is present
func translatedText(translated *gtfs.TranslatedString) string {
	if translated == nil {
		return ""
	}
	for _, translation := range translated.Translation {
		if translation.Text != nil {
			return *translation.Text
		}
	}
	return ""
}

func translatedTextPointer(translated *gtfs.TranslatedString) *string {
	text := translatedText(translated)
	if text == "" {
		return nil
	}
	return &text
}
