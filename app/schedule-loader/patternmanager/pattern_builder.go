package patternmanager

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/opentransitau/departureboard/business/data/schedule"
)

// patternModel is the compressed schedule produced by one build: trips
// deduplicated into patterns, with per-stop times factored into offsets
// relative to each trip's start
type patternModel struct {
	patterns     []*schedule.Pattern
	patternStops []*schedule.PatternStop
	trips        []*schedule.Trip
}

// tripTimes pairs a trip with its ordered stop time rows and resolved start time
type tripTimes struct {
	trip      *rawTrip
	startTime int
	stopTimes []*rawStopTime
}

// patternGroup collects the trips sharing one (route, direction, stop
// sequence) combination. Each group becomes exactly one pattern.
type patternGroup struct {
	routeId     string
	directionId int
	trips       []*tripTimes
}

// buildPatternModel transforms the filtered feed into the pattern model.
//
// Trips are grouped by route, direction and their ordered stop id sequence;
// each group becomes one pattern with a dense integer id assigned over the
// lexicographically sorted group keys, so identical input always produces
// identical groupings. Per-stop offsets are the median across the group's
// trips, robust against a single trip's anomalous times. A trip's start time
// is the departure at its first stop and is kept as-is above 86,400 for
// next-day service.
//
// Trips with no stop time rows cannot be placed in any pattern; they are
// excluded and logged, never dropped silently.
func buildPatternModel(log *log.Logger, f *feed) (*patternModel, error) {
	stopTimesByTrip := make(map[string][]*rawStopTime)
	for _, stopTime := range f.stopTimes {
		stopTimesByTrip[stopTime.TripId] = append(stopTimesByTrip[stopTime.TripId], stopTime)
	}
	for _, stopTimes := range stopTimesByTrip {
		sort.Slice(stopTimes, func(i, j int) bool {
			return stopTimes[i].StopSequence < stopTimes[j].StopSequence
		})
	}

	groups := make(map[string]*patternGroup)
	excluded := 0
	for _, trip := range f.trips {
		stopTimes := stopTimesByTrip[trip.TripId]
		if len(stopTimes) == 0 {
			log.Printf("excluding trip %s on route %s: no stop time rows", trip.TripId, trip.RouteId)
			excluded++
			continue
		}
		key := groupKey(trip, stopTimes)
		group, present := groups[key]
		if !present {
			group = &patternGroup{routeId: trip.RouteId, directionId: trip.DirectionId}
			groups[key] = group
		}
		group.trips = append(group.trips, &tripTimes{
			trip:      trip,
			startTime: stopTimes[0].DepartureTime,
			stopTimes: stopTimes,
		})
	}
	if excluded > 0 {
		log.Printf("excluded %d trip(s) with no stop time rows", excluded)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no patterns could be built: %d trips, none with stop time rows", len(f.trips))
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	model := &patternModel{}
	for i, key := range keys {
		group := groups[key]
		patternId := int64(i + 1)

		model.patterns = append(model.patterns, &schedule.Pattern{
			Id:          patternId,
			RouteId:     group.routeId,
			DirectionId: group.directionId,
		})
		model.patternStops = append(model.patternStops, buildPatternStops(patternId, group)...)

		for _, tt := range group.trips {
			model.trips = append(model.trips, &schedule.Trip{
				TripId:               tt.trip.TripId,
				RouteId:              tt.trip.RouteId,
				ServiceId:            tt.trip.ServiceId,
				PatternId:            patternId,
				TripHeadsign:         tt.trip.TripHeadsign,
				TripShortName:        tt.trip.TripShortName,
				BlockId:              tt.trip.BlockId,
				DirectionId:          tt.trip.DirectionId,
				WheelchairAccessible: tt.trip.WheelchairAccessible,
				StartTime:            tt.startTime,
			})
		}
	}
	return model, nil
}

// groupKey builds the grouping key for a trip: route, direction and the
// ordered stop id signature. Two trips share a pattern iff their keys match.
func groupKey(trip *rawTrip, stopTimes []*rawStopTime) string {
	stopIds := make([]string, 0, len(stopTimes))
	for _, stopTime := range stopTimes {
		stopIds = append(stopIds, stopTime.StopId)
	}
	return fmt.Sprintf("%s\x1f%d\x1f%s", trip.RouteId, trip.DirectionId, strings.Join(stopIds, "|"))
}

// buildPatternStops computes the pattern's per-stop rows. The first trip in
// the group supplies the stop ids and sequence numbers; every trip in the
// group has the identical stop sequence so any member would do. Offsets are
// the per-position median over the group.
func buildPatternStops(patternId int64, group *patternGroup) []*schedule.PatternStop {
	representative := group.trips[0]
	patternStops := make([]*schedule.PatternStop, 0, len(representative.stopTimes))

	for position, stopTime := range representative.stopTimes {
		arrivalOffsets := make([]int, 0, len(group.trips))
		departureOffsets := make([]int, 0, len(group.trips))
		for _, tt := range group.trips {
			st := tt.stopTimes[position]
			arrivalOffsets = append(arrivalOffsets, st.ArrivalTime-tt.startTime)
			departureOffsets = append(departureOffsets, st.DepartureTime-tt.startTime)
		}
		patternStops = append(patternStops, &schedule.PatternStop{
			PatternId:       patternId,
			StopSequence:    stopTime.StopSequence,
			StopId:          stopTime.StopId,
			ArrivalOffset:   median(arrivalOffsets),
			DepartureOffset: median(departureOffsets),
		})
	}
	return patternStops
}

// median returns the middle value of values; with an even count, the mean of
// the two middle values truncated toward zero
func median(values []int) int {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	middle := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[middle]
	}
	return (sorted[middle-1] + sorted[middle]) / 2
}
