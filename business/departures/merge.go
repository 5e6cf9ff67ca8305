package departures

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/opentransitau/departureboard/business/data/rtcache"
	"github.com/opentransitau/departureboard/business/data/schedule"
)

// ScheduleSource provides the static schedule reads the merge path needs.
// Implemented over the schedule store in production and by fixtures in tests.
type ScheduleSource interface {
	// ScheduledDepartures retrieves (trip, pattern stop) rows serving stopId
	// on serviceDate, at or after timeSecs when future is set, at or before
	// otherwise, ordered by scheduled time in the query direction.
	ScheduledDepartures(stopId string, serviceDate time.Time, timeSecs int, future bool, limit int) ([]*schedule.ScheduledDeparture, error)
	// EarliestDeparture retrieves the minimum scheduled departure time of day
	// at stopId across all services.
	EarliestDeparture(stopId string) (int, error)
	// StopExists reports whether stopId is present in the schedule store
	StopExists(stopId string) (bool, error)
}

// FeedSource provides the cached real-time feed reads the merge path needs.
// *rtcache.Cache satisfies it.
type FeedSource interface {
	GetTripUpdates(ctx context.Context, mode rtcache.Mode) ([]*rtcache.TripUpdate, error)
	GetVehiclePositions(ctx context.Context, mode rtcache.Mode) ([]*rtcache.VehiclePosition, error)
	TripUpdatesWrittenAt(ctx context.Context, mode rtcache.Mode) (time.Time, bool, error)
}

// Merger blends scheduled departures with cached real-time data
type Merger struct {
	log      *log.Logger
	schedule ScheduleSource
	feed     FeedSource
}

// NewMerger creates a Merger over its two data sources
func NewMerger(log *log.Logger, scheduleSource ScheduleSource, feedSource FeedSource) *Merger {
	return &Merger{log: log, schedule: scheduleSource, feed: feedSource}
}

// Merged is the output of one merge pass, before degradation handling
type Merged struct {
	Departures []*Departure
	// ConsultedModes lists the modes whose feed blobs were read, derived
	// from the routes present in the fetched schedule rows
	ConsultedModes []rtcache.Mode
	// AnyRealtime reports whether any returned departure carried a delay
	AnyRealtime bool
}

// tripRealtime is the per-trip real-time state gathered from the feed blobs
type tripRealtime struct {
	delaySecs int
	platform  *string
	occupancy *int
}

// Departures merges the static schedule with cached real-time delays for one
// request. The schedule rows are over-fetched beyond the requested limit,
// each row's time is adjusted by its trip's cached delay (0 when no update is
// cached), rows are sorted on the adjusted time, and only then truncated to
// the limit. Per-mode feed failures are logged and treated as static
// fallback, never returned.
func (m *Merger) Departures(ctx context.Context, req Request) (*Merged, error) {
	fetchLimit := req.Limit * 3
	if fetchLimit < overFetchFloor {
		fetchLimit = overFetchFloor
	}
	future := req.Direction != DirectionPast

	rows, err := m.schedule.ScheduledDepartures(req.StopId, req.ServiceDate, req.TimeSecs, future, fetchLimit)
	if err != nil {
		return nil, err
	}

	modes := modesForRows(rows)
	realtimeByTrip := m.collectRealtime(ctx, req.StopId, modes)

	departures := make([]*Departure, 0, len(rows))
	for _, row := range rows {
		rt := realtimeByTrip[row.TripId]
		realtimeTime := row.ScheduledTime + rt.delaySecs
		departures = append(departures, &Departure{
			TripId:               row.TripId,
			RouteShortName:       row.RouteShortName,
			RouteLongName:        row.RouteLongName,
			RouteType:            row.RouteType,
			RouteColor:           row.RouteColor,
			Headsign:             row.TripHeadsign,
			ScheduledTimeSecs:    row.ScheduledTime,
			RealtimeTimeSecs:     realtimeTime,
			MinutesUntil:         minutesUntil(realtimeTime, req.TimeSecs),
			DelaySecs:            rt.delaySecs,
			Realtime:             rt.delaySecs != 0,
			StopSequence:         row.StopSequence,
			Platform:             rt.platform,
			WheelchairAccessible: row.WheelchairAccessible,
			OccupancyStatus:      rt.occupancy,
		})
	}

	sortDepartures(departures, future)
	if len(departures) > req.Limit {
		departures = departures[:req.Limit]
	}
	anyRealtime := false
	for _, dep := range departures {
		if dep.Realtime {
			anyRealtime = true
			break
		}
	}

	return &Merged{
		Departures:     departures,
		ConsultedModes: modes,
		AnyRealtime:    anyRealtime,
	}, nil
}

// modesForRows derives the modes present among the fetched rows. Only those
// modes' feed blobs are read, bounding cache reads per request. Iterating the
// fixed mode list keeps the result order deterministic.
func modesForRows(rows []*schedule.ScheduledDeparture) []rtcache.Mode {
	present := make(map[rtcache.Mode]bool)
	for _, row := range rows {
		present[rtcache.ModeForRoute(row.RouteId)] = true
	}
	var modes []rtcache.Mode
	for _, mode := range rtcache.AllModes {
		if present[mode] {
			modes = append(modes, mode)
		}
	}
	return modes
}

// collectRealtime gathers per-trip delay, platform and occupancy from the
// cached blobs of the given modes. The platform comes from the first per-stop
// update matching stopId that carries a platform code. A mode whose blobs
// cannot be read contributes nothing.
func (m *Merger) collectRealtime(ctx context.Context, stopId string, modes []rtcache.Mode) map[string]tripRealtime {
	realtimeByTrip := make(map[string]tripRealtime)

	for _, mode := range modes {
		updates, err := m.feed.GetTripUpdates(ctx, mode)
		if err != nil {
			m.log.Printf("unable to retrieve trip updates for mode %s, serving static fallback, error: %v", mode, err)
		}
		for _, update := range updates {
			if update.TripId == "" {
				continue
			}
			rt := realtimeByTrip[update.TripId]
			rt.delaySecs = update.DelaySecs
			for _, stu := range update.StopTimeUpdates {
				if stu.StopId == stopId && stu.PlatformCode != nil && *stu.PlatformCode != "" {
					rt.platform = stu.PlatformCode
					break
				}
			}
			realtimeByTrip[update.TripId] = rt
		}

		positions, err := m.feed.GetVehiclePositions(ctx, mode)
		if err != nil {
			m.log.Printf("unable to retrieve vehicle positions for mode %s, error: %v", mode, err)
		}
		for _, position := range positions {
			if position.TripId == "" || position.OccupancyStatus == nil {
				continue
			}
			rt := realtimeByTrip[position.TripId]
			rt.occupancy = position.OccupancyStatus
			realtimeByTrip[position.TripId] = rt
		}
	}
	return realtimeByTrip
}

// sortDepartures orders on the realtime-adjusted time so delayed trips
// reorder correctly against on-time ones. Ascending for future, descending
// for past. Ties keep the scheduled order from the store.
func sortDepartures(departures []*Departure, future bool) {
	sort.SliceStable(departures, func(i, j int) bool {
		if future {
			return departures[i].RealtimeTimeSecs < departures[j].RealtimeTimeSecs
		}
		return departures[i].RealtimeTimeSecs > departures[j].RealtimeTimeSecs
	})
}
