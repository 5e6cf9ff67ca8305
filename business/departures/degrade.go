package departures

import (
	"context"
	"log"
	"time"

	"github.com/opentransitau/departureboard/business/data/rtcache"
)

// Controller wraps the Merger with data-availability degradation. A request
// only fails on invalid input; partial or total unavailability of either
// source degrades the response and is reported through the page's source and
// stale fields instead.
type Controller struct {
	log      *log.Logger
	merger   *Merger
	schedule ScheduleSource
	feed     FeedSource
	now      func() time.Time
}

// NewController creates a Controller over the Merger's data sources
func NewController(log *log.Logger, scheduleSource ScheduleSource, feedSource FeedSource) *Controller {
	return &Controller{
		log:      log,
		merger:   NewMerger(log, scheduleSource, feedSource),
		schedule: scheduleSource,
		feed:     feedSource,
		now:      time.Now,
	}
}

// DeparturesPage produces the departures page for one request, choosing the
// data source tier:
//
//	merged rows, some delays matched  -> static+rt
//	merged rows, no delays matched    -> static_only
//	no rows, feed rows for this stop  -> rt_only, synthesized from the feed
//	no rows anywhere                  -> no_data
//
// Staleness is evaluated after the source decision, over only the modes that
// were actually consulted.
func (c *Controller) DeparturesPage(ctx context.Context, req Request) *DeparturesPage {
	merged, err := c.merger.Departures(ctx, req)
	if err != nil {
		// the schedule store being down is a degradation, not a failure;
		// the feed cache may still be able to serve this stop
		c.log.Printf("schedule query failed for stop %s, attempting feed-only serving, error: %v", req.StopId, err)
		merged = &Merged{}
	}

	if len(merged.Departures) > 0 {
		return c.staticPage(ctx, req, merged)
	}

	rtDepartures := c.feedOnlyDepartures(ctx, req)
	if len(rtDepartures) > 0 {
		page := &DeparturesPage{
			StopExists:     true, // feed rows referencing the stop prove it exists
			Source:         SourceRTOnly,
			Stale:          c.anyStale(ctx, rtcache.AllModes),
			Departures:     rtDepartures,
			ConsultedModes: rtcache.AllModes,
			// no static bound is available, so neither direction can claim more
			HasMorePast:   false,
			HasMoreFuture: false,
		}
		earliest, latest := timeBounds(rtDepartures)
		page.EarliestTimeSecs = &earliest
		page.LatestTimeSecs = &latest
		return page
	}

	stopExists, err := c.schedule.StopExists(req.StopId)
	if err != nil {
		c.log.Printf("unable to check existence of stop %s, error: %v", req.StopId, err)
		stopExists = false
	}
	return emptyPage(stopExists)
}

// staticPage builds the page for the static+rt and static_only tiers
func (c *Controller) staticPage(ctx context.Context, req Request, merged *Merged) *DeparturesPage {
	source := SourceStaticOnly
	if merged.AnyRealtime {
		source = SourceStaticRT
	}

	earliest, latest := timeBounds(merged.Departures)

	stopEarliest, err := c.schedule.EarliestDeparture(req.StopId)
	if err != nil {
		c.log.Printf("unable to retrieve earliest departure for stop %s, using fallback bound, error: %v", req.StopId, err)
		stopEarliest = fallbackEarliestSecs
	}

	return &DeparturesPage{
		StopExists:       true,
		Source:           source,
		Stale:            c.anyStale(ctx, merged.ConsultedModes),
		Departures:       merged.Departures,
		EarliestTimeSecs: &earliest,
		LatestTimeSecs:   &latest,
		HasMorePast:      earliest > stopEarliest,
		HasMoreFuture:    latest < lastServiceTimeSecs,
		ConsultedModes:   merged.ConsultedModes,
	}
}

// feedOnlyDepartures synthesizes departures directly from the cached trip
// update blobs when the schedule produced nothing. The stop's modes are
// unknown without schedule rows, so every mode's blob is scanned. Departure
// times are estimated from the query time plus the per-stop departure delay,
// and route metadata is a mode-generic placeholder.
func (c *Controller) feedOnlyDepartures(ctx context.Context, req Request) []*Departure {
	future := req.Direction != DirectionPast
	var departures []*Departure

	for _, mode := range rtcache.AllModes {
		updates, err := c.feed.GetTripUpdates(ctx, mode)
		if err != nil {
			c.log.Printf("unable to retrieve trip updates for mode %s, error: %v", mode, err)
			continue
		}
		for _, update := range updates {
			if update.TripId == "" {
				continue
			}
			for _, stu := range update.StopTimeUpdates {
				if stu.StopId != req.StopId {
					continue
				}
				delay := 0
				if stu.DepartureDelay != nil {
					delay = *stu.DepartureDelay
				}
				estimated := req.TimeSecs + delay
				if future && estimated < req.TimeSecs {
					continue
				}
				if !future && estimated > req.TimeSecs {
					continue
				}
				stopSequence := 0
				if stu.StopSequence != nil {
					stopSequence = *stu.StopSequence
				}
				departures = append(departures, &Departure{
					TripId:            update.TripId,
					RouteShortName:    placeholderShortName(mode),
					RouteLongName:     placeholderLongName(mode),
					RouteType:         rtcache.RouteTypeForMode(mode),
					Headsign:          nil,
					ScheduledTimeSecs: estimated - delay,
					RealtimeTimeSecs:  estimated,
					MinutesUntil:      minutesUntil(estimated, req.TimeSecs),
					DelaySecs:         delay,
					Realtime:          true,
					StopSequence:      stopSequence,
					Platform:          stu.PlatformCode,
				})
			}
		}
	}

	sortDepartures(departures, future)
	if len(departures) > req.Limit {
		departures = departures[:req.Limit]
	}
	return departures
}

// anyStale reports whether any consulted mode's trip update blob was last
// written longer ago than the freshness window. A missing marker is not
// stale, the blob has simply expired and contributed nothing.
func (c *Controller) anyStale(ctx context.Context, modes []rtcache.Mode) bool {
	now := c.now()
	for _, mode := range modes {
		writtenAt, found, err := c.feed.TripUpdatesWrittenAt(ctx, mode)
		if err != nil {
			c.log.Printf("unable to check feed freshness for mode %s, error: %v", mode, err)
			continue
		}
		if found && now.Sub(writtenAt) > rtcache.StaleAfter {
			return true
		}
	}
	return false
}

func timeBounds(departures []*Departure) (earliest, latest int) {
	earliest = departures[0].RealtimeTimeSecs
	latest = departures[0].RealtimeTimeSecs
	for _, dep := range departures[1:] {
		if dep.RealtimeTimeSecs < earliest {
			earliest = dep.RealtimeTimeSecs
		}
		if dep.RealtimeTimeSecs > latest {
			latest = dep.RealtimeTimeSecs
		}
	}
	return earliest, latest
}

func placeholderShortName(mode rtcache.Mode) string {
	switch mode {
	case rtcache.ModeRail:
		return "RAIL"
	case rtcache.ModeMetro:
		return "METRO"
	case rtcache.ModeFerry:
		return "FERRY"
	case rtcache.ModeLightRail:
		return "LIGHTRAIL"
	default:
		return "BUS"
	}
}

func placeholderLongName(mode rtcache.Mode) string {
	switch mode {
	case rtcache.ModeRail:
		return "Rail Service"
	case rtcache.ModeMetro:
		return "Metro Service"
	case rtcache.ModeFerry:
		return "Ferry Service"
	case rtcache.ModeLightRail:
		return "Light Rail Service"
	default:
		return "Bus Service"
	}
}
