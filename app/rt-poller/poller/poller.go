// Package poller periodically retrieves GTFS-realtime feeds for every mode
// and writes them to the key value store as short lived blobs for the
// departures path to read.
package poller

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"

	"github.com/opentransitau/departureboard/business/data/rtcache"
	"github.com/opentransitau/departureboard/foundation/httpclient"
)

const protobufAccept = "application/x-google-protobuf"

// feedPaths maps each mode to its url path segment on the feed provider
var feedPaths = map[rtcache.Mode]string{
	rtcache.ModeRail:      "sydneytrains",
	rtcache.ModeMetro:     "metro",
	rtcache.ModeBus:       "buses",
	rtcache.ModeFerry:     "ferries/sydneyferries",
	rtcache.ModeLightRail: "lightrail/innerwest",
}

// Config describes one poller instance
type Config struct {
	// ApiKey authorizes feed retrievals
	ApiKey string
	// Url templates produce a feed's url from its mode path segment
	TripUpdatesUrlTemplate      string
	VehiclePositionsUrlTemplate string
	AlertsUrlTemplate           string
	// PollEverySeconds is the target cycle interval
	PollEverySeconds int
	// PublishResults sends a cycle summary over NATS after every cycle
	PublishResults bool
}

type feedPoller struct {
	log       *log.Logger
	cache     *rtcache.Cache
	client    *http.Client
	cfg       Config
	publisher *pollResultsPublisher
}

// RunPollLoop retrieves every mode's feeds each cycle until shutdownSignal
// arrives. Cycles are guarded by the store's poll lock so overlapping poller
// instances never write over each other.
func RunPollLoop(log *log.Logger,
	cache *rtcache.Cache,
	natsConnection *nats.Conn,
	collector *Collector,
	cfg Config,
	shutdownSignal chan os.Signal) error {

	loopDuration := time.Duration(cfg.PollEverySeconds) * time.Second

	sleepChan := make(chan bool)
	sleep := time.Duration(0) //sleep for zero seconds the first time

	p := &feedPoller{
		log:       log,
		cache:     cache,
		client:    &http.Client{Timeout: 30 * time.Second},
		cfg:       cfg,
		publisher: makePollResultsPublisher(log, natsConnection, collector, cfg.PublishResults),
	}

	for {

		go func() {
			time.Sleep(sleep)
			sleepChan <- true
		}()

		select {
		case <-shutdownSignal:
			log.Printf("Exiting on shutdown signal")
			return nil
		case <-sleepChan:
			break
		}

		//set default sleep for next loop in the event of an error after continue statements
		sleep = loopDuration

		start := time.Now()
		ctx := context.Background()

		acquired, err := p.cache.AcquirePollLock(ctx)
		if err != nil {
			log.Printf("error attempting to acquire poll lock. error:%v\n", err)
			continue
		}
		if !acquired {
			log.Printf("another poller holds the poll lock, skipping cycle\n")
			collector.CyclesSkipped.Inc()
			continue
		}

		results := p.pollOnce(ctx, start)
		p.cache.ReleasePollLock(ctx)

		p.publisher.publish(results)
		log.Printf("cycle retrieved %d feeds, %d failures, took %v\n",
			len(results.Results), results.Failures, time.Duration(results.DurationMillis)*time.Millisecond)

		// attempt to run the loop every PollEverySeconds by subtracting the
		// time it took to perform the work
		workTook := time.Now().Sub(start)
		if workTook >= loopDuration {
			sleep = time.Duration(0)
		} else {
			sleep = loopDuration - workTook
		}
	}
}

// pollOnce retrieves all three feeds for every mode. A failed retrieval is
// recorded in the results and skipped: the previous blob is left to expire on
// its own, surfacing as staleness on the departures path.
func (p *feedPoller) pollOnce(ctx context.Context, start time.Time) *cycleResults {
	results := cycleResults{StartedAt: start}

	for _, mode := range rtcache.AllModes {
		results.Results = append(results.Results,
			p.pollFeed(ctx, mode, "trip_updates", p.cfg.TripUpdatesUrlTemplate, p.cacheTripUpdates),
			p.pollFeed(ctx, mode, "vehicle_positions", p.cfg.VehiclePositionsUrlTemplate, p.cacheVehiclePositions),
			p.pollFeed(ctx, mode, "alerts", p.cfg.AlertsUrlTemplate, p.cacheServiceAlerts),
		)
	}

	for _, result := range results.Results {
		if result.Error != "" {
			results.Failures++
		}
	}
	results.DurationMillis = time.Since(start).Milliseconds()
	return &results
}

// pollFeed retrieves and decodes one (mode, feed type) feed and hands the
// message to cacheRecords for conversion and storage
func (p *feedPoller) pollFeed(ctx context.Context,
	mode rtcache.Mode,
	feedName string,
	urlTemplate string,
	cacheRecords func(context.Context, rtcache.Mode, *gtfs.FeedMessage) (int, error)) *feedResult {

	result := feedResult{Mode: string(mode), Feed: feedName}

	url := fmt.Sprintf(urlTemplate, feedPaths[mode])
	feedBytes, err := httpclient.GetAuthorizedBytes(p.client, url, p.cfg.ApiKey, protobufAccept)
	if err != nil {
		p.log.Printf("error retrieving %s feed for %s. error:%v\n", feedName, mode, err)
		result.Error = err.Error()
		return &result
	}

	feedMessage := gtfs.FeedMessage{}
	err = proto.Unmarshal(feedBytes, &feedMessage)
	if err != nil {
		p.log.Printf("unable to unmarshal %s FeedMessage for %s. error:%v\n", feedName, mode, err)
		result.Error = err.Error()
		return &result
	}

	count, err := cacheRecords(ctx, mode, &feedMessage)
	if err != nil {
		p.log.Printf("unable to cache %s records for %s. error:%v\n", feedName, mode, err)
		result.Error = err.Error()
		return &result
	}
	result.Records = count
	return &result
}

func (p *feedPoller) cacheTripUpdates(ctx context.Context, mode rtcache.Mode, feedMessage *gtfs.FeedMessage) (int, error) {
	updates := tripUpdatesFromFeed(feedMessage)
	return len(updates), p.cache.PutTripUpdates(ctx, mode, updates)
}

func (p *feedPoller) cacheVehiclePositions(ctx context.Context, mode rtcache.Mode, feedMessage *gtfs.FeedMessage) (int, error) {
	positions := vehiclePositionsFromFeed(feedMessage)
	return len(positions), p.cache.PutVehiclePositions(ctx, mode, positions)
}

func (p *feedPoller) cacheServiceAlerts(ctx context.Context, mode rtcache.Mode, feedMessage *gtfs.FeedMessage) (int, error) {
	alerts := serviceAlertsFromFeed(feedMessage)
	return len(alerts), p.cache.PutServiceAlerts(ctx, mode, alerts)
}
