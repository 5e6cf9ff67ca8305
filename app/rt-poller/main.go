package main

import (
	"fmt"
	logger "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"

	"github.com/opentransitau/departureboard/app/rt-poller/poller"
	"github.com/opentransitau/departureboard/business/data/rtcache"
	"github.com/opentransitau/departureboard/foundation/kvstore"

	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "RT_POLLER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	_ = godotenv.Load()

	var cfg struct {
		conf.Version
		Redis struct {
			Host     string `conf:"default:0.0.0.0:6379"`
			Password string `conf:"noprint"`
			DB       int    `conf:"default:0"`
			PoolSize int    `conf:"default:10"`
		}
		NATS struct {
			Url            string `conf:"default:nats://localhost:4222"`
			PublishResults bool   `conf:"default:true"`
		}
		GTFSRT struct {
			ApiKey                      string `conf:"noprint"`
			TripUpdatesUrlTemplate      string `conf:"default:https://api.transport.nsw.gov.au/v1/gtfs/realtime/%s"`
			VehiclePositionsUrlTemplate string `conf:"default:https://api.transport.nsw.gov.au/v1/gtfs/vehiclepos/%s"`
			AlertsUrlTemplate           string `conf:"default:https://api.transport.nsw.gov.au/v1/gtfs/alerts/%s"`
			PollEverySeconds            int    `conf:"default:30"`
		}
		Web struct {
			MetricsHost string `conf:"default:0.0.0.0:4000"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Poll real-time feeds for every mode into the key value store"
	const prefix = "RT_POLLER"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start key value store

	log.Println("main: Initializing key value store support")

	client, err := kvstore.Open(kvstore.Config{
		Host:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("connecting to key value store: %w", err)
	}
	defer func() {
		log.Printf("main: Key value store stopping : %s", cfg.Redis.Host)
		err = client.Close()
		if err != nil {
			log.Printf("main: error closing key value store client: %v", err)
		}
	}()
	cache := rtcache.NewCache(log, client)

	// =========================================================================
	// Start NATS

	log.Printf("main: Connecting to NATS at %s", cfg.NATS.Url)
	natsConnection, err := nats.Connect(cfg.NATS.Url)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer natsConnection.Close()

	// =========================================================================
	// Start metrics endpoint

	collector := poller.NewCollector()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		log.Printf("main: metrics listening on %s", cfg.Web.MetricsHost)
		if err := http.ListenAndServe(cfg.Web.MetricsHost, mux); err != nil {
			log.Printf("main: metrics endpoint stopped: %v", err)
		}
	}()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return poller.RunPollLoop(log, cache, natsConnection, collector, poller.Config{
		ApiKey:                      cfg.GTFSRT.ApiKey,
		TripUpdatesUrlTemplate:      cfg.GTFSRT.TripUpdatesUrlTemplate,
		VehiclePositionsUrlTemplate: cfg.GTFSRT.VehiclePositionsUrlTemplate,
		AlertsUrlTemplate:           cfg.GTFSRT.AlertsUrlTemplate,
		PollEverySeconds:            cfg.GTFSRT.PollEverySeconds,
		PublishResults:              cfg.NATS.PublishResults,
	}, shutdown)
}
