package main

import (
	"context"
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"

	"github.com/opentransitau/departureboard/app/departures-api/departsvc"
	"github.com/opentransitau/departureboard/business/data/rtcache"
	"github.com/opentransitau/departureboard/business/departures"
	"github.com/opentransitau/departureboard/foundation/database"
	"github.com/opentransitau/departureboard/foundation/kvstore"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "DEPARTURES_API : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	_ = godotenv.Load()

	var cfg struct {
		conf.Version
		DB struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Redis struct {
			Host     string `conf:"default:0.0.0.0:6379"`
			Password string `conf:"noprint"`
			DB       int    `conf:"default:0"`
			PoolSize int    `conf:"default:10"`
		}
		Web struct {
			ApiHost         string        `conf:"default:0.0.0.0:3000"`
			ShutdownTimeout time.Duration `conf:"default:5s"`
		}
		Schedule struct {
			HolidaysAsSunday bool `conf:"default:true"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Serve departure boards from the pattern model and real-time cache"
	const prefix = "DEPARTURES_API"
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
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		err = db.Close()
		if err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

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

	// =========================================================================
	// Start web service

	cache := rtcache.NewCache(log, client)
	scheduleStore := departures.NewScheduleStore(log, db, cfg.Schedule.HolidaysAsSunday)
	controller := departures.NewController(log, scheduleStore, cache)

	webService, err := departsvc.NewWebService(log, controller, scheduleStore, cache, cache, departsvc.NewCollector())
	if err != nil {
		return err
	}
	srv := departsvc.CreateServer(cfg.Web.ApiHost, webService)

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("main: API listening on %s", cfg.Web.ApiHost)
		serverErrors <- srv.ListenAndServe()
	}()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("main: %v : Start shutdown", sig)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("main: graceful shutdown did not complete in %v : %v", cfg.Web.ShutdownTimeout, err)
			if err = srv.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}
	}
	return nil
}
