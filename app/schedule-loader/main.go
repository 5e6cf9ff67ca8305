package main

import (
	"fmt"
	logger "log"
	"os"
	"strconv"
	"strings"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"

	"github.com/opentransitau/departureboard/app/schedule-loader/patternmanager"
	"github.com/opentransitau/departureboard/foundation/database"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "SCHEDULE_LOADER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	_ = godotenv.Load()

	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		GTFS struct {
			Feeds       string `conf:"default:sydneytrains;metro;buses;sydneyferries;mff;lightrail"`
			UrlTemplate string `conf:"default:https://api.transport.nsw.gov.au/v1/gtfs/schedule/%s"`
			ApiKey      string `conf:"noprint"`
			LocalDir    string
		}
		Area struct {
			MinLat float64 `conf:"default:-34.5"`
			MaxLat float64 `conf:"default:-33.3"`
			MinLon float64 `conf:"default:150.5"`
			MaxLon float64 `conf:"default:151.5"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Build and maintain pattern model feed generations in database"
	if err := conf.Parse(os.Args[1:], "SCHEDULE_LOADER", &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage("SCHEDULE_LOADER", &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString("SCHEDULE_LOADER", &cfg)
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

	switch cfg.Args.Num(0) {
	case "load":
		loadCfg := patternmanager.LoadConfig{
			FeedNames:   strings.Split(cfg.GTFS.Feeds, ";"),
			UrlTemplate: cfg.GTFS.UrlTemplate,
			ApiKey:      cfg.GTFS.ApiKey,
			LocalDir:    cfg.GTFS.LocalDir,
			Area: patternmanager.ServiceArea{
				MinLat: cfg.Area.MinLat,
				MaxLat: cfg.Area.MaxLat,
				MinLon: cfg.Area.MinLon,
				MaxLon: cfg.Area.MaxLon,
			},
		}
		err = patternmanager.LoadSchedule(log, db, loadCfg)
		if err != nil {
			return err
		}
		return patternmanager.ListFeedGenerations(db)
	case "delete":
		generationIdString := cfg.Args.Num(1)
		if len(generationIdString) < 1 {
			return fmt.Errorf("expected feed generation id with command delete")
		}
		generationId, err := strconv.ParseInt(generationIdString, 10, 64)
		if err != nil {
			return fmt.Errorf("unable to parse feed generation id %s, error: %w", generationIdString, err)
		}
		return patternmanager.DeleteFeedGeneration(log, db, generationId)

	case "list":
		return patternmanager.ListFeedGenerations(db)

	default:
		fmt.Println("load: download gtfs feeds and build a new pattern model feed generation")
		fmt.Println("delete: remove a feed generation from the database")
		fmt.Println("list: list all feed generations in the database")
		usage, err := conf.Usage("SCHEDULE_LOADER", &cfg)
		if err != nil {
			return fmt.Errorf("generating config usage: %w", err)
		}
		fmt.Println(usage)

	}
	return nil
}
