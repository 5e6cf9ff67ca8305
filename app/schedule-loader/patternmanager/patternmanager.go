// Package patternmanager provides support for retrieving, parsing, filtering
// and compressing gtfs schedule feeds into the pattern model, and for
// managing the resulting feed generations in the database.
package patternmanager

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opentransitau/departureboard/business/data/schedule"
	"github.com/opentransitau/departureboard/foundation/httpclient"
)

// insertBatchSize limits rows per batched insert statement
const insertBatchSize = 500

// LoadConfig describes one schedule load run
type LoadConfig struct {
	// FeedNames lists the per-mode feeds to retrieve, in merge order
	FeedNames []string
	// UrlTemplate produces a feed's download url from its name
	UrlTemplate string
	// ApiKey authorizes feed downloads
	ApiKey string
	// LocalDir, when set, reads {LocalDir}/{feed}.zip instead of downloading
	LocalDir string
	Area     ServiceArea
}

// LoadSchedule retrieves every configured feed, merges them, restricts them
// to the service area, builds the pattern model and commits it as a new
// active feed generation. The whole load happens inside a single transaction:
// a failure at any point leaves the previous generation untouched.
func LoadSchedule(log *log.Logger, db *sqlx.DB, cfg LoadConfig) error {
	start := time.Now()

	feeds := make([]*feed, 0, len(cfg.FeedNames))
	for _, feedName := range cfg.FeedNames {
		f, err := retrieveFeed(log, cfg, feedName)
		if err != nil {
			return err
		}
		feeds = append(feeds, f)
	}

	merged := mergeFeeds(feeds)
	filtered, err := filterToServiceArea(log, merged, cfg.Area)
	if err != nil {
		return err
	}

	model, err := buildPatternModel(log, filtered)
	if err != nil {
		return err
	}
	log.Printf("Built %d patterns, %d pattern stops, %d trips",
		len(model.patterns), len(model.patternStops), len(model.trips))

	gen := schedule.FeedGeneration{
		Source:       strings.Join(cfg.FeedNames, ","),
		DownloadedAt: start,
	}
	err = transact(log, db, func(tx *sqlx.Tx) error {
		err := schedule.SaveFeedGeneration(tx, &gen)
		if err != nil {
			return err
		}
		genTx := schedule.GenerationTransaction{Gen: gen, Tx: tx}

		err = recordModel(log, &genTx, filtered, model)
		if err != nil {
			return err
		}
		return schedule.ActivateFeedGeneration(tx, &gen, time.Now())
	})
	if err != nil {
		return err
	}
	log.Printf("Loaded feed generation %v in %v seconds", gen, time.Now().Unix()-start.Unix())
	return nil
}

// retrieveFeed downloads or reads one feed zip and parses it into memory
func retrieveFeed(log *log.Logger, cfg LoadConfig, feedName string) (*feed, error) {
	var zipData []byte
	var err error
	if cfg.LocalDir != "" {
		localPath := filepath.Join(cfg.LocalDir, feedName+".zip")
		log.Printf("Reading feed %s from %s", feedName, localPath)
		zipData, err = os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read feed %s: %w", feedName, err)
		}
	} else {
		url := fmt.Sprintf(cfg.UrlTemplate, feedName)
		log.Printf("Downloading feed %s from %s", feedName, url)
		client := &http.Client{Timeout: 5 * time.Minute}
		zipData, err = httpclient.GetAuthorizedBytes(client, url, cfg.ApiKey, "")
		if err != nil {
			return nil, fmt.Errorf("unable to download feed %s: %w", feedName, err)
		}
	}

	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("unable to open feed %s zip: %w", feedName, err)
	}
	return loadFeedZip(log, zipReader, feedName)
}

// recordModel batches the filtered feed and built model into the database
func recordModel(log *log.Logger, genTx *schedule.GenerationTransaction, f *feed, model *patternModel) error {
	log.Printf("Recording %d stops", len(f.stops))
	err := inBatches(len(f.stops), func(low, high int) error {
		return schedule.RecordStops(f.stops[low:high], genTx)
	})
	if err != nil {
		return fmt.Errorf("unable to record stops: %w", err)
	}

	log.Printf("Recording %d routes", len(f.routes))
	err = inBatches(len(f.routes), func(low, high int) error {
		return schedule.RecordRoutes(f.routes[low:high], genTx)
	})
	if err != nil {
		return fmt.Errorf("unable to record routes: %w", err)
	}

	log.Printf("Recording %d calendars, %d calendar dates", len(f.calendars), len(f.calendarDates))
	err = inBatches(len(f.calendars), func(low, high int) error {
		return schedule.RecordCalendars(f.calendars[low:high], genTx)
	})
	if err != nil {
		return fmt.Errorf("unable to record calendars: %w", err)
	}
	err = inBatches(len(f.calendarDates), func(low, high int) error {
		return schedule.RecordCalendarDates(f.calendarDates[low:high], genTx)
	})
	if err != nil {
		return fmt.Errorf("unable to record calendar dates: %w", err)
	}

	log.Printf("Recording %d patterns, %d pattern stops", len(model.patterns), len(model.patternStops))
	err = inBatches(len(model.patterns), func(low, high int) error {
		return schedule.RecordPatterns(model.patterns[low:high], genTx)
	})
	if err != nil {
		return fmt.Errorf("unable to record patterns: %w", err)
	}
	err = inBatches(len(model.patternStops), func(low, high int) error {
		return schedule.RecordPatternStops(model.patternStops[low:high], genTx)
	})
	if err != nil {
		return fmt.Errorf("unable to record pattern stops: %w", err)
	}

	log.Printf("Recording %d trips", len(model.trips))
	err = inBatches(len(model.trips), func(low, high int) error {
		return schedule.RecordTrips(model.trips[low:high], genTx)
	})
	if err != nil {
		return fmt.Errorf("unable to record trips: %w", err)
	}
	return nil
}

// inBatches invokes record over [low, high) slice bounds in insertBatchSize chunks
func inBatches(length int, record func(low, high int) error) error {
	for low := 0; low < length; low += insertBatchSize {
		high := low + insertBatchSize
		if high > length {
			high = length
		}
		if err := record(low, high); err != nil {
			return err
		}
	}
	return nil
}

// ListFeedGenerations displays a list of all FeedGenerations
func ListFeedGenerations(db *sqlx.DB) error {
	fmt.Println("Loaded feed generations:")
	generations, err := schedule.GetAllFeedGenerations(db)
	if err != nil {
		return err
	}
	for _, gen := range generations {
		fmt.Println(&gen)
	}
	return nil
}

// DeleteFeedGeneration deletes all schedule records associated with the
// FeedGeneration with generationId
func DeleteFeedGeneration(log *log.Logger, db *sqlx.DB, generationId int64) error {
	gen, err := schedule.GetFeedGeneration(db, generationId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no feed generation found with id %d", generationId)
		}
		return err
	}
	err = transact(log, db, func(tx *sqlx.Tx) error {
		log.Printf("Removing feed generation %v", gen)
		deleteStatements := []struct {
			query string
			name  string
		}{
			{
				name:  "pattern_stop",
				query: "delete from pattern_stop where generation_id = ?",
			},
			{
				name:  "trip",
				query: "delete from trip where generation_id = ?",
			},
			{
				name:  "pattern",
				query: "delete from pattern where generation_id = ?",
			},
			{
				name:  "calendar",
				query: "delete from calendar where generation_id = ?",
			},
			{
				name:  "calendar_date",
				query: "delete from calendar_date where generation_id = ?",
			},
			{
				name:  "route",
				query: "delete from route where generation_id = ?",
			},
			{
				name:  "stop",
				query: "delete from stop where generation_id = ?",
			},
			{
				name:  "feed_generation",
				query: "delete from feed_generation where id = ?",
			},
		}
		for _, deleteStatement := range deleteStatements {
			stmt, innerErr := tx.Prepare(tx.Rebind(deleteStatement.query))
			if innerErr != nil {
				return fmt.Errorf("error running '%s' error:%w", deleteStatement.query, innerErr)
			}
			result, innerErr := stmt.Exec(gen.Id)
			if innerErr != nil {
				return fmt.Errorf("error running '%s' error:%w", deleteStatement.query, innerErr)
			}
			rows, innerErr := result.RowsAffected()
			if innerErr != nil {
				return fmt.Errorf("error retrieving rows affected after '%s' error:%w", deleteStatement.query, innerErr)
			}
			log.Printf("Deleted %d lines from %s\n", rows, deleteStatement.name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("Deleted feed generation %v", gen)
	return nil
}

/*
transact starts a Transaction on sqlx.DB, calls txFunc and commits or rolls back the transaction depending on the
return code of the txFunc result
*/
func transact(log *log.Logger, db *sqlx.DB, txFunc func(*sqlx.Tx) error) (err error) {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback() // err is non-nil; don't change it
			if rollbackErr != nil {
				log.Printf("Received error while attempting to rollback transaction. error:%v", rollbackErr)
			}
			return
		}
		err = tx.Commit() // err is nil; if Commit returns error update err
	}()
	err = txFunc(tx)
	return err
}
