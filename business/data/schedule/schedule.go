// Package schedule provides CRUD functionality for the compressed pattern
// model records owned by one feed generation.
package schedule

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// GenerationTransaction contains required data for recording new schedule records owned by a FeedGeneration
type GenerationTransaction struct {
	Gen FeedGeneration
	Tx  *sqlx.Tx
}

// FeedGeneration encompasses one build of the pattern model from a set of
// source feeds at a point in time. Every record produced by the builder
// shares the FeedGeneration.Id value as part of its primary key, so an
// entire generation can be activated or removed as a unit.
type FeedGeneration struct {
	Id int64
	// Source describes the feed sources the generation was built from
	Source       string
	DownloadedAt time.Time  `db:"downloaded_at"`
	SavedAt      *time.Time `db:"saved_at"`
}

func (g FeedGeneration) String() string {
	return fmt.Sprintf("FeedGeneration Id:%d, source:%s downloaded:%s savedAt:%s",
		g.Id, g.Source, formatTime(&g.DownloadedAt), formatTime(g.SavedAt))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02T15:04:05")
}

// SaveFeedGeneration saves new or updates existing FeedGenerations. Existing records are
// determined by a non-zero FeedGeneration.Id
func SaveFeedGeneration(tx *sqlx.Tx, gen *FeedGeneration) error {
	statementString := "insert into feed_generation ( " +
		"source, " +
		"downloaded_at, " +
		"saved_at) " +
		"values (" +
		":source, " +
		":downloaded_at, " +
		":saved_at)"
	if gen.Id != 0 {
		statementString = "update feed_generation set " +
			"source = :source, " +
			"downloaded_at = :downloaded_at, " +
			"saved_at = :saved_at " +
			" where id = :id"
	}

	statementString = tx.Rebind(statementString)
	_, err := tx.NamedExec(statementString, gen)
	if err != nil {
		return err
	}
	// retrieve new id if zero
	if gen.Id == 0 {
		statementString = tx.Rebind("SELECT id FROM feed_generation " +
			"where source = ? " +
			"and downloaded_at = ? limit 1")
		err = tx.Get(&gen.Id, statementString, gen.Source, gen.DownloadedAt)
		if err != nil {
			return err
		}
	}

	return err
}

// ActivateFeedGeneration marks gen as saved at "now". The active generation
// for readers is the one with the latest saved_at, so committing the
// transaction that calls this replaces the prior generation atomically.
func ActivateFeedGeneration(tx *sqlx.Tx, gen *FeedGeneration, now time.Time) error {
	gen.SavedAt = &now
	return SaveFeedGeneration(tx, gen)
}

// GetFeedGeneration retrieves FeedGeneration with generationId
func GetFeedGeneration(db *sqlx.DB, generationId int64) (*FeedGeneration, error) {
	query := "select * from feed_generation where id = $1"
	gen := FeedGeneration{}
	err := db.Get(&gen, db.Rebind(query), generationId)
	return &gen, err
}

// GetActiveFeedGeneration retrieves the latest FeedGeneration with a saved_at date
func GetActiveFeedGeneration(db *sqlx.DB) (*FeedGeneration, error) {
	query := "select * from feed_generation where saved_at is not null " +
		"order by saved_at desc, downloaded_at desc limit 1"
	gen := FeedGeneration{}
	err := db.Get(&gen, query)
	return &gen, err
}

// GetAllFeedGenerations retrieves all FeedGenerations currently loaded
func GetAllFeedGenerations(db *sqlx.DB) ([]FeedGeneration, error) {
	query := "select * from feed_generation"
	var results []FeedGeneration
	err := db.Select(&results, query)
	return results, err
}
