package departures

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opentransitau/departureboard/business/data/schedule"
)

// ScheduleStore is the production ScheduleSource, reading the active feed
// generation's pattern model from the schedule database. Each call resolves
// the active generation, so a builder run that activates a new generation is
// picked up by the next request without restarting the service.
type ScheduleStore struct {
	log *log.Logger
	db  *sqlx.DB
	// HolidaysAsSunday resolves observed public holidays to Sunday service
	// when the feed carries no explicit calendar exception for them
	holidaysAsSunday bool
}

// NewScheduleStore creates a ScheduleStore over an opened database
func NewScheduleStore(log *log.Logger, db *sqlx.DB, holidaysAsSunday bool) *ScheduleStore {
	return &ScheduleStore{log: log, db: db, holidaysAsSunday: holidaysAsSunday}
}

func (s *ScheduleStore) activeGeneration() (*schedule.FeedGeneration, error) {
	gen, err := schedule.GetActiveFeedGeneration(s.db)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrNoActiveGeneration
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve active feed generation: %w", err)
	}
	return gen, nil
}

// ScheduledDepartures retrieves the (trip, pattern stop) rows serving stopId
// within the directional window, restricted to services active on serviceDate
func (s *ScheduleStore) ScheduledDepartures(stopId string,
	serviceDate time.Time,
	timeSecs int,
	future bool,
	limit int) ([]*schedule.ScheduledDeparture, error) {

	gen, err := s.activeGeneration()
	if err != nil {
		return nil, err
	}
	serviceIds, err := schedule.GetActiveServiceIds(s.db, gen, serviceDate, s.holidaysAsSunday)
	if err != nil {
		return nil, err
	}
	return schedule.GetScheduledDepartures(s.db, schedule.DepartureWindowQuery{
		GenerationId: gen.Id,
		StopId:       stopId,
		ServiceIds:   serviceIds,
		TimeSecs:     timeSecs,
		Future:       future,
		Limit:        limit,
	})
}

// EarliestDeparture retrieves the minimum scheduled departure time of day at stopId
func (s *ScheduleStore) EarliestDeparture(stopId string) (int, error) {
	gen, err := s.activeGeneration()
	if err != nil {
		return 0, err
	}
	return schedule.GetEarliestDeparture(s.db, gen.Id, stopId)
}

// TripDetail loads tripId with route metadata and ordered stop calls from the
// active generation
func (s *ScheduleStore) TripDetail(tripId string) (*schedule.TripDetail, error) {
	gen, err := s.activeGeneration()
	if err != nil {
		return nil, err
	}
	return schedule.GetTripDetail(s.db, gen.Id, tripId)
}

// StopExists reports whether stopId exists in the active generation
func (s *ScheduleStore) StopExists(stopId string) (bool, error) {
	gen, err := s.activeGeneration()
	if err != nil {
		if errors.Is(err, schedule.ErrNoActiveGeneration) {
			return false, nil
		}
		return false, err
	}
	return schedule.StopExists(s.db, gen.Id, stopId)
}
