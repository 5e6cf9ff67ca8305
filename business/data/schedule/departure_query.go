package schedule

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opentransitau/departureboard/foundation/database"
)

// ScheduledDeparture is one (trip, pattern stop) pair serving a stop, joined
// with route metadata. ScheduledTime is trip start time plus the pattern
// stop's departure offset and may exceed 86,400 for trips crossing midnight.
type ScheduledDeparture struct {
	TripId               string  `db:"trip_id"`
	TripHeadsign         *string `db:"trip_headsign"`
	DirectionId          int     `db:"direction_id"`
	WheelchairAccessible int     `db:"wheelchair_accessible"`
	StartTime            int     `db:"start_time"`
	RouteId              string  `db:"route_id"`
	RouteShortName       string  `db:"route_short_name"`
	RouteLongName        string  `db:"route_long_name"`
	RouteType            int     `db:"route_type"`
	RouteColor           *string `db:"route_color"`
	DepartureOffset      int     `db:"departure_offset"`
	StopSequence         int     `db:"stop_sequence"`
	ScheduledTime        int     `db:"scheduled_time"`
}

// DepartureWindowQuery describes one directional window of departures at a stop.
// ServiceIds must be resolved for the service date beforehand (GetActiveServiceIds).
type DepartureWindowQuery struct {
	GenerationId int64
	StopId       string
	ServiceIds   []string
	TimeSecs     int
	// Future selects departures at or after TimeSecs in ascending order;
	// otherwise departures at or before TimeSecs in descending order.
	Future bool
	Limit  int
}

// GetScheduledDepartures retrieves the (trip, pattern stop) pairs serving the
// stop within the query window. The caller is expected to over-fetch beyond
// its display limit: a real-time delay can move a trip scheduled outside the
// window into it, and that reordering happens after the merge, not here.
func GetScheduledDepartures(db *sqlx.DB, q DepartureWindowQuery) ([]*ScheduledDeparture, error) {
	if len(q.ServiceIds) == 0 {
		return nil, nil
	}
	operator := ">="
	sortOrder := "asc"
	if !q.Future {
		operator = "<="
		sortOrder = "desc"
	}

	statementString := fmt.Sprintf("select "+
		"t.trip_id, "+
		"t.trip_headsign, "+
		"t.direction_id, "+
		"t.wheelchair_accessible, "+
		"t.start_time, "+
		"r.route_id, "+
		"r.route_short_name, "+
		"r.route_long_name, "+
		"r.route_type, "+
		"r.route_color, "+
		"ps.departure_offset, "+
		"ps.stop_sequence, "+
		"(t.start_time + ps.departure_offset) as scheduled_time "+
		"from pattern_stop ps "+
		"join pattern p on p.id = ps.pattern_id and p.generation_id = ps.generation_id "+
		"join trip t on t.pattern_id = p.id and t.generation_id = p.generation_id "+
		"join route r on r.route_id = t.route_id and r.generation_id = t.generation_id "+
		"where ps.generation_id = :generation_id "+
		"and ps.stop_id = :stop_id "+
		"and t.service_id in (:service_ids) "+
		"and (t.start_time + ps.departure_offset) %s :time_secs "+
		"order by scheduled_time %s "+
		"limit :limit", operator, sortOrder)

	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"generation_id": q.GenerationId,
		"stop_id":       q.StopId,
		"service_ids":   q.ServiceIds,
		"time_secs":     q.TimeSecs,
		"limit":         q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve scheduled departures for stop %s: %w", q.StopId, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []*ScheduledDeparture
	for rows.Next() {
		dep := ScheduledDeparture{}
		err = rows.StructScan(&dep)
		if err != nil {
			return nil, err
		}
		results = append(results, &dep)
	}
	return results, rows.Err()
}

// GetEarliestDeparture retrieves the minimum scheduled departure time of day
// at a stop, used to bound backward pagination. Returns sql.ErrNoRows wrapped
// when the stop has no departures at all.
func GetEarliestDeparture(db *sqlx.DB, generationId int64, stopId string) (int, error) {
	query := db.Rebind("select min(t.start_time + ps.departure_offset) " +
		"from pattern_stop ps " +
		"join trip t on t.pattern_id = ps.pattern_id and t.generation_id = ps.generation_id " +
		"where ps.generation_id = ? and ps.stop_id = ?")
	var earliest sql.NullInt64
	err := db.Get(&earliest, query, generationId, stopId)
	if err != nil {
		return 0, err
	}
	if !earliest.Valid {
		return 0, fmt.Errorf("no departures found for stop %s: %w", stopId, sql.ErrNoRows)
	}
	return int(earliest.Int64), nil
}

// ErrNoActiveGeneration indicates no feed generation has been loaded and activated yet
var ErrNoActiveGeneration = errors.New("no active feed generation")
