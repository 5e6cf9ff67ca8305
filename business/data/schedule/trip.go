package schedule

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opentransitau/departureboard/foundation/database"
)

// Trip contains data from a gtfs trip definition in a trips.txt file,
// resolved to its pattern. StartTime is seconds since local midnight of the
// service day; StartTime plus a PatternStop offset is the absolute scheduled
// time of day for that stop and may exceed 86,400 for trips crossing midnight.
type Trip struct {
	GenerationId         int64   `db:"generation_id" json:"generation_id"`
	TripId               string  `db:"trip_id" json:"trip_id"`
	RouteId              string  `db:"route_id" json:"route_id"`
	ServiceId            string  `db:"service_id" json:"service_id"`
	PatternId            int64   `db:"pattern_id" json:"pattern_id"`
	TripHeadsign         *string `db:"trip_headsign" json:"trip_headsign"`
	TripShortName        *string `db:"trip_short_name" json:"trip_short_name"`
	BlockId              *string `db:"block_id" json:"block_id"`
	DirectionId          int     `db:"direction_id" json:"direction_id"`
	WheelchairAccessible int     `db:"wheelchair_accessible" json:"wheelchair_accessible"`
	StartTime            int     `db:"start_time" json:"start_time"`
}

// RecordTrips saves trips to database in batch
func RecordTrips(trips []*Trip, genTx *GenerationTransaction) error {
	for _, trip := range trips {
		trip.GenerationId = genTx.Gen.Id
	}
	statementString := "insert into trip ( " +
		"generation_id, " +
		"trip_id, " +
		"route_id, " +
		"service_id, " +
		"pattern_id, " +
		"trip_headsign, " +
		"trip_short_name, " +
		"block_id, " +
		"direction_id, " +
		"wheelchair_accessible, " +
		"start_time) " +
		"values (" +
		":generation_id, " +
		":trip_id, " +
		":route_id, " +
		":service_id, " +
		":pattern_id, " +
		":trip_headsign, " +
		":trip_short_name, " +
		":block_id, " +
		":direction_id, " +
		":wheelchair_accessible, " +
		":start_time)"
	statementString = genTx.Tx.Rebind(statementString)
	_, err := genTx.Tx.NamedExec(statementString, trips)
	return err
}

// TripDetail carries one trip with its route metadata and ordered stop calls
type TripDetail struct {
	Trip
	RouteShortName string          `db:"route_short_name" json:"route_short_name"`
	RouteColor     *string         `db:"route_color" json:"route_color"`
	StopCalls      []*TripStopCall `json:"stop_calls"`
}

// TripStopCall is one scheduled call on a trip, joined with stop metadata
type TripStopCall struct {
	StopSequence       int     `db:"stop_sequence" json:"stop_sequence"`
	StopId             string  `db:"stop_id" json:"stop_id"`
	StopName           string  `db:"stop_name" json:"stop_name"`
	StopLat            float64 `db:"stop_lat" json:"stop_lat"`
	StopLon            float64 `db:"stop_lon" json:"stop_lon"`
	WheelchairBoarding int     `db:"wheelchair_boarding" json:"wheelchair_boarding"`
	ArrivalOffset      int     `db:"arrival_offset" json:"arrival_offset"`
	DepartureOffset    int     `db:"departure_offset" json:"departure_offset"`
}

// GetTripDetail loads a trip with route metadata and its pattern's ordered
// stop calls joined with stop names
func GetTripDetail(db *sqlx.DB, generationId int64, tripId string) (*TripDetail, error) {
	query := db.Rebind("select t.*, r.route_short_name, r.route_color " +
		"from trip t " +
		"join route r on r.route_id = t.route_id and r.generation_id = t.generation_id " +
		"where t.generation_id = ? and t.trip_id = ?")
	detail := TripDetail{}
	err := db.Get(&detail, query, generationId, tripId)
	if err != nil {
		return nil, err
	}

	rows, err := database.PrepareNamedQueryRowsFromMap(
		"select ps.stop_sequence, ps.stop_id, ps.arrival_offset, ps.departure_offset, "+
			"s.stop_name, s.stop_lat, s.stop_lon, s.wheelchair_boarding "+
			"from pattern_stop ps "+
			"join stop s on s.stop_id = ps.stop_id and s.generation_id = ps.generation_id "+
			"where ps.generation_id = :generation_id and ps.pattern_id = :pattern_id "+
			"order by ps.stop_sequence",
		db, map[string]interface{}{
			"generation_id": generationId,
			"pattern_id":    detail.PatternId,
		})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve stop calls for trip %s: %w", tripId, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		call := TripStopCall{}
		err = rows.StructScan(&call)
		if err != nil {
			return nil, err
		}
		detail.StopCalls = append(detail.StopCalls, &call)
	}
	return &detail, rows.Err()
}
