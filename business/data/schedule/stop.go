package schedule

import (
	"github.com/jmoiron/sqlx"
)

// Stop contains one platform or station loaded from a gtfs stops.txt file.
// Stops are immutable for the lifetime of their FeedGeneration and are
// replaced wholesale by the next builder run.
type Stop struct {
	GenerationId       int64   `db:"generation_id" json:"generation_id"`
	StopId             string  `db:"stop_id" json:"stop_id"`
	StopCode           *string `db:"stop_code" json:"stop_code"`
	StopName           string  `db:"stop_name" json:"stop_name"`
	StopLat            float64 `db:"stop_lat" json:"stop_lat"`
	StopLon            float64 `db:"stop_lon" json:"stop_lon"`
	LocationType       int     `db:"location_type" json:"location_type"`
	ParentStation      *string `db:"parent_station" json:"parent_station"`
	WheelchairBoarding int     `db:"wheelchair_boarding" json:"wheelchair_boarding"`
	PlatformCode       *string `db:"platform_code" json:"platform_code"`
}

// RecordStops saves stops to database in batch
func RecordStops(stops []*Stop, genTx *GenerationTransaction) error {
	for _, stop := range stops {
		stop.GenerationId = genTx.Gen.Id
	}
	statementString := "insert into stop ( " +
		"generation_id, " +
		"stop_id, " +
		"stop_code, " +
		"stop_name, " +
		"stop_lat, " +
		"stop_lon, " +
		"location_type, " +
		"parent_station, " +
		"wheelchair_boarding, " +
		"platform_code) " +
		"values (" +
		":generation_id, " +
		":stop_id, " +
		":stop_code, " +
		":stop_name, " +
		":stop_lat, " +
		":stop_lon, " +
		":location_type, " +
		":parent_station, " +
		":wheelchair_boarding, " +
		":platform_code)"
	statementString = genTx.Tx.Rebind(statementString)
	_, err := genTx.Tx.NamedExec(statementString, stops)
	return err
}

// StopExists reports whether stopId is present in the generation. Used by the
// degradation path to distinguish not-found from no-service responses.
func StopExists(db *sqlx.DB, generationId int64, stopId string) (bool, error) {
	query := db.Rebind("select count(*) from stop where generation_id = ? and stop_id = ?")
	var count int
	err := db.Get(&count, query, generationId, stopId)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
