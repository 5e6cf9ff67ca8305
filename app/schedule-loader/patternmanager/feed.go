package patternmanager

import (
	"archive/zip"
	"fmt"
	"log"
	"strings"

	"github.com/opentransitau/departureboard/business/data/schedule"
)

// rawTrip is one trips.txt row before pattern resolution
type rawTrip struct {
	TripId               string
	RouteId              string
	ServiceId            string
	TripHeadsign         *string
	TripShortName        *string
	BlockId              *string
	DirectionId          int
	WheelchairAccessible int
}

// rawStopTime is one stop_times.txt row. Times are seconds since local
// midnight and may exceed 86,400 for next-day service.
type rawStopTime struct {
	TripId        string
	StopId        string
	StopSequence  int
	ArrivalTime   int
	DepartureTime int
}

// feed holds one source feed, or several merged, in memory prior to pattern
// extraction
type feed struct {
	stops         []*schedule.Stop
	routes        []*schedule.Route
	trips         []*rawTrip
	stopTimes     []*rawStopTime
	calendars     []*schedule.Calendar
	calendarDates []*schedule.CalendarDate
}

type stopRowReader struct {
	stops []*schedule.Stop
}

func (r *stopRowReader) addRow(parser *feedFileParser) error {
	r.stops = append(r.stops, &schedule.Stop{
		StopId:             parser.getString("stop_id", false),
		StopCode:           parser.getStringPointer("stop_code", true),
		StopName:           parser.getString("stop_name", false),
		StopLat:            parser.getFloat64("stop_lat", false),
		StopLon:            parser.getFloat64("stop_lon", false),
		LocationType:       parser.getInt("location_type", true),
		ParentStation:      parser.getStringPointer("parent_station", true),
		WheelchairBoarding: parser.getInt("wheelchair_boarding", true),
		PlatformCode:       parser.getStringPointer("platform_code", true),
	})
	return parser.getError()
}

type routeRowReader struct {
	routes []*schedule.Route
}

func (r *routeRowReader) addRow(parser *feedFileParser) error {
	r.routes = append(r.routes, &schedule.Route{
		RouteId:        parser.getString("route_id", false),
		AgencyId:       parser.getStringPointer("agency_id", true),
		RouteShortName: parser.getString("route_short_name", true),
		RouteLongName:  parser.getString("route_long_name", true),
		RouteType:      parser.getInt("route_type", false),
		RouteColor:     parser.getStringPointer("route_color", true),
		RouteTextColor: parser.getStringPointer("route_text_color", true),
	})
	return parser.getError()
}

type tripRowReader struct {
	trips []*rawTrip
}

func (r *tripRowReader) addRow(parser *feedFileParser) error {
	r.trips = append(r.trips, &rawTrip{
		TripId:               parser.getString("trip_id", false),
		RouteId:              parser.getString("route_id", false),
		ServiceId:            parser.getString("service_id", false),
		TripHeadsign:         parser.getStringPointer("trip_headsign", true),
		TripShortName:        parser.getStringPointer("trip_short_name", true),
		BlockId:              parser.getStringPointer("block_id", true),
		DirectionId:          parser.getInt("direction_id", true),
		WheelchairAccessible: parser.getInt("wheelchair_accessible", true),
	})
	return parser.getError()
}

type stopTimeRowReader struct {
	stopTimes []*rawStopTime
}

func (r *stopTimeRowReader) addRow(parser *feedFileParser) error {
	r.stopTimes = append(r.stopTimes, &rawStopTime{
		TripId:        parser.getString("trip_id", false),
		StopId:        parser.getString("stop_id", false),
		StopSequence:  parser.getInt("stop_sequence", false),
		ArrivalTime:   parser.getGTFSTime("arrival_time", false),
		DepartureTime: parser.getGTFSTime("departure_time", false),
	})
	return parser.getError()
}

type calendarRowReader struct {
	calendars []*schedule.Calendar
}

func (r *calendarRowReader) addRow(parser *feedFileParser) error {
	startDate := parser.getGTFSDate("start_date", false)
	endDate := parser.getGTFSDate("end_date", false)
	r.calendars = append(r.calendars, &schedule.Calendar{
		ServiceId: parser.getString("service_id", false),
		Monday:    parser.getInt("monday", false),
		Tuesday:   parser.getInt("tuesday", false),
		Wednesday: parser.getInt("wednesday", false),
		Thursday:  parser.getInt("thursday", false),
		Friday:    parser.getInt("friday", false),
		Saturday:  parser.getInt("saturday", false),
		Sunday:    parser.getInt("sunday", false),
		StartDate: &startDate,
		EndDate:   &endDate,
	})
	return parser.getError()
}

type calendarDateRowReader struct {
	calendarDates []*schedule.CalendarDate
}

func (r *calendarDateRowReader) addRow(parser *feedFileParser) error {
	r.calendarDates = append(r.calendarDates, &schedule.CalendarDate{
		ServiceId:     parser.getString("service_id", false),
		Date:          parser.getGTFSDate("date", false),
		ExceptionType: parser.getInt("exception_type", false),
	})
	return parser.getError()
}

// feedZipFiles holds the gtfs files found in one feed zip
type feedZipFiles struct {
	stopFile         *zip.File
	routeFile        *zip.File
	tripFile         *zip.File
	stopTimeFile     *zip.File
	calendarFile     *zip.File
	calendarDateFile *zip.File
}

// newFeedZipFiles locates the gtfs files inside zipReader.
// Returns an error naming any missing required file: a feed missing inputs
// indicates upstream corruption and must fail the whole load.
func newFeedZipFiles(zipReader *zip.Reader) (*feedZipFiles, error) {
	files := feedZipFiles{}
	for _, f := range zipReader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch f.Name {
		case "stops.txt":
			files.stopFile = f
		case "routes.txt":
			files.routeFile = f
		case "trips.txt":
			files.tripFile = f
		case "stop_times.txt":
			files.stopTimeFile = f
		case "calendar.txt":
			files.calendarFile = f
		case "calendar_dates.txt":
			files.calendarDateFile = f
		}
	}
	missingFiles := getMissingFiles(&files)
	if len(missingFiles) > 0 {
		return nil, fmt.Errorf("gtfs zip file is missing the following file(s) %s",
			strings.Join(missingFiles, ","))
	}
	return &files, nil
}

// getMissingFiles checks feedZipFiles for required files and returns string list of missing files
func getMissingFiles(files *feedZipFiles) []string {
	missingFileNames := make([]string, 0)
	if files.stopFile == nil {
		missingFileNames = append(missingFileNames, "stops.txt")
	}
	if files.routeFile == nil {
		missingFileNames = append(missingFileNames, "routes.txt")
	}
	if files.tripFile == nil {
		missingFileNames = append(missingFileNames, "trips.txt")
	}
	if files.stopTimeFile == nil {
		missingFileNames = append(missingFileNames, "stop_times.txt")
	}
	if files.calendarFile == nil {
		missingFileNames = append(missingFileNames, "calendar.txt")
	}
	//ok to be missing calendar_dates.txt
	return missingFileNames
}

// loadFeedZip reads one feed's gtfs zip into memory. Trip ids are prefixed
// with the feed name so trips from different feeds cannot collide once merged.
func loadFeedZip(log *log.Logger, zipReader *zip.Reader, feedName string) (*feed, error) {
	files, err := newFeedZipFiles(zipReader)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", feedName, err)
	}

	stopRR := &stopRowReader{}
	routeRR := &routeRowReader{}
	tripRR := &tripRowReader{}
	stopTimeRR := &stopTimeRowReader{}
	calendarRR := &calendarRowReader{}
	calendarDateRR := &calendarDateRowReader{}

	readers := []struct {
		file      *zip.File
		rowReader feedRowReader
	}{
		{files.stopFile, stopRR},
		{files.routeFile, routeRR},
		{files.tripFile, tripRR},
		{files.stopTimeFile, stopTimeRR},
		{files.calendarFile, calendarRR},
		{files.calendarDateFile, calendarDateRR},
	}
	for _, reader := range readers {
		if reader.file == nil {
			continue
		}
		err = loadFeedFile(log, reader.file, reader.rowReader)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", feedName, err)
		}
	}

	prefix := feedName + "_"
	for _, trip := range tripRR.trips {
		trip.TripId = prefix + trip.TripId
	}
	for _, stopTime := range stopTimeRR.stopTimes {
		stopTime.TripId = prefix + stopTime.TripId
	}

	log.Printf("Loaded feed %s: %d stops, %d routes, %d trips, %d stop times",
		feedName, len(stopRR.stops), len(routeRR.routes), len(tripRR.trips), len(stopTimeRR.stopTimes))

	return &feed{
		stops:         stopRR.stops,
		routes:        routeRR.routes,
		trips:         tripRR.trips,
		stopTimes:     stopTimeRR.stopTimes,
		calendars:     calendarRR.calendars,
		calendarDates: calendarDateRR.calendarDates,
	}, nil
}

// loadFeedFile reads one gtfs zipped file with rowReader
func loadFeedFile(log *log.Logger, f *zip.File, rowReader feedRowReader) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	parser, err := makeFeedFileParser(rc, f.Name)
	if err != nil {
		return err
	}
	log.Printf("Loading %s\n", parser.Filename)
	err = loadFeedRows(parser, rowReader)
	if err != nil {
		return err
	}
	err = rc.Close()
	if err != nil {
		return err
	}
	log.Printf("Loaded %d rows from file %s\n", parser.line, parser.Filename)
	return nil
}

// mergeFeeds concatenates feeds in their configured order. Duplicate stops
// across feeds are resolved later by the service-area filter, which keeps the
// first occurrence.
func mergeFeeds(feeds []*feed) *feed {
	merged := &feed{}
	for _, f := range feeds {
		merged.stops = append(merged.stops, f.stops...)
		merged.routes = append(merged.routes, f.routes...)
		merged.trips = append(merged.trips, f.trips...)
		merged.stopTimes = append(merged.stopTimes, f.stopTimes...)
		merged.calendars = append(merged.calendars, f.calendars...)
		merged.calendarDates = append(merged.calendarDates, f.calendarDates...)
	}
	return merged
}
