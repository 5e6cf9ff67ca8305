package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
)

// Calendar contains data from a record in a gtfs calendar.txt file.
// The weekday columns form the day-of-week bitmask governing whether a
// service runs on a date inside the validity range.
type Calendar struct {
	GenerationId int64  `db:"generation_id"`
	ServiceId    string `db:"service_id"`
	Monday       int
	Tuesday      int
	Wednesday    int
	Thursday     int
	Friday       int
	Saturday     int
	Sunday       int
	StartDate    *time.Time `db:"start_date"`
	EndDate      *time.Time `db:"end_date"`
}

// CalendarDate contains data from a record in a gtfs calendar_dates.txt file
type CalendarDate struct {
	GenerationId  int64  `db:"generation_id"`
	ServiceId     string `db:"service_id"`
	Date          time.Time
	ExceptionType int `db:"exception_type"`
}

// RecordCalendars saves calendars to database in batch
func RecordCalendars(calendars []*Calendar, genTx *GenerationTransaction) error {
	for _, calendar := range calendars {
		calendar.GenerationId = genTx.Gen.Id
	}
	statementString := "insert into calendar ( " +
		"generation_id, " +
		"service_id, " +
		"monday, " +
		"tuesday, " +
		"wednesday, " +
		"thursday, " +
		"friday, " +
		"saturday, " +
		"sunday, " +
		"start_date, " +
		"end_date) " +
		"values (" +
		":generation_id, " +
		":service_id, " +
		":monday, " +
		":tuesday, " +
		":wednesday, " +
		":thursday, " +
		":friday, " +
		":saturday, " +
		":sunday, " +
		":start_date, " +
		":end_date) "
	statementString = genTx.Tx.Rebind(statementString)
	_, err := genTx.Tx.NamedExec(statementString, calendars)
	return err
}

// RecordCalendarDates saves calendarDates to database in batch
func RecordCalendarDates(calendarDates []*CalendarDate, genTx *GenerationTransaction) error {
	for _, calendarDate := range calendarDates {
		calendarDate.GenerationId = genTx.Gen.Id
	}
	statementString := "insert into calendar_date ( " +
		"generation_id, " +
		"service_id, " +
		"date, " +
		"exception_type) " +
		"values (" +
		":generation_id, " +
		":service_id, " +
		":date, " +
		":exception_type)"
	statementString = genTx.Tx.Rebind(statementString)
	_, err := genTx.Tx.NamedExec(statementString, calendarDates)
	return err
}

// publicHolidayCalendar holds the NSW public holidays observed by the feed's
// operators, used to fall back to Sunday service levels on holidays the feed
// does not carry an explicit calendar_date exception for.
type publicHolidayCalendar struct {
	calendar *cal.BusinessCalendar
}

func newPublicHolidayCalendar() *publicHolidayCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		au.NewYear,
		au.AustraliaDay,
		au.GoodFriday,
		au.EasterMonday,
		au.AnzacDay,
		au.ChristmasDay,
		au.BoxingDay,
	)
	return &publicHolidayCalendar{calendar: calendar}
}

// isHoliday returns true if at falls on an observed public holiday
func (p *publicHolidayCalendar) isHoliday(at time.Time) bool {
	_, observed, _ := p.calendar.IsHoliday(at)
	return observed
}

var holidayCalendar = newPublicHolidayCalendar()

// EffectiveWeekday resolves the calendar column to consult for serviceDate.
// With holidaysAsSunday set, an observed public holiday uses the sunday
// column, matching operator practice of running Sunday timetables on
// holidays the feed doesn't list explicitly.
func EffectiveWeekday(serviceDate time.Time, holidaysAsSunday bool) string {
	if holidaysAsSunday && holidayCalendar.isHoliday(serviceDate) {
		return "sunday"
	}
	return strings.ToLower(serviceDate.Weekday().String())
}

// GetActiveServiceIds retrieves the active serviceIds on provided serviceDate.
// both calendar and calendar_date are used
func GetActiveServiceIds(db *sqlx.DB,
	gen *FeedGeneration,
	serviceDate time.Time,
	holidaysAsSunday bool) ([]string, error) {

	serviceIdMap := make(map[string]bool)

	// the calendar week day columns are named after the english weekdays
	weekday := EffectiveWeekday(serviceDate, holidaysAsSunday)

	query := fmt.Sprintf("select service_id from calendar where generation_id = $1 "+
		"and $2 between start_date and end_date "+
		"and %s = 1", weekday)
	var calendarServiceIds []string
	err := db.Select(&calendarServiceIds, query, gen.Id, serviceDate)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve service_ids from calendar table. query:%s error: %w", query, err)
	}

	for _, serviceId := range calendarServiceIds {
		serviceIdMap[serviceId] = true
	}

	var calendarDates []CalendarDate
	query = "select * from calendar_date where generation_id = $1 and date = $2"
	err = db.Select(&calendarDates, query, gen.Id, serviceDate)
	if err != nil {
		return nil, fmt.Errorf("unable to query calendar_date table. query:%s error: %w", query, err)
	}
	for _, calendarDate := range calendarDates {
		if calendarDate.ExceptionType == 1 {
			serviceIdMap[calendarDate.ServiceId] = true
		} else if calendarDate.ExceptionType == 2 {
			delete(serviceIdMap, calendarDate.ServiceId)
		}
	}

	results := make([]string, 0, len(serviceIdMap))
	for serviceId := range serviceIdMap {
		results = append(results, serviceId)
	}
	return results, nil
}
