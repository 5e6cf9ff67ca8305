package schedule

// Route contains data from a gtfs route definition in a routes.txt file
type Route struct {
	GenerationId   int64   `db:"generation_id" json:"generation_id"`
	RouteId        string  `db:"route_id" json:"route_id"`
	AgencyId       *string `db:"agency_id" json:"agency_id"`
	RouteShortName string  `db:"route_short_name" json:"route_short_name"`
	RouteLongName  string  `db:"route_long_name" json:"route_long_name"`
	RouteType      int     `db:"route_type" json:"route_type"`
	RouteColor     *string `db:"route_color" json:"route_color"`
	RouteTextColor *string `db:"route_text_color" json:"route_text_color"`
}

// RecordRoutes saves routes to database in batch
func RecordRoutes(routes []*Route, genTx *GenerationTransaction) error {
	for _, route := range routes {
		route.GenerationId = genTx.Gen.Id
	}
	statementString := "insert into route ( " +
		"generation_id, " +
		"route_id, " +
		"agency_id, " +
		"route_short_name, " +
		"route_long_name, " +
		"route_type, " +
		"route_color, " +
		"route_text_color) " +
		"values (" +
		":generation_id, " +
		":route_id, " +
		":agency_id, " +
		":route_short_name, " +
		":route_long_name, " +
		":route_type, " +
		":route_color, " +
		":route_text_color)"
	statementString = genTx.Tx.Rebind(statementString)
	_, err := genTx.Tx.NamedExec(statementString, routes)
	return err
}
