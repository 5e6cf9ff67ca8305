package schedule

// Pattern represents one distinct ordered sequence of stops traversed by one
// or more trips in one direction on one route. Two trips belong to the same
// Pattern exactly when their ordered stop id sequences are identical and they
// share route and direction.
type Pattern struct {
	GenerationId int64  `db:"generation_id" json:"generation_id"`
	Id           int64  `db:"id" json:"id"`
	RouteId      string `db:"route_id" json:"route_id"`
	DirectionId  int    `db:"direction_id" json:"direction_id"`
}

// PatternStop is one position in a pattern's stop sequence. Offsets are
// seconds relative to the owning trip's start time, not wall clock, so every
// trip on the pattern shares one set of PatternStop rows.
// (pattern id, stop_sequence) is unique per generation.
type PatternStop struct {
	GenerationId    int64  `db:"generation_id" json:"generation_id"`
	PatternId       int64  `db:"pattern_id" json:"pattern_id"`
	StopSequence    int    `db:"stop_sequence" json:"stop_sequence"`
	StopId          string `db:"stop_id" json:"stop_id"`
	ArrivalOffset   int    `db:"arrival_offset" json:"arrival_offset"`
	DepartureOffset int    `db:"departure_offset" json:"departure_offset"`
}

// RecordPatterns saves patterns to database in batch
func RecordPatterns(patterns []*Pattern, genTx *GenerationTransaction) error {
	for _, pattern := range patterns {
		pattern.GenerationId = genTx.Gen.Id
	}
	statementString := "insert into pattern ( " +
		"generation_id, " +
		"id, " +
		"route_id, " +
		"direction_id) " +
		"values (" +
		":generation_id, " +
		":id, " +
		":route_id, " +
		":direction_id)"
	statementString = genTx.Tx.Rebind(statementString)
	_, err := genTx.Tx.NamedExec(statementString, patterns)
	return err
}

// RecordPatternStops saves patternStops to database in batch
func RecordPatternStops(patternStops []*PatternStop, genTx *GenerationTransaction) error {
	for _, patternStop := range patternStops {
		patternStop.GenerationId = genTx.Gen.Id
	}
	statementString := "insert into pattern_stop ( " +
		"generation_id, " +
		"pattern_id, " +
		"stop_sequence, " +
		"stop_id, " +
		"arrival_offset, " +
		"departure_offset) " +
		"values (" +
		":generation_id, " +
		":pattern_id, " +
		":stop_sequence, " +
		":stop_id, " +
		":arrival_offset, " +
		":departure_offset)"
	statementString = genTx.Tx.Rebind(statementString)
	_, err := genTx.Tx.NamedExec(statementString, patternStops)
	return err
}
